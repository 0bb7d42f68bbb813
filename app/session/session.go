// Package session defines the transient token shapes carried in cookies and
// OAuth state parameters, and the per-request resolved session.
package session

import (
	"encoding/json"
	"time"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/pkg/secrets"
)

// Token is the bearer credential carried encrypted in the session cookie:
// user Sub holds access-token lineage ID until Exp (unix seconds). Signup
// invitations reuse the same shape with a signup-scoped refresh token behind
// them.
type Token struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
	ID  string `json:"id"`
}

func (t Token) Expired(now time.Time) bool {
	return t.Exp < now.Unix()
}

// StatePassthrough is round-tripped encrypted through the OAuth provider's
// state parameter to prove the callback matches a request this server issued.
type StatePassthrough struct {
	Key              string `json:"key"`
	UnixTime         int64  `json:"unixTime"`
	IdentityProvider string `json:"identityProvider"`
}

// Session is the per-request authentication state. Loaders is a fresh
// batching cache constructed for each request and discarded with it.
type Session struct {
	Me      *entity.User
	Token   *Token
	Loaders *repository.Loaders
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Me != nil
}

func EncodeToken(c *secrets.Cipher, t Token) (string, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return c.Encrypt(string(payload))
}

func DecodeToken(c *secrets.Cipher, raw string) (Token, error) {
	plaintext, err := c.Decrypt(raw)
	if err != nil {
		return Token{}, err
	}
	var t Token
	if err := json.Unmarshal([]byte(plaintext), &t); err != nil {
		return Token{}, secrets.ErrDecryption
	}
	return t, nil
}

func EncodeState(c *secrets.Cipher, s StatePassthrough) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return c.Encrypt(string(payload))
}

func DecodeState(c *secrets.Cipher, raw string) (StatePassthrough, error) {
	plaintext, err := c.Decrypt(raw)
	if err != nil {
		return StatePassthrough{}, err
	}
	var s StatePassthrough
	if err := json.Unmarshal([]byte(plaintext), &s); err != nil {
		return StatePassthrough{}, secrets.ErrDecryption
	}
	return s, nil
}
