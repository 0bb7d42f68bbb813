package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/session"
	"github.com/modelboard/webapp/config"
	"github.com/modelboard/webapp/pkg/secrets"
)

var (
	ErrInvalidProvider    = errors.New("invalid identity provider")
	ErrCredentialExchange = errors.New("credential exchange with identity provider failed")
	ErrEmailNotVerified   = errors.New("email is not verified by the identity provider")
)

type IdentityProvider string

const (
	ProviderGoogle    IdentityProvider = "Google"
	ProviderMicrosoft IdentityProvider = "Microsoft"
)

func ParseIdentityProvider(name string) (IdentityProvider, error) {
	switch IdentityProvider(name) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderMicrosoft:
		return ProviderMicrosoft, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidProvider, name)
}

func (p IdentityProvider) AuthMethod() entity.AuthMethod {
	if p == ProviderMicrosoft {
		return entity.AuthMethodMicrosoft
	}
	return entity.AuthMethodGoogle
}

// ProviderTokens is the token set returned by a provider's token endpoint.
type ProviderTokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
}

// Credentials is the result of an authorization-code exchange: the
// provider-verified email plus the provider's tokens.
type Credentials struct {
	Email  string
	Tokens ProviderTokens
}

// ProviderGateway builds authorization URLs with encrypted CSRF state and
// exchanges authorization codes for identity claims. Endpoint URLs are
// struct fields so tests can point them at a local server.
type ProviderGateway struct {
	cfg    *config.Config
	cipher *secrets.Cipher
	client *http.Client

	GoogleAuthURL     string
	GoogleTokenURL    string
	GoogleUserinfoURL string

	MicrosoftAuthURL  string
	MicrosoftTokenURL string
	MicrosoftJWKSURL  string
}

func NewProviderGateway(cfg *config.Config, cipher *secrets.Cipher) *ProviderGateway {
	return &ProviderGateway{
		cfg:    cfg,
		cipher: cipher,
		client: &http.Client{Timeout: 10 * time.Second},

		GoogleAuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		GoogleTokenURL:    "https://oauth2.googleapis.com/token",
		GoogleUserinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",

		MicrosoftAuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		MicrosoftTokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		MicrosoftJWKSURL:  "https://login.microsoftonline.com/common/discovery/v2.0/keys",
	}
}

// BuildAuthorizationURL constructs the provider's authorization endpoint URL
// with the encrypted state passthrough. loginHint, when present, pre-fills
// the provider's account picker.
func (g *ProviderGateway) BuildAuthorizationURL(provider IdentityProvider, loginHint string) (string, error) {
	var endpoint, clientID string
	switch provider {
	case ProviderGoogle:
		endpoint, clientID = g.GoogleAuthURL, g.cfg.Google.ClientID
	case ProviderMicrosoft:
		endpoint, clientID = g.MicrosoftAuthURL, g.cfg.Microsoft.ClientID
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidProvider, provider)
	}

	state, err := session.EncodeState(g.cipher, session.StatePassthrough{
		Key:              g.cfg.StatePassthroughKey,
		UnixTime:         time.Now().Unix(),
		IdentityProvider: string(provider),
	})
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("scope", "openid email")
	params.Set("state", state)
	params.Set("access_type", "online")
	params.Set("include_granted_scopes", "true")
	params.Set("redirect_uri", g.cfg.CallbackURL())
	params.Set("client_id", clientID)
	if loginHint != "" {
		params.Set("login_hint", loginHint)
	}

	return endpoint + "?" + params.Encode(), nil
}

// DecodeState decrypts and parses an OAuth state parameter back into the
// passthrough payload the authorization URL was built with.
func (g *ProviderGateway) DecodeState(raw string) (session.StatePassthrough, error) {
	return session.DecodeState(g.cipher, raw)
}

// ExchangeCode redeems an authorization code for the provider-verified email
// and token set.
func (g *ProviderGateway) ExchangeCode(ctx context.Context, provider IdentityProvider, code string) (*Credentials, error) {
	switch provider {
	case ProviderGoogle:
		return g.exchangeGoogle(ctx, code)
	case ProviderMicrosoft:
		return g.exchangeMicrosoft(ctx, code)
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidProvider, provider)
}

type tokenEndpointResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (g *ProviderGateway) postTokenEndpoint(ctx context.Context, endpoint string, form url.Values) (*tokenEndpointResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCredentialExchange, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCredentialExchange, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrCredentialExchange, resp.StatusCode)
	}

	var tokens tokenEndpointResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("%w: malformed token response", ErrCredentialExchange)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrCredentialExchange)
	}
	return &tokens, nil
}

func (g *ProviderGateway) exchangeGoogle(ctx context.Context, code string) (*Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", g.cfg.Google.ClientID)
	form.Set("client_secret", g.cfg.Google.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.cfg.CallbackURL())

	tokens, err := g.postTokenEndpoint(ctx, g.GoogleTokenURL, form)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.GoogleUserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCredentialExchange, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: userinfo endpoint returned %d", ErrCredentialExchange, resp.StatusCode)
	}

	var userInfo struct {
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("%w: malformed userinfo response", ErrCredentialExchange)
	}
	if userInfo.Email == "" {
		return nil, fmt.Errorf("%w: missing email in userinfo", ErrCredentialExchange)
	}
	if !userInfo.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}

	return &Credentials{Email: userInfo.Email, Tokens: providerTokens(tokens)}, nil
}

func (g *ProviderGateway) exchangeMicrosoft(ctx context.Context, code string) (*Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", g.cfg.Microsoft.ClientID)
	form.Set("client_secret", g.cfg.Microsoft.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.cfg.CallbackURL())

	tokens, err := g.postTokenEndpoint(ctx, g.MicrosoftTokenURL, form)
	if err != nil {
		return nil, err
	}
	if tokens.IDToken == "" {
		return nil, fmt.Errorf("%w: missing id token", ErrCredentialExchange)
	}

	email, err := g.verifiedEmailFromIDToken(ctx, tokens.IDToken)
	if err != nil {
		return nil, err
	}

	return &Credentials{Email: email, Tokens: providerTokens(tokens)}, nil
}

// verifiedEmailFromIDToken verifies the id token's signature against the
// provider's published JWKS before trusting the email claim.
func (g *ProviderGateway) verifiedEmailFromIDToken(ctx context.Context, idToken string) (string, error) {
	keys, err := g.fetchJWKS(ctx)
	if err != nil {
		return "", err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(g.cfg.Microsoft.ClientID),
	)
	claims := jwt.MapClaims{}
	_, err = parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown signing key id %q", kid)
		}
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: id token verification failed: %s", ErrCredentialExchange, err.Error())
	}

	email, _ := claims["email"].(string)
	if email == "" {
		email, _ = claims["preferred_username"].(string)
	}
	if email == "" {
		return "", fmt.Errorf("%w: missing email claim", ErrCredentialExchange)
	}
	return email, nil
}

func (g *ProviderGateway) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.MicrosoftJWKSURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCredentialExchange, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", ErrCredentialExchange, resp.StatusCode)
	}

	var doc struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed jwks response", ErrCredentialExchange)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no usable signing keys", ErrCredentialExchange)
	}
	return keys, nil
}

func providerTokens(t *tokenEndpointResponse) ProviderTokens {
	return ProviderTokens{
		AccessToken:  t.AccessToken,
		IDToken:      t.IDToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
		TokenType:    t.TokenType,
	}
}
