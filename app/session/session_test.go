package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/session"
	"github.com/modelboard/webapp/pkg/secrets"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	c, err := secrets.NewCipher(testKey)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return c
}

func TestTokenRoundTrip(t *testing.T) {
	c := newCipher(t)
	in := session.Token{
		Sub: "user-id",
		Exp: time.Now().Add(15 * time.Minute).Unix(),
		ID:  "access-id",
	}

	raw, err := session.EncodeToken(c, in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	out, err := session.DecodeToken(c, raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestDecodeToken_ValidCiphertextWrongPayload(t *testing.T) {
	c := newCipher(t)

	// Decrypts fine but is not a token document.
	raw, err := c.Encrypt("[1,2,3]")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err := session.DecodeToken(c, raw); !errors.Is(err, secrets.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestDecodeToken_Garbage(t *testing.T) {
	c := newCipher(t)

	if _, err := session.DecodeToken(c, "nope"); !errors.Is(err, secrets.ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	fresh := session.Token{Exp: now.Add(time.Minute).Unix()}
	stale := session.Token{Exp: now.Add(-time.Minute).Unix()}

	if fresh.Expired(now) {
		t.Fatal("future token reported expired")
	}
	if !stale.Expired(now) {
		t.Fatal("past token reported fresh")
	}
}

func TestStateRoundTrip(t *testing.T) {
	c := newCipher(t)
	in := session.StatePassthrough{
		Key:              "state-key",
		UnixTime:         time.Now().Unix(),
		IdentityProvider: "Google",
	}

	raw, err := session.EncodeState(c, in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	out, err := session.DecodeState(c, raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestSessionAuthenticated(t *testing.T) {
	var nilSession *session.Session
	if nilSession.Authenticated() {
		t.Fatal("nil session reported authenticated")
	}
	if (&session.Session{}).Authenticated() {
		t.Fatal("empty session reported authenticated")
	}
	sess := &session.Session{Me: &entity.User{ID: "user-id"}}
	if !sess.Authenticated() {
		t.Fatal("populated session reported unauthenticated")
	}
}
