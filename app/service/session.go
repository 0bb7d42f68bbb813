package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/session"
	"github.com/modelboard/webapp/config"
	"github.com/modelboard/webapp/pkg/password"
	"github.com/modelboard/webapp/pkg/secrets"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
	ErrNotPending         = errors.New("user has already completed signup")
)

// SessionService owns the session/token lifecycle: per-request resolution
// with transparent access-token rotation, login session issuance, signup
// invitations and their consumption.
type SessionService struct {
	cfg    *config.Config
	cipher *secrets.Cipher
	store  *Store
	users  *repository.UserRepository
}

func NewSessionService(cfg *config.Config, cipher *secrets.Cipher, store *Store, users *repository.UserRepository) *SessionService {
	return &SessionService{
		cfg:    cfg,
		cipher: cipher,
		store:  store,
		users:  users,
	}
}

// Resolution is the outcome of resolving a session cookie. Failed resolution
// downgrades the request to unauthenticated; it never produces an error.
type Resolution struct {
	Session *session.Session
	// SetCookie carries a re-encrypted session token after rotation.
	SetCookie    string
	CookieExpiry time.Time
	// ClearCookie is set when the inbound cookie proved invalid.
	ClearCookie bool
}

// Resolve runs the session state machine for one request: decrypt, look up
// the user, and either accept the token as-is or rotate an expired access
// token against its stored refresh token.
func (s *SessionService) Resolve(ctx context.Context, loaders *repository.Loaders, rawCookie string) Resolution {
	sess := &session.Session{Loaders: loaders}
	if rawCookie == "" {
		return Resolution{Session: sess}
	}

	failed := func(reason string) Resolution {
		logrus.WithField("reason", reason).Debug("session resolution failed")
		sess.Me = nil
		sess.Token = nil
		return Resolution{Session: sess, ClearCookie: true}
	}

	token, err := session.DecodeToken(s.cipher, rawCookie)
	if err != nil {
		return failed("undecryptable cookie")
	}

	me, err := loaders.User.Load(ctx, token.Sub)
	if err != nil || me == nil {
		return failed("unknown subject")
	}
	sess.Me = me
	sess.Token = &token

	now := time.Now()
	if !token.Expired(now) {
		return Resolution{Session: sess}
	}

	refreshToken, err := loaders.RefreshTokenByAccessTokenID.Load(ctx, token.ID)
	if err != nil || refreshToken == nil {
		return failed("no refresh token for access token")
	}
	if refreshToken.Expired(now) {
		return failed("refresh token expired")
	}

	newAccessTokenID := uuid.New().String()
	newToken := session.Token{
		Sub: me.ID,
		Exp: now.Add(s.cfg.AccessTokenTTL).Unix(),
		ID:  newAccessTokenID,
	}

	rotated, err := s.store.RotateRefreshToken(ctx, sess, refreshToken, newAccessTokenID)
	if err != nil {
		return failed("rotation write failed")
	}
	if !rotated {
		// Lost the rotation race to a concurrent request. The other
		// request's cookie is now the live lineage; this one re-logins.
		return failed("rotation superseded")
	}

	encrypted, err := session.EncodeToken(s.cipher, newToken)
	if err != nil {
		return failed("token encode failed")
	}

	sess.Token = &newToken
	return Resolution{
		Session:      sess,
		SetCookie:    encrypted,
		CookieExpiry: refreshToken.ExpiresAt,
	}
}

type SignupOutcome int

const (
	SignupInvalid SignupOutcome = iota
	SignupExpired
	SignupValid
)

type SignupResolution struct {
	Outcome SignupOutcome
	Session *session.Session
	// SetCookie carries the invitation token re-encrypted for the
	// signupSession cookie. Rotated marks that the stored access-token
	// lineage changed, so a cookie-sourced token must be rewritten or the
	// browser keeps replaying the retired id.
	SetCookie string
	Rotated   bool
}

// ResolveSignup validates a signup invitation token, from either the
// ?token= query parameter or the signupSession cookie. An expired but
// structurally valid invitation is distinguished from garbage so the caller
// can route to an explicit expiry page.
func (s *SessionService) ResolveSignup(ctx context.Context, loaders *repository.Loaders, raw string) SignupResolution {
	sess := &session.Session{Loaders: loaders}
	if raw == "" {
		return SignupResolution{Outcome: SignupInvalid, Session: sess}
	}

	token, err := session.DecodeToken(s.cipher, raw)
	if err != nil {
		return SignupResolution{Outcome: SignupInvalid, Session: sess}
	}

	me, err := loaders.User.Load(ctx, token.Sub)
	if err != nil || me == nil {
		return SignupResolution{Outcome: SignupInvalid, Session: sess}
	}
	sess.Me = me
	sess.Token = &token

	now := time.Now()
	tokenRotated := false
	if token.Expired(now) {
		refreshToken, err := loaders.RefreshTokenByAccessTokenID.Load(ctx, token.ID)
		if err != nil || refreshToken == nil || refreshToken.Expired(now) {
			sess.Me = nil
			sess.Token = nil
			return SignupResolution{Outcome: SignupExpired, Session: sess}
		}

		newAccessTokenID := uuid.New().String()
		newToken := session.Token{
			Sub: me.ID,
			Exp: now.Add(s.cfg.AccessTokenTTL).Unix(),
			ID:  newAccessTokenID,
		}
		rotated, err := s.store.RotateRefreshToken(ctx, sess, refreshToken, newAccessTokenID)
		if err != nil || !rotated {
			sess.Me = nil
			sess.Token = nil
			return SignupResolution{Outcome: SignupExpired, Session: sess}
		}
		token = newToken
		sess.Token = &token
		tokenRotated = true
	}

	encrypted, err := session.EncodeToken(s.cipher, token)
	if err != nil {
		sess.Me = nil
		sess.Token = nil
		return SignupResolution{Outcome: SignupInvalid, Session: sess}
	}

	return SignupResolution{Outcome: SignupValid, Session: sess, SetCookie: encrypted, Rotated: tokenRotated}
}

// IssuedSession is a freshly minted login session: the encrypted cookie value
// plus the refresh window it is valid within.
type IssuedSession struct {
	Cookie  string
	Expires time.Time
	User    *entity.User
}

// Login authenticates an email/password pair and mints a new session.
func (s *SessionService) Login(ctx context.Context, loaders *repository.Loaders, email, pw string) (*IssuedSession, error) {
	user, err := s.users.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.AuthMethod != entity.AuthMethodEmail {
		return nil, ErrInvalidCredentials
	}
	if !user.PasswordEncrypted.Valid || !user.PasswordSalt.Valid {
		return nil, ErrInvalidCredentials
	}

	ok, err := password.Verify(pw, user.PasswordEncrypted.String, user.PasswordSalt.String)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	return s.IssueSession(ctx, loaders, user)
}

// LoginWithProvider resolves the provider-verified email to a local user and
// mints a session. Unknown emails fail; OAuth login never provisions
// accounts. A pending user completing signup through a provider has their
// auth method transitioned to that provider.
func (s *SessionService) LoginWithProvider(ctx context.Context, loaders *repository.Loaders, email string, method entity.AuthMethod) (*IssuedSession, error) {
	user, err := s.users.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}

	if user.IsPending() {
		sess := &session.Session{Me: user, Loaders: loaders}
		user, err = s.store.UpdateUser(ctx, sess, UserPatch{ID: user.ID, AuthMethod: &method})
		if err != nil {
			return nil, err
		}
	}

	return s.IssueSession(ctx, loaders, user)
}

// IssueSession creates a refresh-token row for the user and encodes the
// matching session cookie. The user acts as their own audit stamp.
func (s *SessionService) IssueSession(ctx context.Context, loaders *repository.Loaders, user *entity.User) (*IssuedSession, error) {
	sess := &session.Session{Me: user, Loaders: loaders}
	accessTokenID := uuid.New().String()
	now := time.Now()

	refreshToken, err := s.store.CreateRefreshToken(ctx, sess, user.ID, accessTokenID, now.Add(s.cfg.RefreshTokenTTL))
	if err != nil {
		return nil, err
	}

	cookie, err := session.EncodeToken(s.cipher, session.Token{
		Sub: user.ID,
		Exp: now.Add(s.cfg.AccessTokenTTL).Unix(),
		ID:  accessTokenID,
	})
	if err != nil {
		return nil, err
	}

	return &IssuedSession{Cookie: cookie, Expires: refreshToken.ExpiresAt, User: user}, nil
}

// Logout retires the refresh-token lineage behind the current session token.
func (s *SessionService) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.Me == nil || sess.Token == nil {
		return nil
	}
	refreshToken, err := sess.Loaders.RefreshTokenByAccessTokenID.Load(ctx, sess.Token.ID)
	if err != nil {
		return err
	}
	if refreshToken == nil {
		return nil
	}
	return s.store.DeleteRefreshToken(ctx, sess, refreshToken.ID)
}

// Invitation is a signup invitation bound to a pending user.
type Invitation struct {
	Token        string
	RefreshToken *entity.RefreshToken
	URL          string
}

// IssueInvitation creates a signup-window refresh token for a pending user
// and returns the encrypted invitation token for an emailed link.
func (s *SessionService) IssueInvitation(ctx context.Context, sess *session.Session, user *entity.User) (*Invitation, error) {
	if !user.IsPending() {
		return nil, ErrNotPending
	}

	accessTokenID := uuid.New().String()
	now := time.Now()

	refreshToken, err := s.store.CreateRefreshToken(ctx, sess, user.ID, accessTokenID, now.Add(s.cfg.SignupWindowTTL))
	if err != nil {
		return nil, err
	}

	token, err := session.EncodeToken(s.cipher, session.Token{
		Sub: user.ID,
		Exp: now.Add(s.cfg.AccessTokenTTL).Unix(),
		ID:  accessTokenID,
	})
	if err != nil {
		return nil, err
	}

	return &Invitation{
		Token:        token,
		RefreshToken: refreshToken,
		URL:          s.cfg.WebsiteDomain + "/signup?token=" + url.QueryEscape(token),
	}, nil
}

// CompleteSignup sets the pending user's derived password and transitions
// them to email auth, then mints their first real login session. The
// pending-only guard is the enforcement point against double completion.
func (s *SessionService) CompleteSignup(ctx context.Context, sess *session.Session, pw string) (*IssuedSession, error) {
	me, err := actingUser(sess)
	if err != nil {
		return nil, err
	}
	if !me.IsPending() {
		return nil, ErrNotPending
	}

	if err := s.cfg.PasswordPolicy.Validate(pw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	encrypted, salt, err := password.Derive(pw)
	if err != nil {
		return nil, err
	}

	method := entity.AuthMethodEmail
	updated, err := s.store.UpdateUser(ctx, sess, UserPatch{
		ID:                me.ID,
		AuthMethod:        &method,
		PasswordEncrypted: &encrypted,
		PasswordSalt:      &salt,
	})
	if err != nil {
		return nil, err
	}

	return s.IssueSession(ctx, sess.Loaders, updated)
}
