package controller_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/modelboard/webapp/app/controller"
	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/middleware"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/session"
	"github.com/modelboard/webapp/app/view"
	"github.com/modelboard/webapp/config"
	"github.com/modelboard/webapp/pkg/password"
	"github.com/modelboard/webapp/pkg/secrets"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
)

const (
	testSessionKey = "0123456789abcdef0123456789abcdef"

	findUserByEmailQuery      = `(?s)SELECT id, email, canonical_email, role, auth_method, password_encrypted, password_salt,\s+organization_id, created_by_id, updated_by_id, created_date, updated_date, is_deleted\s+FROM users WHERE canonical_email = \? AND is_deleted = 0`
	insertRefreshTokenQuery   = `(?s)INSERT INTO refresh_tokens \(id, user_id, access_token_id, expires_at, created_by_id, updated_by_id,\s+created_date, updated_date, is_deleted\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)`
	findRefreshTokenByIDQuery = `(?s)SELECT id, user_id, access_token_id, expires_at, created_by_id, updated_by_id,\s+created_date, updated_date, is_deleted\s+FROM refresh_tokens WHERE id = \? AND is_deleted = 0`
)

var (
	userColumns = []string{
		"id", "email", "canonical_email", "role", "auth_method", "password_encrypted", "password_salt",
		"organization_id", "created_by_id", "updated_by_id", "created_date", "updated_date", "is_deleted",
	}
	refreshTokenColumns = []string{
		"id", "user_id", "access_token_id", "expires_at", "created_by_id", "updated_by_id",
		"created_date", "updated_date", "is_deleted",
	}
)

type controllerFixture struct {
	e       *echo.Echo
	login   *controller.LoginController
	signup  *controller.SignupController
	loaders *repository.Loaders
	mock    sqlmock.Sqlmock
	cfg     *config.Config
}

func newControllerFixture(t *testing.T) (*controllerFixture, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	cipher, err := secrets.NewCipher(testSessionKey)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	cfg := &config.Config{
		SessionEncryptionKey: testSessionKey,
		StatePassthroughKey:  "state-key",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		SignupWindowTTL:      7 * 24 * time.Hour,
		WebsiteDomain:        "http://localhost:8080",
		OAuthCallbackPath:    "oauth/response",
		CookieDomain:         "localhost",
		Stage:                "local",
		Google:               config.OAuthClient{ClientID: "google-client"},
		PasswordPolicy:       config.PasswordPolicy{MinLength: 12},
	}

	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	listings := repository.NewListingRepository(db)
	store := service.NewStore(users, tokens, listings)
	sessions := service.NewSessionService(cfg, cipher, store, users)
	gateway := service.NewProviderGateway(cfg, cipher)
	cookies := middleware.NewSessionMiddleware(cfg, sessions, users, tokens, listings)

	e := echo.New()
	renderer, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("failed to build renderer: %v", err)
	}
	e.Renderer = renderer

	return &controllerFixture{
		e:       e,
		login:   controller.NewLoginController(sessions, gateway, cookies),
		signup:  controller.NewSignupController(cfg, sessions, cookies),
		loaders: repository.NewLoaders(users, tokens, listings),
		mock:    mock,
		cfg:     cfg,
	}, func() { _ = db.Close() }
}

func (f *controllerFixture) formRequest(target string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req, httptest.NewRecorder()
}

func (f *controllerFixture) contextWithSession(req *http.Request, rec *httptest.ResponseRecorder, sess interface{}) echo.Context {
	ctx := f.e.NewContext(req, rec)
	ctx.Set("webapp_session", sess)
	return ctx
}

func TestLoginController_GetLogin(t *testing.T) {
	f, cleanup := newControllerFixture(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	ctx := f.e.NewContext(req, rec)

	if err := f.login.GetLogin(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Log in") {
		t.Fatal("expected login page body")
	}
}

func TestLoginController_PostLogin_ValidationErrors(t *testing.T) {
	f, cleanup := newControllerFixture(t)
	defer cleanup()

	req, rec := f.formRequest("/login", url.Values{"email": {"not-an-email"}, "password": {""}})
	ctx := f.contextWithSession(req, rec, &session.Session{Loaders: f.loaders})

	if err := f.login.PostLogin(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Please enter a valid email address.") {
		t.Fatalf("expected email field error, got: %s", body)
	}
	if !strings.Contains(body, "Password is required.") {
		t.Fatalf("expected password field error, got: %s", body)
	}
	if !strings.Contains(body, `value="not-an-email"`) {
		t.Fatal("expected submitted email to be preserved")
	}
}

func TestLoginController_PostLogin_InvalidCredentials(t *testing.T) {
	f, cleanup := newControllerFixture(t)
	defer cleanup()

	f.mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	req, rec := f.formRequest("/login", url.Values{
		"email":    {"nobody@example.com"},
		"password": {"whatever-password"},
	})
	ctx := f.contextWithSession(req, rec, &session.Session{Loaders: f.loaders})

	if err := f.login.PostLogin(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Login failed.") {
		t.Fatal("expected generic login failure message")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("failed login must not set cookies")
	}
}

func TestLoginController_PostLogin_Success(t *testing.T) {
	f, cleanup := newControllerFixture(t)
	defer cleanup()

	encrypted, salt, err := password.Derive("correct-horse-battery")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	now := time.Now()
	refreshExpiry := now.Add(f.cfg.RefreshTokenTTL).Truncate(time.Second)

	f.mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			"user-id", "user@example.com", "user@example.com",
			string(entity.RoleMember), string(entity.AuthMethodEmail),
			sql.NullString{String: encrypted, Valid: true},
			sql.NullString{String: salt, Valid: true},
			sql.NullString{},
			"creator", "creator", now, now, false,
		))
	f.mock.ExpectExec(insertRefreshTokenQuery).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(findRefreshTokenByIDQuery).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			"token-id", "user-id", "access-id", refreshExpiry,
			"user-id", "user-id", now, now, false,
		))

	req, rec := f.formRequest("/login", url.Values{
		"email":    {"user@example.com"},
		"password": {"correct-horse-battery"},
	})
	ctx := f.contextWithSession(req, rec, &session.Session{Loaders: f.loaders})

	if err := f.login.PostLogin(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", loc)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("expected session cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginController_ProviderRedirect(t *testing.T) {
	f, cleanup := newControllerFixture(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/login/Google", nil)
	rec := httptest.NewRecorder()
	ctx := f.e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("Google")

	if err := f.login.ProviderRedirect(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Fatalf("expected Google authorization URL, got %q", loc)
	}
	if !strings.Contains(loc, "state=") {
		t.Fatal("expected encrypted state in authorization URL")
	}
}

func TestLoginController_ProviderRedirect_UnknownProvider(t *testing.T) {
	f, cleanup := newControllerFixture(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/login/Facebook", nil)
	rec := httptest.NewRecorder()
	ctx := f.e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("Facebook")

	err := f.login.ProviderRedirect(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
}
