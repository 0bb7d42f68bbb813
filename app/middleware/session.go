package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/session"
	"github.com/modelboard/webapp/config"
)

const (
	SessionCookie       = "session"
	SignupSessionCookie = "signupSession"

	sessionContextKey = "webapp_session"
)

// SessionFromContext returns the session resolved by the Resolve middleware.
// Routes registered outside the middleware get an empty session.
func SessionFromContext(c echo.Context) *session.Session {
	if sess, ok := c.Get(sessionContextKey).(*session.Session); ok {
		return sess
	}
	return &session.Session{}
}

// SessionMiddleware resolves the authentication state of every request
// before route handling: a fresh per-request loader cache, cookie
// decryption, access-token rotation with cookie rewrite, and the signup
// invitation variant for /signup?token= requests.
type SessionMiddleware struct {
	cfg           *config.Config
	sessions      *service.SessionService
	users         *repository.UserRepository
	refreshTokens *repository.RefreshTokenRepository
	listings      *repository.ListingRepository
}

func NewSessionMiddleware(
	cfg *config.Config,
	sessions *service.SessionService,
	users *repository.UserRepository,
	refreshTokens *repository.RefreshTokenRepository,
	listings *repository.ListingRepository,
) *SessionMiddleware {
	return &SessionMiddleware{
		cfg:           cfg,
		sessions:      sessions,
		users:         users,
		refreshTokens: refreshTokens,
		listings:      listings,
	}
}

func (m *SessionMiddleware) Resolve(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		loaders := repository.NewLoaders(m.users, m.refreshTokens, m.listings)
		ctx := c.Request().Context()

		if raw := cookieValue(c, SignupSessionCookie); raw != "" {
			res := m.sessions.ResolveSignup(ctx, loaders, raw)
			switch res.Outcome {
			case service.SignupValid:
				if res.Rotated {
					m.setCookie(c, SignupSessionCookie, res.SetCookie, time.Time{})
				}
				c.Set(sessionContextKey, res.Session)
				return next(c)
			case service.SignupExpired:
				m.clearCookie(c, SignupSessionCookie)
				c.Set(sessionContextKey, res.Session)
				if c.Path() != "/signup/expired" {
					return c.Redirect(http.StatusFound, "/signup/expired")
				}
				return next(c)
			default:
				m.clearCookie(c, SignupSessionCookie)
				c.Set(sessionContextKey, res.Session)
				return next(c)
			}
		}

		if raw := cookieValue(c, SessionCookie); raw != "" {
			res := m.sessions.Resolve(ctx, loaders, raw)
			if res.ClearCookie {
				m.clearCookie(c, SessionCookie)
			}
			if res.SetCookie != "" {
				m.SetSessionCookie(c, res.SetCookie, res.CookieExpiry)
			}
			c.Set(sessionContextKey, res.Session)
			return next(c)
		}

		// Signup entry point: the invitation token arrives as a query
		// parameter instead of a cookie.
		if c.Path() == "/signup" {
			if token := c.QueryParam("token"); token != "" {
				res := m.sessions.ResolveSignup(ctx, loaders, token)
				switch res.Outcome {
				case service.SignupValid:
					m.setCookie(c, SignupSessionCookie, res.SetCookie, time.Time{})
					c.Set(sessionContextKey, res.Session)
					return c.Redirect(http.StatusFound, "/signup/options")
				case service.SignupExpired:
					c.Set(sessionContextKey, res.Session)
					return c.Redirect(http.StatusFound, "/signup/expired")
				}
			}
		}

		c.Set(sessionContextKey, &session.Session{Loaders: loaders})
		return next(c)
	}
}

// SetSessionCookie writes the session cookie with expiry aligned to the
// refresh window.
func (m *SessionMiddleware) SetSessionCookie(c echo.Context, value string, expires time.Time) {
	m.setCookie(c, SessionCookie, value, expires)
}

func (m *SessionMiddleware) SetSignupCookie(c echo.Context, value string) {
	m.setCookie(c, SignupSessionCookie, value, time.Time{})
}

func (m *SessionMiddleware) ClearSessionCookie(c echo.Context) {
	m.clearCookie(c, SessionCookie)
}

func (m *SessionMiddleware) ClearSignupCookie(c echo.Context) {
	m.clearCookie(c, SignupSessionCookie)
}

func (m *SessionMiddleware) setCookie(c echo.Context, name, value string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   m.cfg.CookieDomain,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *SessionMiddleware) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   m.cfg.CookieDomain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies(),
		SameSite: http.SameSiteStrictMode,
	})
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}
