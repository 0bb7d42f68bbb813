package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/modelboard/webapp/app/middleware"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/view"
	"github.com/modelboard/webapp/config"
)

type OAuthController struct {
	cfg      *config.Config
	sessions *service.SessionService
	gateway  *service.ProviderGateway
	cookies  *middleware.SessionMiddleware
}

func NewOAuthController(cfg *config.Config, sessions *service.SessionService, gateway *service.ProviderGateway, cookies *middleware.SessionMiddleware) *OAuthController {
	return &OAuthController{
		cfg:      cfg,
		sessions: sessions,
		gateway:  gateway,
		cookies:  cookies,
	}
}

// Callback handles the provider redirect. The encrypted state parameter is
// decrypted before anything in it is trusted; a missing code or state is a
// no-op re-render of the login page, not an error.
func (c *OAuthController) Callback(ctx echo.Context) error {
	code := ctx.QueryParam("code")
	state := ctx.QueryParam("state")
	if code == "" || state == "" {
		return ctx.Render(http.StatusOK, "login", view.LoginPage{Page: view.Page{Title: "Log in"}})
	}

	passthrough, err := c.gateway.DecodeState(state)
	if err != nil || passthrough.Key != c.cfg.StatePassthroughKey {
		logrus.Debug("oauth callback with unverifiable state")
		return ctx.Render(http.StatusOK, "login", view.LoginPage{Page: view.Page{Title: "Log in"}})
	}

	provider, err := service.ParseIdentityProvider(passthrough.IdentityProvider)
	if err != nil {
		return failedLogin(ctx)
	}

	credentials, err := c.gateway.ExchangeCode(ctx.Request().Context(), provider, code)
	if err != nil {
		logrus.WithError(err).Info("oauth code exchange failed")
		return failedLogin(ctx)
	}

	sess := middleware.SessionFromContext(ctx)
	issued, err := c.sessions.LoginWithProvider(ctx.Request().Context(), sess.Loaders, credentials.Email, provider.AuthMethod())
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}

	c.cookies.ClearSignupCookie(ctx)
	c.cookies.SetSessionCookie(ctx, issued.Cookie, issued.Expires)
	return ctx.Redirect(http.StatusFound, "/dashboard")
}

// failedLogin keeps provider failures generic: stay on the login page, no
// provider internals in the response.
func failedLogin(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "login", view.LoginPage{
		Page:        view.Page{Title: "Log in"},
		LoginFailed: true,
	})
}
