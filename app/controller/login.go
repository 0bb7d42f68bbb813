package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	dto "github.com/modelboard/webapp/app/dto/http"
	"github.com/modelboard/webapp/app/middleware"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/view"
)

type LoginController struct {
	sessions *service.SessionService
	gateway  *service.ProviderGateway
	cookies  *middleware.SessionMiddleware
}

func NewLoginController(sessions *service.SessionService, gateway *service.ProviderGateway, cookies *middleware.SessionMiddleware) *LoginController {
	return &LoginController{
		sessions: sessions,
		gateway:  gateway,
		cookies:  cookies,
	}
}

func (c *LoginController) GetLogin(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "login", view.LoginPage{Page: view.Page{Title: "Log in"}})
}

func (c *LoginController) PostLogin(ctx echo.Context) error {
	var form dto.LoginForm
	if err := ctx.Bind(&form); err != nil {
		return ctx.Render(http.StatusBadRequest, "login", view.LoginPage{
			Page: view.Page{Title: "Log in"},
		})
	}

	if errs := form.Validate(); !errs.Valid() {
		return ctx.Render(http.StatusOK, "login", view.LoginPage{
			Page:   view.Page{Title: "Log in"},
			Email:  form.Email,
			Errors: errs,
		})
	}

	sess := middleware.SessionFromContext(ctx)
	issued, err := c.sessions.Login(ctx.Request().Context(), sess.Loaders, form.Email, form.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.Render(http.StatusOK, "login", view.LoginPage{
				Page:        view.Page{Title: "Log in"},
				Email:       form.Email,
				LoginFailed: true,
			})
		}
		return err
	}

	c.cookies.SetSessionCookie(ctx, issued.Cookie, issued.Expires)
	return ctx.Redirect(http.StatusFound, "/dashboard")
}

// ProviderRedirect sends the browser to the identity provider's
// authorization endpoint, optionally pre-filling the account picker.
func (c *LoginController) ProviderRedirect(ctx echo.Context) error {
	provider, err := service.ParseIdentityProvider(ctx.Param("provider"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	authURL, err := c.gateway.BuildAuthorizationURL(provider, ctx.QueryParam("login_hint"))
	if err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, authURL)
}

func (c *LoginController) PostLogout(ctx echo.Context) error {
	sess := middleware.SessionFromContext(ctx)
	if err := c.sessions.Logout(ctx.Request().Context(), sess); err != nil {
		logrus.WithError(err).Warn("failed to retire refresh token on logout")
	}
	c.cookies.ClearSessionCookie(ctx)
	return ctx.Redirect(http.StatusFound, "/login")
}
