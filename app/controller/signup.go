package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/modelboard/webapp/app/dto/http"
	"github.com/modelboard/webapp/app/middleware"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/view"
	"github.com/modelboard/webapp/config"
)

type SignupController struct {
	cfg      *config.Config
	sessions *service.SessionService
	cookies  *middleware.SessionMiddleware
}

func NewSignupController(cfg *config.Config, sessions *service.SessionService, cookies *middleware.SessionMiddleware) *SignupController {
	return &SignupController{
		cfg:      cfg,
		sessions: sessions,
		cookies:  cookies,
	}
}

func (c *SignupController) GetSignup(ctx echo.Context) error {
	sess := middleware.SessionFromContext(ctx)
	return ctx.Render(http.StatusOK, "signup", view.SignupPage{
		Page:  view.Page{Title: "Sign up"},
		Email: sess.Me.Email,
	})
}

func (c *SignupController) GetSignupOptions(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "signup_options", view.Page{Title: "Sign up"})
}

func (c *SignupController) GetSignupExpired(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "signup_expired", view.Page{Title: "Invitation expired"})
}

// PostSignup completes a pending user's signup: password set, auth method
// transition, first real session. The pending-only guard in front of this
// route is what prevents a second completion.
func (c *SignupController) PostSignup(ctx echo.Context) error {
	var form dto.SignupForm
	if err := ctx.Bind(&form); err != nil {
		return ctx.Render(http.StatusBadRequest, "signup", view.SignupPage{
			Page: view.Page{Title: "Sign up"},
		})
	}

	if errs := form.Validate(c.cfg.PasswordPolicy.MinLength); !errs.Valid() {
		return ctx.Render(http.StatusOK, "signup", view.SignupPage{
			Page:   view.Page{Title: "Sign up"},
			Email:  form.Email,
			Errors: errs,
		})
	}

	sess := middleware.SessionFromContext(ctx)
	issued, err := c.sessions.CompleteSignup(ctx.Request().Context(), sess, form.Password)
	if err != nil {
		return err
	}

	c.cookies.ClearSignupCookie(ctx)
	c.cookies.SetSessionCookie(ctx, issued.Cookie, issued.Expires)
	return ctx.Redirect(http.StatusFound, "/dashboard")
}
