package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	dto "github.com/modelboard/webapp/app/dto/http"
	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/middleware"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/session"
)

// InviteController lets owners invite new members by email. Inviting an
// address that already belongs to a pending user re-issues the invitation
// instead of creating a duplicate account.
type InviteController struct {
	sessions *service.SessionService
	store    *service.Store
	users    *repository.UserRepository
	mailer   service.Mailer
}

func NewInviteController(sessions *service.SessionService, store *service.Store, users *repository.UserRepository, mailer service.Mailer) *InviteController {
	return &InviteController{
		sessions: sessions,
		store:    store,
		users:    users,
		mailer:   mailer,
	}
}

func (c *InviteController) PostInvite(ctx echo.Context) error {
	var form dto.InviteForm
	if err := ctx.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest)
	}
	if errs := form.Validate(); !errs.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, errs["email"])
	}

	sess := middleware.SessionFromContext(ctx)
	user, err := c.inviteeFor(ctx.Request().Context(), sess, form.Email)
	if err != nil {
		return err
	}

	invitation, err := c.sessions.IssueInvitation(ctx.Request().Context(), sess, user)
	if err != nil {
		return err
	}

	if err := c.mailer.SendInvitation(user.Email, invitation.URL); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("invitation mail failed")
		return err
	}

	return ctx.Redirect(http.StatusFound, "/dashboard")
}

func (c *InviteController) inviteeFor(ctx context.Context, sess *session.Session, email string) (*entity.User, error) {
	existing, err := c.users.FindByCanonicalEmail(ctx, service.CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.IsPending() {
			return nil, echo.NewHTTPError(http.StatusConflict, "User has already signed up.")
		}
		return existing, nil
	}

	return c.store.CreateUser(ctx, sess, service.NewUser{
		Email:      email,
		Role:       entity.RoleMember,
		AuthMethod: entity.AuthMethodPending,
	})
}
