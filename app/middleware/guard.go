package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/session"
)

// GuardResult is the tagged outcome of a route guard: allow, redirect, or an
// explicit error status.
type GuardResult struct {
	Allow    bool
	Redirect string
	Status   int
}

func allow() GuardResult {
	return GuardResult{Allow: true}
}

func redirect(target string) GuardResult {
	return GuardResult{Redirect: target}
}

func deny(status int) GuardResult {
	return GuardResult{Status: status}
}

// Guard is a pure predicate over the resolved session. Guards never panic;
// every outcome is a continuation, a redirect, or a status.
type Guard func(*session.Session) GuardResult

func VerifyAuthenticated(sess *session.Session) GuardResult {
	if !sess.Authenticated() {
		return redirect("/login")
	}
	return allow()
}

// VerifyAdmin rejects pending users with an explicit error rather than a
// redirect: a pending account reaching an admin route is a mis-routing, not
// a login problem.
func VerifyAdmin(sess *session.Session) GuardResult {
	if !sess.Authenticated() {
		return redirect("/login")
	}
	if sess.Me.IsPending() {
		return deny(http.StatusForbidden)
	}
	return allow()
}

func VerifyOwner(sess *session.Session) GuardResult {
	if !sess.Authenticated() {
		return redirect("/login")
	}
	if sess.Me.Role != entity.RoleOwner {
		return redirect("/login")
	}
	if sess.Me.IsPending() {
		return deny(http.StatusForbidden)
	}
	return allow()
}

// VerifyPending gates the signup-only routes. A fully registered user
// hitting them gets a 404 rather than a silent redirect.
func VerifyPending(sess *session.Session) GuardResult {
	if !sess.Authenticated() {
		return redirect("/login")
	}
	if !sess.Me.IsPending() {
		return deny(http.StatusNotFound)
	}
	return allow()
}

// Require applies guards in order; the first denial wins.
func Require(guards ...Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c)
			for _, guard := range guards {
				result := guard(sess)
				if result.Allow {
					continue
				}
				if result.Redirect != "" {
					return c.Redirect(http.StatusFound, result.Redirect)
				}
				return echo.NewHTTPError(result.Status)
			}
			return next(c)
		}
	}
}
