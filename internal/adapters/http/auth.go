package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/mapme/internal/core/domain"
)

const (
	sessionAthleteKey = "athlete_id"
	sessionStateKey   = "oauth_state"
)

// sessionAthleteID returns the athlete signed in on this request's session.
func sessionAthleteID(c *fiber.Ctx, deps *Dependencies) (int64, bool) {
	if deps.Sessions == nil {
		return 0, false
	}
	sess, err := deps.Sessions.Get(c)
	if err != nil {
		return 0, false
	}
	id, ok := sess.Get(sessionAthleteKey).(int64)
	return id, ok && id != 0
}

// StravaLoginHandler redirects the browser to the Strava consent page.
func StravaLoginHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Sessions == nil {
			return errInternal(c, "sessions not configured")
		}
		sess, err := deps.Sessions.Get(c)
		if err != nil {
			return errInternal(c, err.Error())
		}

		url, state := deps.Auth.LoginURL()
		sess.Set(sessionStateKey, state)
		if err := sess.Save(); err != nil {
			return errInternal(c, err.Error())
		}
		return c.Redirect(url, fiber.StatusFound)
	}
}

// StravaCallbackHandler completes the sign-in and starts a session.
func StravaCallbackHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Sessions == nil {
			return errInternal(c, "sessions not configured")
		}
		if reason := c.Query("error"); reason != "" {
			return errUnauthorized(c, "strava authorization failed: "+reason)
		}

		sess, err := deps.Sessions.Get(c)
		if err != nil {
			return errInternal(c, err.Error())
		}
		want, _ := sess.Get(sessionStateKey).(string)
		if want == "" || c.Query("state") != want {
			return errBadRequest(c, "invalid oauth state")
		}

		code := c.Query("code")
		if code == "" {
			return errBadRequest(c, "code query parameter is required")
		}

		a, err := deps.Auth.Callback(c.UserContext(), code)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("strava sign-in failed", "error", err)
			return errUnauthorized(c, "strava sign-in failed")
		}

		if err := sess.Regenerate(); err != nil {
			return errInternal(c, err.Error())
		}
		sess.Delete(sessionStateKey)
		sess.Set(sessionAthleteKey, a.ID)
		if err := sess.Save(); err != nil {
			return errInternal(c, err.Error())
		}

		LoggerFromCtx(c.UserContext()).Info("athlete signed in", "athlete_id", a.ID)
		target := deps.SuccessRedirect
		if target == "" {
			target = "/"
		}
		return c.Redirect(target, fiber.StatusFound)
	}
}

// MeHandler returns the signed-in athlete.
func MeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := sessionAthleteID(c, deps)
		if !ok {
			return errUnauthorized(c, "not signed in")
		}
		a, err := deps.Athletes.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errUnauthorized(c, "athlete no longer exists")
			}
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "private, no-store")
		return c.JSON(a)
	}
}

// LogoutHandler ends the session.
func LogoutHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Sessions != nil {
			if sess, err := deps.Sessions.Get(c); err == nil {
				_ = sess.Destroy()
			}
		}
		return c.Status(fiber.StatusNoContent).Send(nil)
	}
}
