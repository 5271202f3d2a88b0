package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/apperr"
)

// UserSource reports the identity currently signed in on this device.
type UserSource interface {
	CurrentUserID() string
}

// RequireUser rejects requests while nobody is signed in and exposes the user
// id to handlers through the "user_id" local.
func RequireUser(source UserSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := source.CurrentUserID()
		if uid == "" {
			return apperr.New(apperr.AuthNotAuthenticated, "no signed-in user", "You need to sign in to continue.")
		}
		c.Locals("user_id", uid)
		return c.Next()
	}
}

// RequireSecret admits only requests whose header carries secret. It guards
// callbacks from services outside the device, such as identity verification.
func RequireSecret(header, secret string) fiber.Handler {
	want := []byte(secret)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(header))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			return apperr.New(apperr.AuthNotAuthenticated, "missing or wrong "+header, "You are not allowed to do that.")
		}
		return c.Next()
	}
}
