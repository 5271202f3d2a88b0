package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/apperr"
	"github.com/onebills/onebills/internal/auth"
)

// RateLimit throttles requests per client IP under the given scope. Limiter
// failures let the request through.
func RateLimit(limiter auth.Limiter, scope string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		key := scope + ":" + c.IP()
		ok, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			logger.Warn("http.rate_limit_unavailable", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}
		if !ok {
			return apperr.New(apperr.AuthRateLimit, "too many requests from "+c.IP(),
				"Too many attempts. Please wait a few minutes and try again.")
		}
		return c.Next()
	}
}
