package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/apperr"
	"github.com/onebills/onebills/internal/metrics"
)

// Metrics records the latency of every bridge call under its route pattern.
// Failed calls are labelled with the status the error handler will render.
func Metrics(rec metrics.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}
		rec.RecordHTTPRequest(c.Route().Path, status, time.Since(start))
		return err
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.HTTPStatus(apperr.Normalize(err).Code)
}
