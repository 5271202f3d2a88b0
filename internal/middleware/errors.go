package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/onebills/onebills/internal/apperr"
)

// ErrorBody is the JSON shape of every failed bridge response.
type ErrorBody struct {
	Code        string `json:"code"`
	UserMessage string `json:"user_message"`
}

// ErrorHandler renders errors as ErrorBody. Service errors are normalized
// first, so raw backend text never reaches the UI.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorBody{Code: string(codeForStatus(fe.Code)), UserMessage: fe.Message})
		}

		appErr := apperr.Normalize(err)
		status := apperr.HTTPStatus(appErr.Code)
		if status >= http.StatusInternalServerError {
			requestID, _ := c.Locals(requestIDHeader).(string)
			logger.Error("http.failed",
				slog.String("path", c.Path()),
				slog.String("code", string(appErr.Code)),
				slog.String("request_id", requestID),
				slog.Any("error", err))
		}
		return c.Status(status).JSON(ErrorBody{Code: string(appErr.Code), UserMessage: appErr.UserMessage})
	}
}

func codeForStatus(status int) apperr.Code {
	switch {
	case status == http.StatusUnauthorized:
		return apperr.AuthNotAuthenticated
	case status == http.StatusTooManyRequests:
		return apperr.AuthRateLimit
	case status >= 400 && status < 500:
		return apperr.ValidationError
	default:
		return apperr.OperationFailed
	}
}
