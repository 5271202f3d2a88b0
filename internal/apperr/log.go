package apperr

import (
	"log/slog"
)

// Reporter writes normalized errors to a logger. It is silent unless
// enabled, which callers do outside production.
type Reporter struct {
	logger  *slog.Logger
	enabled bool
}

// NewReporter returns a Reporter. A nil logger disables it.
func NewReporter(logger *slog.Logger, enabled bool) *Reporter {
	return &Reporter{logger: logger, enabled: enabled && logger != nil}
}

// Log records err under where.
func (r *Reporter) Log(err error, where string) {
	if r == nil || !r.enabled || err == nil {
		return
	}
	if where == "" {
		where = "Error"
	}
	appErr := Normalize(err)
	attrs := []any{
		slog.String("context", where),
		slog.String("code", string(appErr.Code)),
		slog.String("message", appErr.Message),
		slog.String("user_message", appErr.UserMessage),
	}
	if appErr.Original != nil {
		attrs = append(attrs, slog.Any("original_error", appErr.Original))
	}
	r.logger.Error("apperr", attrs...)
}
