package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindOTP carries a one-time sign-in code.
	KindOTP = "otp"
	// KindPaymentStatus reports a payment reaching a final status.
	KindPaymentStatus = "payment_status"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems (SMS gateway, push).
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering
// them. Used in development where no SMS gateway is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Outbox records messages in memory. Tests read the delivered OTP from it.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

// Send appends message.
func (o *Outbox) Send(_ context.Context, message Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, message)
	return nil
}

// Last returns the most recent message for destination.
func (o *Outbox) Last(destination string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].Destination == destination {
			return o.messages[i], true
		}
	}
	return Message{}, false
}
