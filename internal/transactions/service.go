// Package transactions records bill payments and their progress.
package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onebills/onebills/internal/apperr"
	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/notification"
	"github.com/onebills/onebills/internal/validation"
)

// DefaultLimit bounds List when the caller gives no limit.
const DefaultLimit = 50

// Service validates and records payments.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a transaction service. notifier may be nil.
func NewService(repo Repository, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

// List returns the user's most recent transactions.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if userID == "" {
		return nil, backend.ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.repo.List(ctx, userID, "", limit)
}

// ByStatus returns every transaction of the user in status.
func (s *Service) ByStatus(ctx context.Context, userID, status string) ([]Transaction, error) {
	if userID == "" {
		return nil, backend.ErrNotAuthenticated
	}
	if !validStatus(status) {
		return nil, invalidStatus(status)
	}
	return s.repo.List(ctx, userID, status, 0)
}

// ByID returns one of the user's transactions.
func (s *Service) ByID(ctx context.Context, userID, id string) (Transaction, error) {
	if userID == "" {
		return Transaction{}, backend.ErrNotAuthenticated
	}
	return s.repo.ByID(ctx, userID, id)
}

// Create records a pending payment.
func (s *Service) Create(ctx context.Context, userID string, in NewTransaction) (Transaction, error) {
	if userID == "" {
		return Transaction{}, backend.ErrNotAuthenticated
	}
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if err := validation.Struct(in); err != nil {
		return Transaction{}, err
	}
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	tx, err := s.repo.Create(ctx, Transaction{
		ID:               uuid.NewString(),
		UserID:           userID,
		BillID:           in.BillID,
		Amount:           in.Amount,
		Currency:         currency,
		Status:           StatusPending,
		PaymentMethod:    in.PaymentMethod,
		RecipientDetails: in.RecipientDetails,
		CreatedAt:        s.now().UTC(),
	})
	if err != nil {
		return Transaction{}, err
	}
	s.logger.Info("transactions.created", slog.String("id", tx.ID), slog.Int64("amount", tx.Amount), slog.String("currency", tx.Currency))
	return tx, nil
}

// UpdateStatus moves a transaction forward. Completed and failed payments
// are final.
func (s *Service) UpdateStatus(ctx context.Context, userID, id string, change StatusChange) (Transaction, error) {
	if userID == "" {
		return Transaction{}, backend.ErrNotAuthenticated
	}
	if err := validation.Struct(change); err != nil {
		return Transaction{}, err
	}
	if !validStatus(change.Status) {
		return Transaction{}, invalidStatus(change.Status)
	}
	current, err := s.repo.ByID(ctx, userID, id)
	if err != nil {
		return Transaction{}, err
	}
	if !canMove(current.Status, change.Status) {
		return Transaction{}, apperr.New(apperr.ValidationError,
			fmt.Sprintf("cannot move transaction from %s to %s", current.Status, change.Status),
			"This payment can no longer be changed to that status.")
	}
	tx, err := s.repo.UpdateStatus(ctx, userID, id, current.Status, change, s.now().UTC())
	if backend.IsNoRows(err) {
		return Transaction{}, apperr.New(apperr.OperationFailed, "transaction changed concurrently",
			"This payment was updated elsewhere. Please refresh and try again.")
	}
	if err != nil {
		return Transaction{}, err
	}
	s.logger.Info("transactions.status_changed", slog.String("id", tx.ID), slog.String("from", current.Status), slog.String("to", tx.Status))
	if s.notifier != nil && (tx.Status == StatusCompleted || tx.Status == StatusFailed) {
		msg := notification.Message{
			Kind:        notification.KindPaymentStatus,
			Destination: userID,
			Body:        fmt.Sprintf("Your payment of %d %s is %s", tx.Amount, tx.Currency, tx.Status),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("transactions.notify_failed", slog.String("id", tx.ID), slog.Any("error", err))
		}
	}
	return tx, nil
}

// Stats summarizes the user's transactions.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	if userID == "" {
		return Stats{}, backend.ErrNotAuthenticated
	}
	return s.repo.Stats(ctx, userID)
}

func invalidStatus(status string) error {
	return backend.NewError(backend.CodeInvalidTextRepr, fmt.Sprintf("invalid input value for enum transaction_status: %q", status))
}
