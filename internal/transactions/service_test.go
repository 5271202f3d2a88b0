package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/onebills/onebills/internal/apperr"
	"github.com/onebills/onebills/internal/logging"
	"github.com/onebills/onebills/internal/notification"
)

func newTestService() (*Service, *notification.Outbox) {
	outbox := &notification.Outbox{}
	return NewService(NewMemoryRepository(), outbox, logging.Discard()), outbox
}

func TestCreateDefaults(t *testing.T) {
	svc, _ := newTestService()
	tx, err := svc.Create(context.Background(), "u1", NewTransaction{Amount: 2500, PaymentMethod: "card"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Status != StatusPending || tx.Currency != "USD" {
		t.Fatalf("expected pending USD transaction, got %+v", tx)
	}
}

func TestCreateRejections(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", NewTransaction{Amount: 0, PaymentMethod: "card"}); !apperr.IsCode(err, apperr.ValidationError) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
	if _, err := svc.Create(ctx, "u1", NewTransaction{Amount: 10, PaymentMethod: "  "}); !apperr.IsCode(err, apperr.ValidationRequired) {
		t.Fatalf("expected required payment method, got %v", err)
	}
	if _, err := svc.Create(ctx, "u1", NewTransaction{Amount: 10, Currency: "dollars", PaymentMethod: "card"}); !apperr.IsCode(err, apperr.ValidationInvalidFormat) {
		t.Fatalf("expected a three letter currency, got %v", err)
	}
	if _, err := svc.Create(ctx, "", NewTransaction{Amount: 10, PaymentMethod: "card"}); !apperr.IsCode(err, apperr.AuthNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	svc, outbox := newTestService()
	ctx := context.Background()

	tx, err := svc.Create(ctx, "u1", NewTransaction{Amount: 1000, Currency: "zmw", PaymentMethod: "wallet"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tx, err = svc.UpdateStatus(ctx, "u1", tx.ID, StatusChange{Status: StatusProcessing, PaymentIntentID: "pi_1"})
	if err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if tx.PaymentIntentID != "pi_1" {
		t.Fatalf("expected payment intent recorded, got %+v", tx)
	}
	if _, err := svc.UpdateStatus(ctx, "u1", tx.ID, StatusChange{Status: StatusPending}); !apperr.IsCode(err, apperr.ValidationError) {
		t.Fatalf("expected backwards move rejected, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u1", tx.ID, StatusChange{}); !apperr.IsCode(err, apperr.ValidationRequired) {
		t.Fatalf("expected a status to be required, got %v", err)
	}

	tx, err = svc.UpdateStatus(ctx, "u1", tx.ID, StatusChange{Status: StatusCompleted, ReceiptURL: "https://r/1"})
	if err != nil {
		t.Fatalf("to completed: %v", err)
	}
	msg, ok := outbox.Last("u1")
	if !ok || msg.Kind != notification.KindPaymentStatus || msg.Body != "Your payment of 1000 ZMW is completed" {
		t.Fatalf("expected completion notice, got %+v", msg)
	}

	if _, err := svc.UpdateStatus(ctx, "u1", tx.ID, StatusChange{Status: StatusFailed}); !apperr.IsCode(err, apperr.ValidationError) {
		t.Fatalf("expected final status to stick, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u1", tx.ID, StatusChange{Status: "refunded"}); !apperr.IsCode(err, apperr.ValidationInvalidFormat) {
		t.Fatalf("expected unknown status rejected, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u2", tx.ID, StatusChange{Status: StatusFailed}); !apperr.IsCode(err, apperr.ProfileNotFound) {
		t.Fatalf("expected other users to see no rows, got %v", err)
	}
}

func TestListAndStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i, amount := range []int64{100, 200, 300} {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		tx, err := svc.Create(ctx, "u1", NewTransaction{Amount: amount, PaymentMethod: "card"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, tx.ID)
	}
	if _, err := svc.Create(ctx, "u2", NewTransaction{Amount: 999, PaymentMethod: "card"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u1", ids[0], StatusChange{Status: StatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u1", ids[1], StatusChange{Status: StatusFailed}); err != nil {
		t.Fatalf("fail: %v", err)
	}

	list, err := svc.List(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[2] {
		t.Fatalf("expected two newest first, got %+v", list)
	}

	pending, err := svc.ByStatus(ctx, "u1", StatusPending)
	if err != nil {
		t.Fatalf("by status: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("unexpected pending list %+v", pending)
	}

	stats, err := svc.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Total: 3, Completed: 1, Pending: 1, Failed: 1, TotalAmount: 100}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}
