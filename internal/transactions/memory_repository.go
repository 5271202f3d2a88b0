package transactions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onebills/onebills/internal/backend"
)

type memoryRepository struct {
	mu  sync.RWMutex
	txs map[string]Transaction
}

// NewMemoryRepository builds an in-memory transaction store for tests and
// development. Bill details are not joined.
func NewMemoryRepository() Repository {
	return &memoryRepository{txs: make(map[string]Transaction)}
}

func (r *memoryRepository) List(_ context.Context, userID, status string, limit int) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Transaction{}
	for _, tx := range r.txs {
		if tx.UserID != userID || (status != "" && tx.Status != status) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) ByID(_ context.Context, userID, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.txs[id]
	if !ok || tx.UserID != userID {
		return Transaction{}, noRows()
	}
	return tx, nil
}

func (r *memoryRepository) Create(_ context.Context, tx Transaction) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.txs[tx.ID]; exists {
		return Transaction{}, backend.NewError(backend.CodeUniqueViolation, `duplicate key value violates unique constraint "transactions_pkey"`)
	}
	tx.UpdatedAt = tx.CreatedAt
	r.txs[tx.ID] = tx
	return tx, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, userID, id, from string, change StatusChange, at time.Time) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok || tx.UserID != userID || tx.Status != from {
		return Transaction{}, noRows()
	}
	tx.Status = change.Status
	if change.ReceiptURL != "" {
		tx.ReceiptURL = change.ReceiptURL
	}
	if change.PaymentIntentID != "" {
		tx.PaymentIntentID = change.PaymentIntentID
	}
	tx.UpdatedAt = at
	r.txs[id] = tx
	return tx, nil
}

func (r *memoryRepository) Stats(_ context.Context, userID string) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Stats
	for _, tx := range r.txs {
		if tx.UserID != userID {
			continue
		}
		s.Total++
		switch tx.Status {
		case StatusCompleted:
			s.Completed++
			s.TotalAmount += tx.Amount
		case StatusPending:
			s.Pending++
		case StatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

func noRows() error {
	return backend.NewError(backend.CodeNoRows, "JSON object requested, multiple (or no) rows returned")
}
