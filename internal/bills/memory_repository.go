package bills

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onebills/onebills/internal/backend"
)

// MemoryRepository is an in-memory Repository for tests and development.
// The catalog is filled through AddCategory and AddProvider.
type MemoryRepository struct {
	mu         sync.RWMutex
	categories map[string]Category
	providers  map[string]Provider
	bills      map[string]UserBill
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		categories: make(map[string]Category),
		providers:  make(map[string]Provider),
		bills:      make(map[string]UserBill),
	}
}

// AddCategory stores c in the catalog.
func (r *MemoryRepository) AddCategory(c Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = c
}

// AddProvider stores p in the catalog.
func (r *MemoryRepository) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

func (r *MemoryRepository) Categories(_ context.Context) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) Providers(_ context.Context, categoryID string, activeOnly bool) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Provider{}
	for _, p := range r.providers {
		if categoryID != "" && p.CategoryID != categoryID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) BillsByUser(_ context.Context, userID string) ([]UserBill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []UserBill{}
	for _, b := range r.bills {
		if b.UserID == userID {
			out = append(out, r.withProvider(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) BillByID(_ context.Context, userID, id string) (UserBill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bills[id]
	if !ok || b.UserID != userID {
		return UserBill{}, noRows()
	}
	return r.withProvider(b), nil
}

func (r *MemoryRepository) CreateBill(_ context.Context, bill UserBill) (UserBill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[bill.ServiceProviderID]; !ok {
		return UserBill{}, foreignKey()
	}
	bill.UpdatedAt = bill.CreatedAt
	r.bills[bill.ID] = bill
	return bill, nil
}

func (r *MemoryRepository) UpdateBill(_ context.Context, userID, id string, u BillUpdate, at time.Time) (UserBill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bills[id]
	if !ok || b.UserID != userID {
		return UserBill{}, noRows()
	}
	u.apply(&b)
	if _, ok := r.providers[b.ServiceProviderID]; !ok {
		return UserBill{}, foreignKey()
	}
	b.UpdatedAt = at
	r.bills[id] = b
	return b, nil
}

func (r *MemoryRepository) DeleteBill(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bills[id]; ok && b.UserID == userID {
		delete(r.bills, id)
	}
	return nil
}

func (r *MemoryRepository) withProvider(b UserBill) UserBill {
	if p, ok := r.providers[b.ServiceProviderID]; ok {
		b.Provider = &p
	}
	return b
}

func noRows() error {
	return backend.NewError(backend.CodeNoRows, "JSON object requested, multiple (or no) rows returned")
}

func foreignKey() error {
	return backend.NewError(backend.CodeForeignKeyViolation, `insert or update on table "user_bills" violates foreign key constraint "user_bills_service_provider_id_fkey"`)
}
