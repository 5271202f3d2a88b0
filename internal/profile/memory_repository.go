package profile

import (
	"context"
	"sync"
	"time"

	"github.com/onebills/onebills/internal/backend"
)

type memoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryRepository builds an in-memory profile store for tests and
// development.
func NewMemoryRepository() Repository {
	return &memoryRepository{profiles: make(map[string]Profile)}
}

func (r *memoryRepository) FindByUserID(_ context.Context, userID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, noRows()
	}
	return p, nil
}

func (r *memoryRepository) Upsert(_ context.Context, p Profile, setKYC bool) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.profiles[p.UserID]
	if !ok {
		p.CreatedAt = p.UpdatedAt
		r.profiles[p.UserID] = p
		return p, nil
	}
	existing.apply(Update{FullName: p.FullName, Phone: p.Phone}, p.UpdatedAt)
	if setKYC {
		existing.KYCStatus = p.KYCStatus
	}
	r.profiles[p.UserID] = existing
	return existing, nil
}

func (r *memoryRepository) Update(_ context.Context, userID string, u Update, at time.Time) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, noRows()
	}
	p.apply(u, at)
	r.profiles[userID] = p
	return p, nil
}

func (p *Profile) apply(u Update, at time.Time) {
	if u.FullName != "" {
		p.FullName = u.FullName
	}
	if u.Phone != "" {
		p.Phone = u.Phone
	}
	if u.KYCStatus != "" {
		p.KYCStatus = u.KYCStatus
	}
	p.UpdatedAt = at
}

func noRows() error {
	return backend.NewError(backend.CodeNoRows, "JSON object requested, multiple (or no) rows returned")
}
