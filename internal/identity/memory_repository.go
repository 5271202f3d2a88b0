package identity

import (
	"context"
	"strings"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository builds an in-memory account store for tests and
// development.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if account.Email != "" && strings.EqualFold(existing.Email, account.Email) {
			return ErrEmailTaken
		}
		if account.Phone != "" && existing.Phone == account.Phone {
			return ErrPhoneTaken
		}
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	return r.find(func(a Account) bool { return a.Email != "" && strings.EqualFold(a.Email, email) })
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	return r.find(func(a Account) bool { return a.Phone != "" && a.Phone == phone })
}

func (r *memoryRepository) find(match func(Account) bool) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if match(account) {
			return account, nil
		}
	}
	return Account{}, ErrNotFound
}
