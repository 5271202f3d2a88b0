// Package bills serves the biller catalog and the bills a user has saved.
package bills

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/validation"
)

// Service implements catalog reads and bill management.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService constructs a bills service. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Categories lists bill categories by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if s.cache.get(ctx, categoriesKey, &out) {
		return out, nil
	}
	out, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, categoriesKey, out)
	return out, nil
}

// Providers lists active providers by name. An empty categoryID lists all.
func (s *Service) Providers(ctx context.Context, categoryID string) ([]Provider, error) {
	key := providersKey(categoryID)
	var out []Provider
	if s.cache.get(ctx, key, &out) {
		return out, nil
	}
	out, err := s.repo.Providers(ctx, categoryID, true)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, key, out)
	return out, nil
}

// CategoriesWithProviders lists categories with all of their providers.
func (s *Service) CategoriesWithProviders(ctx context.Context) ([]CategoryWithProviders, error) {
	var out []CategoryWithProviders
	if s.cache.get(ctx, withProvidersKey, &out) {
		return out, nil
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	providers, err := s.repo.Providers(ctx, "", false)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[string][]Provider, len(categories))
	for _, p := range providers {
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p)
	}
	out = make([]CategoryWithProviders, 0, len(categories))
	for _, c := range categories {
		ps := byCategory[c.ID]
		if ps == nil {
			ps = []Provider{}
		}
		out = append(out, CategoryWithProviders{Category: c, Providers: ps})
	}
	s.cache.set(ctx, withProvidersKey, out)
	return out, nil
}

// MyBills lists the user's bills, newest first.
func (s *Service) MyBills(ctx context.Context, userID string) ([]UserBill, error) {
	if userID == "" {
		return nil, backend.ErrNotAuthenticated
	}
	return s.repo.BillsByUser(ctx, userID)
}

// AddBill saves a new bill for the user. Bills are saved unless the caller
// says otherwise.
func (s *Service) AddBill(ctx context.Context, userID string, in NewBill) (UserBill, error) {
	if userID == "" {
		return UserBill{}, backend.ErrNotAuthenticated
	}
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.AccountName = strings.TrimSpace(in.AccountName)
	if err := validation.Struct(in); err != nil {
		return UserBill{}, err
	}
	saved := true
	if in.IsSaved != nil {
		saved = *in.IsSaved
	}
	return s.repo.CreateBill(ctx, UserBill{
		ID:                uuid.NewString(),
		UserID:            userID,
		ServiceProviderID: in.ServiceProviderID,
		AccountNumber:     in.AccountNumber,
		AccountName:       in.AccountName,
		IsSaved:           saved,
		CreatedAt:         s.now().UTC(),
	})
}

// UpdateBill changes one of the user's bills.
func (s *Service) UpdateBill(ctx context.Context, userID, id string, u BillUpdate) (UserBill, error) {
	if userID == "" {
		return UserBill{}, backend.ErrNotAuthenticated
	}
	if err := validation.Struct(u); err != nil {
		return UserBill{}, err
	}
	return s.repo.UpdateBill(ctx, userID, id, u, s.now().UTC())
}

// DeleteBill removes one of the user's bills.
func (s *Service) DeleteBill(ctx context.Context, userID, id string) error {
	if userID == "" {
		return backend.ErrNotAuthenticated
	}
	return s.repo.DeleteBill(ctx, userID, id)
}

// BillByID returns one of the user's bills with its provider.
func (s *Service) BillByID(ctx context.Context, userID, id string) (UserBill, error) {
	if userID == "" {
		return UserBill{}, backend.ErrNotAuthenticated
	}
	return s.repo.BillByID(ctx, userID, id)
}
