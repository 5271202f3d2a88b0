// Package profile reads and writes the per-user profile row.
package profile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/validation"
)

// Service wraps the profile repository with the rules the client relies on.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a profile service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the user's profile, or nil when none exists yet. An empty
// userID is reported as not authenticated.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, backend.ErrNotAuthenticated
	}
	p, err := s.repo.FindByUserID(ctx, userID)
	if backend.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert creates the user's profile or merges u into it. New profiles start
// with KYC pending; an existing status changes only when u names one.
func (s *Service) Upsert(ctx context.Context, userID string, u Update) (*Profile, error) {
	if userID == "" {
		return nil, backend.ErrNotAuthenticated
	}
	u, err := clean(u)
	if err != nil {
		return nil, err
	}
	status := u.KYCStatus
	if status == "" {
		status = KYCPending
	}
	p, err := s.repo.Upsert(ctx, Profile{
		ID:        uuid.NewString(),
		UserID:    userID,
		FullName:  u.FullName,
		Phone:     u.Phone,
		KYCStatus: status,
		UpdatedAt: s.now().UTC(),
	}, u.KYCStatus != "")
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update changes fields of an existing profile.
func (s *Service) Update(ctx context.Context, userID string, u Update) (*Profile, error) {
	if userID == "" {
		return nil, backend.ErrNotAuthenticated
	}
	u, err := clean(u)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, userID, u, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateKYCStatus records the outcome of identity verification.
func (s *Service) UpdateKYCStatus(ctx context.Context, userID, status string) (*Profile, error) {
	return s.Update(ctx, userID, Update{KYCStatus: status})
}

func clean(u Update) (Update, error) {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Phone = validation.SanitizePhone(u.Phone)
	if u.KYCStatus != "" && !validKYC(u.KYCStatus) {
		return Update{}, backend.NewError(backend.CodeInvalidTextRepr, "invalid input value for enum kyc_status: \""+u.KYCStatus+"\"")
	}
	return u, nil
}
