package store

import (
	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/profile"
)

// State is an immutable snapshot of the store. The flags are computed from
// the primary fields and cannot drift from them.
type State struct {
	User      *backend.User    `json:"user"`
	Session   *backend.Session `json:"-"`
	Profile   *profile.Profile `json:"profile"`
	IsLoading bool             `json:"is_loading"`
}

// ProfileInput is what profile setup may change. Empty fields are kept.
type ProfileInput struct {
	FullName string `json:"full_name" validate:"omitempty,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// IsAuthenticated reports whether an identity is signed in.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// NeedsProfileSetup reports whether a signed-in identity still lacks a
// complete profile. Signed-out states never need setup.
func (s State) NeedsProfileSetup() bool {
	return s.User != nil && !s.Profile.Complete()
}

// UserID returns the signed-in identity, or "".
func (s State) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
