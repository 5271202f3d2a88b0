package backend

import (
	"context"
	"time"
)

// Collection names used by row storage.
const (
	TableUserProfiles     = "user_profiles"
	TableBillCategories   = "bill_categories"
	TableServiceProviders = "service_providers"
	TableUserBills        = "user_bills"
	TableTransactions     = "transactions"
)

// Event identifies a session transition reported by the backend.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// User is the identity issued by the backend on successful authentication.
type User struct {
	ID        string
	Email     string
	Phone     string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Session is an access credential bound to a User.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// Expired reports whether the access token has passed its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.After(now)
}

// AuthResponse is returned by credential exchanges. Session may be nil when
// the backend requires a confirmation step before issuing one.
type AuthResponse struct {
	User    *User
	Session *Session
}

// SignUpInput carries the sign-up credentials and profile hints.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// AuthChangeFunc receives session transitions. session is nil on sign-out.
type AuthChangeFunc func(event Event, session *Session)

// Auth is the authentication capability consumed by the client.
type Auth interface {
	SignUp(ctx context.Context, input SignUpInput) (AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (AuthResponse, error)
	SignInWithOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (AuthResponse, error)
	GetSession(ctx context.Context) (*Session, error)
	RefreshSession(ctx context.Context) (*Session, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers fn for the lifetime of the returned
	// unsubscribe func. Callbacks run asynchronously.
	OnAuthStateChange(fn AuthChangeFunc) (unsubscribe func())
}
