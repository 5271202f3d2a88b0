// Package auth is a self-contained implementation of the authentication
// capability (password and phone one-time-code sign-in, refreshable
// sessions, session-change notifications). It lets the client run end to end
// without a hosted auth project, in development and in tests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/identity"
	"github.com/onebills/onebills/internal/notification"
	"github.com/onebills/onebills/internal/validation"
)

const (
	defaultOTPTTL      = 5 * time.Minute
	defaultRefreshTTL  = 30 * 24 * time.Hour
	defaultMaxAttempts = 5
	// otpGrace keeps expired codes around long enough to report expiry.
	otpGrace = 10 * time.Minute
)

// Options tunes lifetimes and limits.
type Options struct {
	OTPTTL         time.Duration
	RefreshTTL     time.Duration
	OTPMaxAttempts int
}

// Deps aggregates the collaborators of Service.
type Deps struct {
	Identities    *identity.Service
	Store         Store
	Storage       SessionStorage
	SignInLimiter Limiter
	OTPLimiter    Limiter
	Notifier      notification.Notifier
	Tokens        *Tokens
	Logger        *slog.Logger
}

// Service implements backend.Auth.
type Service struct {
	ids      *identity.Service
	store    Store
	storage  SessionStorage
	signIn   Limiter
	otp      Limiter
	notifier notification.Notifier
	tokens   *Tokens
	logger   *slog.Logger
	opts     Options
	bus      *broadcaster
	now      func() time.Time

	mu      sync.Mutex
	current *backend.Session
}

var _ backend.Auth = (*Service)(nil)

// NewService wires the local auth backend.
func NewService(d Deps, opts Options) (*Service, error) {
	if d.Identities == nil || d.Store == nil || d.Tokens == nil {
		return nil, fmt.Errorf("identities, store and tokens are required")
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = defaultOTPTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if opts.OTPMaxAttempts <= 0 {
		opts.OTPMaxAttempts = defaultMaxAttempts
	}
	if d.Storage == nil {
		d.Storage = &MemorySessionStorage{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		ids:      d.Identities,
		store:    d.Store,
		storage:  d.Storage,
		signIn:   d.SignInLimiter,
		otp:      d.OTPLimiter,
		notifier: d.Notifier,
		tokens:   d.Tokens,
		logger:   d.Logger,
		opts:     opts,
		bus:      newBroadcaster(),
		now:      time.Now,
	}, nil
}

// SignUp registers a password account and starts a session for it.
func (s *Service) SignUp(ctx context.Context, input backend.SignUpInput) (backend.AuthResponse, error) {
	account, err := s.ids.Register(ctx, identity.Credentials{
		Email:    input.Email,
		Password: input.Password,
		Phone:    input.Phone,
		FullName: input.FullName,
	})
	if err != nil {
		return backend.AuthResponse{}, err
	}
	session, err := s.startSession(ctx, account, "")
	if err != nil {
		return backend.AuthResponse{}, err
	}
	s.logger.Info("auth.sign_up", slog.String("user_id", account.ID))
	s.bus.emit(backend.EventSignedIn, session)
	return backend.AuthResponse{User: session.User, Session: session}, nil
}

// SignInWithPassword exchanges email and password for a session.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (backend.AuthResponse, error) {
	if err := s.allow(ctx, s.signIn, "signin:"+strings.ToLower(strings.TrimSpace(email))); err != nil {
		return backend.AuthResponse{}, err
	}
	account, err := s.ids.Authenticate(ctx, email, password)
	if err != nil {
		return backend.AuthResponse{}, err
	}
	session, err := s.startSession(ctx, account, "")
	if err != nil {
		return backend.AuthResponse{}, err
	}
	s.logger.Info("auth.sign_in", slog.String("user_id", account.ID), slog.String("method", "password"))
	s.bus.emit(backend.EventSignedIn, session)
	return backend.AuthResponse{User: session.User, Session: session}, nil
}

// SignInWithOTP sends a one-time code to phone.
func (s *Service) SignInWithOTP(ctx context.Context, phone string) error {
	if !validation.Phone(phone) {
		return backend.NewError(backend.CodeInvalidPhone, "Invalid phone number format")
	}
	phone = validation.FormatPhone(phone)
	if err := s.allow(ctx, s.otp, "otp:"+phone); err != nil {
		return err
	}
	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	rec := OTPRecord{Hash: HashOTP(code), ExpiresAt: s.now().UTC().Add(s.opts.OTPTTL)}
	if err := s.store.PutOTP(ctx, phone, rec, s.opts.OTPTTL+otpGrace); err != nil {
		return err
	}
	if s.notifier != nil {
		msg := notification.Message{
			Kind:        notification.KindOTP,
			Destination: phone,
			Body:        fmt.Sprintf("Your OneBills verification code is %s", code),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			_ = s.store.DeleteOTP(ctx, phone)
			return err
		}
	}
	return nil
}

// VerifyOTP checks a code sent by SignInWithOTP. The first verification for
// an unknown phone creates its account.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (backend.AuthResponse, error) {
	phone = validation.FormatPhone(phone)
	rec, ok, err := s.store.GetOTP(ctx, phone)
	if err != nil {
		return backend.AuthResponse{}, err
	}
	if !ok {
		return backend.AuthResponse{}, backend.NewError(backend.CodeTokenNotFound, "Token has expired or is invalid")
	}
	now := s.now().UTC()
	if !rec.ExpiresAt.After(now) {
		_ = s.store.DeleteOTP(ctx, phone)
		return backend.AuthResponse{}, backend.NewError(backend.CodeExpiredOTP, "Token has expired")
	}
	if !OTPEqual(code, rec.Hash) {
		rec.Attempts++
		if rec.Attempts >= s.opts.OTPMaxAttempts {
			_ = s.store.DeleteOTP(ctx, phone)
		} else {
			_ = s.store.PutOTP(ctx, phone, rec, rec.ExpiresAt.Add(otpGrace).Sub(now))
		}
		return backend.AuthResponse{}, backend.NewError(backend.CodeInvalidOTP, "Token is invalid")
	}
	if err := s.store.DeleteOTP(ctx, phone); err != nil {
		return backend.AuthResponse{}, err
	}

	account, err := s.ids.EnsurePhoneAccount(ctx, phone)
	if err != nil {
		return backend.AuthResponse{}, err
	}
	session, err := s.startSession(ctx, account, "")
	if err != nil {
		return backend.AuthResponse{}, err
	}
	s.logger.Info("auth.sign_in", slog.String("user_id", account.ID), slog.String("method", "otp"))
	s.bus.emit(backend.EventSignedIn, session)
	return backend.AuthResponse{User: session.User, Session: session}, nil
}

// GetSession returns the persisted session, refreshing it when the access
// token has expired or no longer verifies, as after a secret rotation. A
// session that cannot be refreshed is dropped.
func (s *Service) GetSession(ctx context.Context) (*backend.Session, error) {
	current, err := s.loadCurrent(ctx)
	if err != nil || current == nil {
		return nil, err
	}
	if !current.Expired(s.now()) && s.verified(current) {
		return current, nil
	}
	refreshed, err := s.RefreshSession(ctx)
	if err != nil {
		var be *backend.Error
		if errors.As(err, &be) {
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// verified reports whether the session's access token was signed by us for
// the session's user.
func (s *Service) verified(session *backend.Session) bool {
	claims, err := s.tokens.Parse(session.AccessToken)
	if err != nil {
		s.logger.Warn("auth.token_rejected", slog.Any("error", err))
		return false
	}
	return session.User != nil && claims.Subject == session.User.ID
}

// RefreshSession rotates the refresh token of the current session.
func (s *Service) RefreshSession(ctx context.Context) (*backend.Session, error) {
	current, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, backend.NewError(backend.CodeRefreshTokenNotFound, "Invalid Refresh Token: Refresh Token Not Found")
	}
	rec, ok, err := s.store.TakeRefresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.dropSession(ctx)
		return nil, backend.NewError(backend.CodeRefreshTokenNotFound, "Invalid Refresh Token: Refresh Token Not Found")
	}
	account, err := s.ids.Get(ctx, rec.UserID)
	if err != nil {
		s.dropSession(ctx)
		return nil, backend.NewError(backend.CodeSessionExpired, "Session expired")
	}
	session, err := s.startSession(ctx, account, rec.SessionID)
	if err != nil {
		return nil, err
	}
	s.bus.emit(backend.EventTokenRefreshed, session)
	return session, nil
}

// SignOut revokes the refresh token and forgets the device session.
func (s *Service) SignOut(ctx context.Context) error {
	current, err := s.loadCurrent(ctx)
	if err != nil {
		return err
	}
	if current != nil {
		if err := s.store.DeleteRefresh(ctx, current.RefreshToken); err != nil {
			return err
		}
	}
	if err := s.storage.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.logger.Info("auth.sign_out")
	s.bus.emit(backend.EventSignedOut, nil)
	return nil
}

// OnAuthStateChange registers fn for session transitions.
func (s *Service) OnAuthStateChange(fn backend.AuthChangeFunc) func() {
	return s.bus.subscribe(fn)
}

func (s *Service) startSession(ctx context.Context, account identity.Account, sessionID string) (*backend.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	access, exp, err := s.tokens.Issue(account.ID, account.Email, account.Phone, sessionID)
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()
	rec := RefreshRecord{UserID: account.ID, SessionID: sessionID, ExpiresAt: s.now().UTC().Add(s.opts.RefreshTTL)}
	if err := s.store.PutRefresh(ctx, refresh, rec, s.opts.RefreshTTL); err != nil {
		return nil, err
	}
	session := &backend.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         identity.ToUser(account),
	}
	if err := s.storage.Save(ctx, session); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
	return session, nil
}

func (s *Service) loadCurrent(ctx context.Context) (*backend.Session, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current != nil {
		return current, nil
	}
	stored, err := s.storage.Load(ctx)
	if err != nil || stored == nil {
		return nil, err
	}
	s.mu.Lock()
	if s.current == nil {
		s.current = stored
	}
	current = s.current
	s.mu.Unlock()
	return current, nil
}

func (s *Service) dropSession(ctx context.Context) {
	if err := s.storage.Clear(ctx); err != nil {
		s.logger.Warn("auth.clear_session", slog.Any("error", err))
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.bus.emit(backend.EventSignedOut, nil)
}

func (s *Service) allow(ctx context.Context, limiter Limiter, key string) error {
	if limiter == nil {
		return nil
	}
	ok, err := limiter.Allow(ctx, key)
	if err != nil {
		s.logger.Warn("auth.rate_limit_unavailable", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	if !ok {
		return backend.NewError(backend.CodeRateLimitExceeded, "Rate limit exceeded")
	}
	return nil
}
