package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onebills/onebills/internal/apperr"
	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/logging"
	"github.com/onebills/onebills/internal/profile"
)

type fakeAuth struct {
	mu         sync.Mutex
	current    *backend.Session
	getErr     error
	signUpErr  error
	signInErr  error
	otpErr     error
	verifyErr  error
	signOutErr error
	pending    bool
	block      chan struct{}
	held       chan struct{}
	listeners  []backend.AuthChangeFunc
}

// hold parks the calling backend operation until block is closed, telling
// held that it arrived.
func (f *fakeAuth) hold() {
	f.mu.Lock()
	block, held := f.block, f.held
	f.mu.Unlock()
	if block == nil {
		return
	}
	select {
	case held <- struct{}{}:
	default:
	}
	<-block
}

func (f *fakeAuth) holdCalls() (held, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	f.held = make(chan struct{}, 1)
	return f.held, f.block
}

func sessionFor(id string) *backend.Session {
	return &backend.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         &backend.User{ID: id, Email: id + "@example.com"},
	}
}

func (f *fakeAuth) start(id string) (backend.AuthResponse, error) {
	session := sessionFor(id)
	f.mu.Lock()
	f.current = session
	f.mu.Unlock()
	return backend.AuthResponse{User: session.User, Session: session}, nil
}

func (f *fakeAuth) SignUp(_ context.Context, in backend.SignUpInput) (backend.AuthResponse, error) {
	f.hold()
	if f.signUpErr != nil {
		return backend.AuthResponse{}, f.signUpErr
	}
	if f.pending {
		return backend.AuthResponse{User: &backend.User{ID: in.Email}}, nil
	}
	return f.start(in.Email)
}

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, _ string) (backend.AuthResponse, error) {
	f.hold()
	if f.signInErr != nil {
		return backend.AuthResponse{}, f.signInErr
	}
	return f.start(email)
}

func (f *fakeAuth) SignInWithOTP(context.Context, string) error {
	f.hold()
	return f.otpErr
}

func (f *fakeAuth) VerifyOTP(_ context.Context, phone, _ string) (backend.AuthResponse, error) {
	f.hold()
	if f.verifyErr != nil {
		return backend.AuthResponse{}, f.verifyErr
	}
	return f.start(phone)
}

func (f *fakeAuth) GetSession(context.Context) (*backend.Session, error) {
	f.hold()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.getErr
}

func (f *fakeAuth) RefreshSession(context.Context) (*backend.Session, error) {
	return f.GetSession(context.Background())
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.hold()
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeAuth) OnAuthStateChange(fn backend.AuthChangeFunc) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
	return func() {}
}

// deliver runs every registered callback synchronously.
func (f *fakeAuth) deliver(event backend.Event, session *backend.Session) {
	f.mu.Lock()
	listeners := append([]backend.AuthChangeFunc(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(event, session)
	}
}

type fakeProfiles struct {
	mu        sync.Mutex
	rows      map[string]*profile.Profile
	err       error
	upsertErr error
	calls     int
	gate      chan struct{}
	entered   chan struct{}
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[string]*profile.Profile)}
}

func (f *fakeProfiles) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	f.mu.Lock()
	f.calls++
	p, err, gate, entered := f.rows[userID], f.err, f.gate, f.entered
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p, err
}

func (f *fakeProfiles) Upsert(_ context.Context, userID string, u profile.Update) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if u.KYCStatus != "" {
		return nil, errors.New("profile setup must not touch kyc status")
	}
	p := &profile.Profile{ID: "p-" + userID, UserID: userID, FullName: u.FullName, Phone: u.Phone, KYCStatus: profile.KYCPending}
	f.rows[userID] = p
	return p, nil
}

func (f *fakeProfiles) put(userID, name, phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[userID] = &profile.Profile{ID: "p-" + userID, UserID: userID, FullName: name, Phone: phone}
}

func (f *fakeProfiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newStore(t *testing.T, a backend.Auth, p Profiles) *Store {
	t.Helper()
	s, err := New(Deps{Auth: a, Profiles: p, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, s *Store, what string, cond func(State) bool) State {
	t.Helper()
	updates, stop := s.Subscribe()
	defer stop()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				t.Fatalf("store closed while waiting for %s", what)
			}
			if cond(st) {
				return st
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s; state %+v", what, s.State())
		}
	}
}

func appCode(t *testing.T, err error) apperr.Code {
	t.Helper()
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	return appErr.Code
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{Profiles: newFakeProfiles()}); err == nil {
		t.Fatalf("expected error without auth")
	}
}

func TestInitialStateIsLoading(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	st := s.State()
	if !st.IsLoading || st.IsAuthenticated() {
		t.Fatalf("unexpected initial state %+v", st)
	}
}

func TestInitializeWithoutSession(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	s.Initialize(context.Background())

	st := s.State()
	if st.IsLoading || st.IsAuthenticated() || st.Profile != nil {
		t.Fatalf("expected idle unauthenticated state, got %+v", st)
	}
	if st.NeedsProfileSetup() {
		t.Fatalf("signed out state must not need profile setup")
	}
}

func TestInitializeBackendFailureIsUnauthenticated(t *testing.T) {
	s := newStore(t, &fakeAuth{getErr: errors.New("network down")}, newFakeProfiles())
	s.Initialize(context.Background())

	st := s.State()
	if st.IsLoading || st.IsAuthenticated() {
		t.Fatalf("expected unauthenticated after failure, got %+v", st)
	}
}

func TestInitializeRestoresSessionAndProfile(t *testing.T) {
	a := &fakeAuth{current: sessionFor("u1")}
	p := newFakeProfiles()
	p.put("u1", "Ann", "+15550001")
	s := newStore(t, a, p)

	s.Initialize(context.Background())
	if !s.State().IsAuthenticated() {
		t.Fatalf("expected restored session")
	}
	st := waitFor(t, s, "profile", func(st State) bool { return st.Profile != nil })
	if st.NeedsProfileSetup() {
		t.Fatalf("complete profile must not need setup")
	}

	s.Initialize(context.Background())
	if len(a.listeners) != 1 {
		t.Fatalf("initialize must subscribe once, got %d", len(a.listeners))
	}
}

func TestSignInLoadsProfileBeforeReturning(t *testing.T) {
	p := newFakeProfiles()
	p.put("a@b.com", "Ann", "+15550001")
	s := newStore(t, &fakeAuth{}, p)

	if err := s.SignIn(context.Background(), "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	st := s.State()
	if !st.IsAuthenticated() || st.Profile == nil || st.NeedsProfileSetup() || st.IsLoading {
		t.Fatalf("unexpected state after sign in %+v", st)
	}
	if s.CurrentUserID() != "a@b.com" {
		t.Fatalf("unexpected current user %q", s.CurrentUserID())
	}
}

func TestSignInWrongPassword(t *testing.T) {
	a := &fakeAuth{signInErr: backend.NewError(backend.CodeInvalidCredentials, "Invalid login credentials")}
	s := newStore(t, a, newFakeProfiles())
	s.Initialize(context.Background())

	err := s.SignIn(context.Background(), "a@b.com", "nope")
	if code := appCode(t, err); code != apperr.AuthInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %s", code)
	}
	if apperr.UserMessage(err) == "" {
		t.Fatalf("expected a user message")
	}
	st := s.State()
	if st.IsAuthenticated() || st.IsLoading {
		t.Fatalf("state must be unchanged, got %+v", st)
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	a := &fakeAuth{verifyErr: backend.NewError(backend.CodeExpiredOTP, "Token has expired")}
	s := newStore(t, a, newFakeProfiles())

	err := s.VerifyOTP(context.Background(), "+15550001", "000000")
	if code := appCode(t, err); code != apperr.AuthInvalidOTP {
		t.Fatalf("expected invalid otp, got %s", code)
	}
}

func TestVerifyOTPSignsIn(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	if err := s.SignInWithPhone(context.Background(), "+15550001234"); err != nil {
		t.Fatalf("sign in with phone: %v", err)
	}
	if err := s.VerifyOTP(context.Background(), "+15550001234", "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	st := s.State()
	if !st.IsAuthenticated() || !st.NeedsProfileSetup() {
		t.Fatalf("new phone identity must need setup, got %+v", st)
	}
}

func TestSignUpPendingConfirmationStaysSignedOut(t *testing.T) {
	s := newStore(t, &fakeAuth{pending: true}, newFakeProfiles())
	if err := s.SignUp(context.Background(), "a@b.com", "Passw0rd!", "Ann", "+15550001"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if s.State().IsAuthenticated() {
		t.Fatalf("pending confirmation must not authenticate")
	}
}

func TestSignUpThenCompleteProfile(t *testing.T) {
	p := newFakeProfiles()
	s := newStore(t, &fakeAuth{}, p)
	ctx := context.Background()

	if err := s.SignUp(ctx, "a@b.com", "Passw0rd!", "Ann", "+15550001"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	st := s.State()
	if !st.IsAuthenticated() || !st.NeedsProfileSetup() {
		t.Fatalf("expected authenticated with setup required, got %+v", st)
	}

	if err := s.UpdateProfile(ctx, ProfileInput{FullName: "Ann Lee", Phone: "+15550001"}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	st = s.State()
	if st.NeedsProfileSetup() || st.Profile.FullName != "Ann Lee" {
		t.Fatalf("expected completed profile, got %+v", st.Profile)
	}
}

func TestUpdateProfileRequiresUser(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	err := s.UpdateProfile(context.Background(), ProfileInput{FullName: "Ann"})
	if code := appCode(t, err); code != apperr.AuthNotAuthenticated {
		t.Fatalf("expected not authenticated, got %s", code)
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	p := newFakeProfiles()
	p.put("a@b.com", "Ann", "+15550001")
	s := newStore(t, &fakeAuth{}, p)
	ctx := context.Background()

	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	st := s.State()
	if st.User != nil || st.Session != nil || st.Profile != nil || st.NeedsProfileSetup() || st.IsLoading {
		t.Fatalf("expected cleared state, got %+v", st)
	}
}

func TestSignOutFailureKeepsState(t *testing.T) {
	a := &fakeAuth{}
	p := newFakeProfiles()
	p.put("a@b.com", "Ann", "+15550001")
	s := newStore(t, a, p)
	ctx := context.Background()

	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	a.signOutErr = errors.New("network request failed")
	err := s.SignOut(ctx)
	if code := appCode(t, err); code != apperr.NetworkError {
		t.Fatalf("expected network error, got %s", code)
	}
	st := s.State()
	if !st.IsAuthenticated() || st.Profile == nil {
		t.Fatalf("failed sign out must keep state, got %+v", st)
	}
}

func TestLoadingBracketsOperations(t *testing.T) {
	failure := errors.New("network request failed")
	ctx := context.Background()
	cases := []struct {
		name    string
		fail    func(a *fakeAuth)
		run     func(s *Store) error
		wantErr bool
	}{
		{"sign up", nil, func(s *Store) error { return s.SignUp(ctx, "a@b.com", "Passw0rd!", "Ann", "") }, false},
		{"sign up failure", func(a *fakeAuth) { a.signUpErr = failure }, func(s *Store) error { return s.SignUp(ctx, "a@b.com", "Passw0rd!", "Ann", "") }, true},
		{"sign in", nil, func(s *Store) error { return s.SignIn(ctx, "a@b.com", "Passw0rd!") }, false},
		{"sign in failure", func(a *fakeAuth) { a.signInErr = failure }, func(s *Store) error { return s.SignIn(ctx, "a@b.com", "Passw0rd!") }, true},
		{"phone", nil, func(s *Store) error { return s.SignInWithPhone(ctx, "+15550001234") }, false},
		{"phone failure", func(a *fakeAuth) { a.otpErr = failure }, func(s *Store) error { return s.SignInWithPhone(ctx, "+15550001234") }, true},
		{"verify", nil, func(s *Store) error { return s.VerifyOTP(ctx, "+15550001234", "123456") }, false},
		{"verify failure", func(a *fakeAuth) { a.verifyErr = failure }, func(s *Store) error { return s.VerifyOTP(ctx, "+15550001234", "123456") }, true},
		{"sign out", nil, func(s *Store) error { return s.SignOut(ctx) }, false},
		{"sign out failure", func(a *fakeAuth) { a.signOutErr = failure }, func(s *Store) error { return s.SignOut(ctx) }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &fakeAuth{}
			s := newStore(t, a, newFakeProfiles())
			s.Initialize(ctx)
			if tc.fail != nil {
				tc.fail(a)
			}
			held, release := a.holdCalls()

			done := make(chan error, 1)
			go func() { done <- tc.run(s) }()
			expectLoadingWhileHeld(t, s, held)
			close(release)

			err := <-done
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected result %v", err)
			}
			if err != nil && appCode(t, err) != apperr.NetworkError {
				t.Fatalf("expected a normalized network error, got %v", err)
			}
			if s.State().IsLoading {
				t.Fatalf("loading must clear once the operation resolves")
			}
		})
	}
}

func TestLoadingBracketsInitialize(t *testing.T) {
	for _, getErr := range []error{nil, errors.New("network request failed")} {
		a := &fakeAuth{current: sessionFor("u1"), getErr: getErr}
		s := newStore(t, a, newFakeProfiles())
		held, release := a.holdCalls()

		done := make(chan struct{})
		go func() { s.Initialize(context.Background()); close(done) }()
		expectLoadingWhileHeld(t, s, held)
		close(release)
		<-done

		st := s.State()
		if st.IsLoading || st.IsAuthenticated() != (getErr == nil) {
			t.Fatalf("getErr=%v: unexpected state after initialize %+v", getErr, st)
		}
	}
}

func expectLoadingWhileHeld(t *testing.T, s *Store, held <-chan struct{}) {
	t.Helper()
	select {
	case <-held:
	case <-time.After(2 * time.Second):
		t.Fatalf("backend call never started")
	}
	if !s.State().IsLoading {
		t.Fatalf("expected loading while the backend call is pending")
	}
}

func TestUpdateProfileFailureIsNormalized(t *testing.T) {
	p := newFakeProfiles()
	p.put("a@b.com", "Ann", "")
	s := newStore(t, &fakeAuth{}, p)
	ctx := context.Background()
	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	before := s.State()

	p.mu.Lock()
	p.upsertErr = backend.NewError(backend.CodeUniqueViolation, "duplicate key value violates unique constraint")
	p.mu.Unlock()
	err := s.UpdateProfile(ctx, ProfileInput{FullName: "Ann Lee", Phone: "+15550001"})

	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperr.OperationFailed {
		t.Fatalf("expected operation failed, got %v", err)
	}
	after := s.State()
	if after.User != before.User || after.Profile != before.Profile || !after.NeedsProfileSetup() {
		t.Fatalf("failed update must leave state unchanged, got %+v", after)
	}
}

func TestUpdateProfileRejectsOversizedInput(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	ctx := context.Background()
	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	err := s.UpdateProfile(ctx, ProfileInput{Phone: "+1 555 000 1234 5678 9012 3456"})
	if code := appCode(t, err); code != apperr.ValidationError {
		t.Fatalf("expected validation error, got %s", code)
	}
}

func TestMissingProfileIsTolerated(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	ctx := context.Background()
	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	s.LoadProfile(ctx)
	st := s.State()
	if st.Profile != nil || !st.NeedsProfileSetup() {
		t.Fatalf("expected missing profile, got %+v", st)
	}
}

func TestProfileLoadFailureRequiresSetup(t *testing.T) {
	p := newFakeProfiles()
	p.put("a@b.com", "Ann", "+15550001")
	s := newStore(t, &fakeAuth{}, p)
	ctx := context.Background()
	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	p.mu.Lock()
	p.err = errors.New("boom")
	p.mu.Unlock()
	s.LoadProfile(ctx)

	st := s.State()
	if !st.IsAuthenticated() || st.Profile != nil || !st.NeedsProfileSetup() {
		t.Fatalf("expected authenticated without profile, got %+v", st)
	}
}

func TestProfileLoadNotAuthenticatedSignsOut(t *testing.T) {
	p := newFakeProfiles()
	s := newStore(t, &fakeAuth{}, p)
	ctx := context.Background()
	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	p.mu.Lock()
	p.err = backend.ErrNotAuthenticated
	p.mu.Unlock()
	s.LoadProfile(ctx)

	if st := s.State(); st.IsAuthenticated() || st.Session != nil {
		t.Fatalf("expected signed out, got %+v", st)
	}
}

func TestStaleProfileLoadIsDiscarded(t *testing.T) {
	p := newFakeProfiles()
	p.put("a@b.com", "Ann", "+15550001")
	p.gate = make(chan struct{})
	p.entered = make(chan struct{}, 1)
	s := newStore(t, &fakeAuth{}, p)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.SignIn(ctx, "a@b.com", "Passw0rd!") }()
	<-p.entered

	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	close(p.gate)
	if err := <-done; err != nil {
		t.Fatalf("sign in: %v", err)
	}

	st := s.State()
	if st.IsAuthenticated() || st.Profile != nil {
		t.Fatalf("late profile must not resurrect the signed out identity, got %+v", st)
	}
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	p := newFakeProfiles()
	s := newStore(t, &fakeAuth{}, p)
	ctx := context.Background()
	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	p.put("a@b.com", "Ann", "+15550001")
	before := p.count()

	p.mu.Lock()
	p.gate = make(chan struct{})
	p.entered = make(chan struct{}, 2)
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.LoadProfile(ctx) }()
	<-p.entered
	go func() { defer wg.Done(); s.LoadProfile(ctx) }()
	time.Sleep(50 * time.Millisecond)
	close(p.gate)
	wg.Wait()

	if got := p.count() - before; got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
	if s.State().Profile == nil {
		t.Fatalf("expected profile after shared load")
	}
}

func TestStaleSignInEventIgnoredAfterSignOut(t *testing.T) {
	a := &fakeAuth{}
	s := newStore(t, a, newFakeProfiles())
	ctx := context.Background()
	s.Initialize(ctx)

	resp, _ := a.SignInWithPassword(ctx, "a@b.com", "Passw0rd!")
	if err := s.SignIn(ctx, "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	a.deliver(backend.EventSignedIn, resp.Session)
	if s.State().IsAuthenticated() {
		t.Fatalf("late SIGNED_IN must not re-authenticate")
	}
}

func TestAuthEventAdoptsNewIdentityWithProfile(t *testing.T) {
	a := &fakeAuth{}
	p := newFakeProfiles()
	p.put("b@c.com", "Bea", "+15550002")
	s := newStore(t, a, p)
	ctx := context.Background()
	s.Initialize(ctx)

	resp, _ := a.SignInWithPassword(ctx, "b@c.com", "Passw0rd!")
	a.deliver(backend.EventSignedIn, resp.Session)

	st := s.State()
	if st.UserID() != "b@c.com" || st.Profile == nil || st.IsLoading {
		t.Fatalf("expected adopted identity with profile, got %+v", st)
	}

	_ = a.SignOut(ctx)
	a.deliver(backend.EventSignedOut, nil)
	if s.State().IsAuthenticated() {
		t.Fatalf("expected SIGNED_OUT to clear the identity")
	}
}

func TestSubscribeCoalesces(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	updates, stop := s.Subscribe()
	defer stop()

	s.Initialize(context.Background())
	if err := s.SignIn(context.Background(), "a@b.com", "Passw0rd!"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if n := len(updates); n != 1 {
		t.Fatalf("expected one pending snapshot, got %d", n)
	}
	st := <-updates
	if !st.IsAuthenticated() || st.IsLoading {
		t.Fatalf("expected latest snapshot, got %+v", st)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := newStore(t, &fakeAuth{}, newFakeProfiles())
	updates, _ := s.Subscribe()
	s.Close()
	s.Close()

	<-updates
	if _, ok := <-updates; ok {
		t.Fatalf("expected closed channel")
	}
}
