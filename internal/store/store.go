// Package store holds the signed-in identity, its session and its profile,
// and exposes the operations the UI drives them with. Every error returned
// by a Store operation is an *apperr.AppError.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/onebills/onebills/internal/apperr"
	"github.com/onebills/onebills/internal/backend"
	"github.com/onebills/onebills/internal/metrics"
	"github.com/onebills/onebills/internal/profile"
	"github.com/onebills/onebills/internal/validation"
)

// Profiles is the profile capability the store relies on. Get returns nil
// without error when the identity has no profile yet.
type Profiles interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	Upsert(ctx context.Context, userID string, u profile.Update) (*profile.Profile, error)
}

// Deps aggregates the collaborators of a Store.
type Deps struct {
	Auth     backend.Auth
	Profiles Profiles
	Logger   *slog.Logger
	Reporter *apperr.Reporter
	Metrics  metrics.Recorder
}

// load is a profile fetch in flight for one identity generation.
type load struct {
	gen  uint64
	done chan struct{}
}

// Store is the session/profile state container. Build one per process with
// New and release it with Close.
type Store struct {
	auth     backend.Auth
	profiles Profiles
	logger   *slog.Logger
	reporter *apperr.Reporter
	metrics  metrics.Recorder

	mu          sync.Mutex
	state       State
	busy        int
	gen         uint64
	inflight    *load
	bgCtx       context.Context
	bgCancel    context.CancelFunc
	initialized bool
	closed      bool
	subs        map[int]chan State
	nextSub     int
	unsubscribe func()

	life     context.Context
	stopLife context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a Store in the Uninitialized state.
func New(d Deps) (*Store, error) {
	if d.Auth == nil || d.Profiles == nil {
		return nil, errors.New("store: auth and profiles are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	life, stop := context.WithCancel(context.Background())
	bgCtx, bgCancel := context.WithCancel(life)
	return &Store{
		auth:     d.Auth,
		profiles: d.Profiles,
		logger:   d.Logger,
		reporter: d.Reporter,
		metrics:  d.Metrics,
		state:    State{IsLoading: true},
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
		subs:     make(map[int]chan State),
		life:     life,
		stopLife: stop,
	}, nil
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentUserID returns the signed-in identity, or "".
func (s *Store) CurrentUserID() string {
	return s.State().UserID()
}

// Subscribe returns a channel that receives the latest snapshot after every
// change, starting with the current one. Slow readers only miss
// intermediate snapshots. The returned func stops the subscription.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close stops listening to the backend, cancels background profile loads and
// closes subscriber channels.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.stopLife()
	s.wg.Wait()

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
}

// Initialize restores the persisted session and starts listening to the
// backend's session changes. It never fails: any problem leaves the store
// Unauthenticated. Calls after the first are no-ops.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.initialized || s.closed {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()

	s.begin()
	defer s.end()

	unsubscribe := s.auth.OnAuthStateChange(s.onAuthChange)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	session, err := s.auth.GetSession(ctx)
	if err != nil {
		s.reporter.Log(err, "Auth initialization")
		s.logger.Warn("store.initialize_failed", slog.Any("error", err))
		s.adopt(nil, nil)
		return
	}
	if session == nil || session.User == nil {
		s.adopt(nil, nil)
		s.logger.Info("store.initialized", slog.Bool("authenticated", false))
		return
	}
	gen := s.adopt(session.User, session)
	s.logger.Info("store.initialized", slog.Bool("authenticated", true), slog.String("user_id", session.User.ID))
	s.background(gen, session.User.ID)
}

// SignUp registers an identity. When the backend returns a session the
// store becomes authenticated and loads the profile in the background; a
// pending email confirmation leaves it Unauthenticated.
func (s *Store) SignUp(ctx context.Context, email, password, fullName, phone string) error {
	s.begin()
	defer s.end()

	resp, err := s.auth.SignUp(ctx, backend.SignUpInput{Email: email, Password: password, FullName: fullName, Phone: phone})
	if err != nil {
		return s.fail("sign_up", err)
	}
	s.metrics.RecordAuthOperation("sign_up", "")
	if resp.User == nil || resp.Session == nil {
		s.logger.Info("store.sign_up_pending_confirmation")
		return nil
	}
	gen := s.adopt(resp.User, resp.Session)
	s.logger.Info("store.sign_up", slog.String("user_id", resp.User.ID))
	s.background(gen, resp.User.ID)
	return nil
}

// SignIn authenticates with email and password and waits for the profile,
// so the setup flag is settled when it returns.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	s.begin()
	defer s.end()

	resp, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return s.fail("sign_in", err)
	}
	s.metrics.RecordAuthOperation("sign_in", "")
	s.signedIn(ctx, resp, "store.sign_in")
	return nil
}

// SignInWithPhone asks the backend to send a one-time code to phone.
func (s *Store) SignInWithPhone(ctx context.Context, phone string) error {
	s.begin()
	defer s.end()

	if err := s.auth.SignInWithOTP(ctx, phone); err != nil {
		return s.fail("sign_in_with_phone", err)
	}
	s.metrics.RecordAuthOperation("sign_in_with_phone", "")
	return nil
}

// VerifyOTP completes a phone sign-in and waits for the profile.
func (s *Store) VerifyOTP(ctx context.Context, phone, code string) error {
	s.begin()
	defer s.end()

	resp, err := s.auth.VerifyOTP(ctx, phone, code)
	if err != nil {
		return s.fail("verify_otp", err)
	}
	s.metrics.RecordAuthOperation("verify_otp", "")
	s.signedIn(ctx, resp, "store.verify_otp")
	return nil
}

// UpdateProfile upserts the signed-in identity's profile and reloads it.
// Only the name and phone can be set this way; KYC status is left alone.
func (s *Store) UpdateProfile(ctx context.Context, in ProfileInput) error {
	s.mu.Lock()
	user, gen := s.state.User, s.gen
	s.mu.Unlock()
	if user == nil {
		return s.fail("update_profile", apperr.New(apperr.AuthNotAuthenticated, "User not authenticated",
			"You need to sign in to update your profile."))
	}

	if err := validation.Struct(in); err != nil {
		return s.fail("update_profile", err)
	}
	u := profile.Update{FullName: in.FullName, Phone: in.Phone}
	if _, err := s.profiles.Upsert(ctx, user.ID, u); err != nil {
		return s.fail("update_profile", err)
	}
	s.metrics.RecordAuthOperation("update_profile", "")
	s.logger.Info("store.profile_updated", slog.String("user_id", user.ID))
	s.loadProfile(ctx, gen, user.ID, true)
	return nil
}

// SignOut ends the session. On failure the state is left untouched.
func (s *Store) SignOut(ctx context.Context) error {
	s.begin()
	defer s.end()

	if err := s.auth.SignOut(ctx); err != nil {
		return s.fail("sign_out", err)
	}
	s.metrics.RecordAuthOperation("sign_out", "")
	s.adopt(nil, nil)
	s.logger.Info("store.sign_out")
	return nil
}

// LoadProfile refreshes the profile of the signed-in identity. It never
// fails: a missing profile leaves Profile nil, a lost session signs the
// store out and any other failure clears Profile so setup is required.
func (s *Store) LoadProfile(ctx context.Context) {
	s.mu.Lock()
	user, session, gen := s.state.User, s.state.Session, s.gen
	if user == nil || session == nil {
		s.state.Profile = nil
		s.publish()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.loadProfile(ctx, gen, user.ID, false)
}

// onAuthChange reconciles the store with a session change reported by the
// backend. Events are checked against the backend's current session first,
// so a notice that lost a race with a later sign-in or sign-out is dropped.
func (s *Store) onAuthChange(event backend.Event, session *backend.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	ctx := s.life
	s.mu.Unlock()
	defer s.wg.Done()

	current, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Warn("store.auth_change_unconfirmed", slog.String("event", string(event)), slog.Any("error", err))
		return
	}

	if session == nil || session.User == nil {
		if current != nil {
			s.logger.Debug("store.auth_change_stale", slog.String("event", string(event)))
			return
		}
		s.mu.Lock()
		signedIn := s.state.User != nil
		s.mu.Unlock()
		if signedIn {
			s.adopt(nil, nil)
			s.logger.Info("store.auth_change", slog.String("event", string(event)))
		}
		return
	}

	if current == nil || current.User == nil || current.User.ID != session.User.ID {
		s.logger.Debug("store.auth_change_stale", slog.String("event", string(event)))
		return
	}

	s.mu.Lock()
	same := s.state.UserID() == current.User.ID
	gen := s.gen
	if same {
		s.state.User = current.User
		s.state.Session = current
		s.publish()
	}
	s.mu.Unlock()

	if same {
		if event != backend.EventTokenRefreshed {
			s.loadProfile(ctx, gen, current.User.ID, false)
		}
		return
	}

	// A new identity is adopted together with its profile so observers never
	// see it without one while the fetch is running.
	s.begin()
	defer s.end()
	p, err := s.profiles.Get(ctx, current.User.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.closed || ctx.Err() != nil {
		s.metrics.RecordProfileLoad(metrics.ProfileStale)
		return
	}
	s.advance()
	s.state.User = current.User
	s.state.Session = current
	s.applyProfile(p, err)
	s.publish()
	s.logger.Info("store.auth_change", slog.String("event", string(event)), slog.String("user_id", current.User.ID))
}

func (s *Store) signedIn(ctx context.Context, resp backend.AuthResponse, event string) {
	if resp.User == nil || resp.Session == nil {
		return
	}
	gen := s.adopt(resp.User, resp.Session)
	s.logger.Info(event, slog.String("user_id", resp.User.ID))
	s.loadProfile(ctx, gen, resp.User.ID, false)
}

func (s *Store) fail(op string, err error) *apperr.AppError {
	appErr := apperr.Normalize(err)
	s.reporter.Log(appErr, "store."+op)
	s.metrics.RecordAuthOperation(op, string(appErr.Code))
	return appErr
}

func (s *Store) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy++
	s.state.IsLoading = true
	s.publish()
}

func (s *Store) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy--
	if s.busy == 0 {
		s.state.IsLoading = false
	}
	s.publish()
}

// adopt installs user and session. A different identity starts a new
// generation: the old profile is dropped and its background loads are
// cancelled. It returns the generation in effect.
func (s *Store) adopt(user *backend.User, session *backend.Session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil || session == nil {
		user, session = nil, nil
	}
	if s.state.UserID() != userID(user) || user == nil {
		s.advance()
	}
	s.state.User = user
	s.state.Session = session
	s.publish()
	return s.gen
}

// advance starts a new identity generation. Callers hold s.mu.
func (s *Store) advance() {
	s.gen++
	s.state.Profile = nil
	s.inflight = nil
	s.bgCancel()
	s.bgCtx, s.bgCancel = context.WithCancel(s.life)
}

func (s *Store) background(gen uint64, userID string) {
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	ctx := s.bgCtx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.loadProfile(ctx, gen, userID, false)
	}()
}

// loadProfile fetches the profile of userID for generation gen. Loads of one
// generation never overlap: a caller finding one in flight waits for it and,
// unless fresh data is required, uses its result.
func (s *Store) loadProfile(ctx context.Context, gen uint64, userID string, fresh bool) {
	for {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			s.metrics.RecordProfileLoad(metrics.ProfileStale)
			return
		}
		l := s.inflight
		if l == nil {
			l = &load{gen: gen, done: make(chan struct{})}
			s.inflight = l
			s.mu.Unlock()
			s.fetch(ctx, l, userID)
			return
		}
		s.mu.Unlock()

		select {
		case <-l.done:
		case <-ctx.Done():
			return
		}
		if !fresh {
			return
		}
	}
}

func (s *Store) fetch(ctx context.Context, l *load, userID string) {
	p, err := s.profiles.Get(ctx, userID)

	s.mu.Lock()
	defer close(l.done)
	defer s.mu.Unlock()
	if s.inflight == l {
		s.inflight = nil
	}
	if s.gen != l.gen || ctx.Err() != nil || s.closed {
		s.metrics.RecordProfileLoad(metrics.ProfileStale)
		return
	}
	s.applyProfile(p, err)
	s.publish()
}

// applyProfile folds a profile fetch result into the state. Callers hold s.mu.
func (s *Store) applyProfile(p *profile.Profile, err error) {
	switch {
	case err == nil && p == nil:
		s.state.Profile = nil
		s.metrics.RecordProfileLoad(metrics.ProfileMissing)
	case err == nil:
		s.state.Profile = p
		s.metrics.RecordProfileLoad(metrics.ProfileLoaded)
	case apperr.IsCode(err, apperr.AuthNotAuthenticated):
		s.logger.Info("store.profile_load_signed_out")
		s.advance()
		s.state.User = nil
		s.state.Session = nil
		s.metrics.RecordProfileLoad(metrics.ProfileSignedOut)
	default:
		s.reporter.Log(err, "Profile load")
		s.logger.Warn("store.profile_load_failed", slog.String("code", string(apperr.Normalize(err).Code)))
		s.state.Profile = nil
		s.metrics.RecordProfileLoad(metrics.ProfileFailed)
	}
}

// publish hands the current snapshot to every subscriber, replacing any
// snapshot they have not read yet. Callers hold s.mu.
func (s *Store) publish() {
	snapshot := s.state
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func userID(u *backend.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
