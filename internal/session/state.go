package session

import (
	"context"
	"sync"
	"time"

	"wodbox/internal/auth"
	"wodbox/internal/backend"
	"wodbox/internal/logger"
	"wodbox/internal/metrics"
	"wodbox/internal/profile"
)

const (
	LoginPath = "/auth/login"

	reloadTimeout = 10 * time.Second
)

// EventSource delivers auth state changes. *backend.Client satisfies it.
type EventSource interface {
	OnAuthStateChange(fn func(backend.AuthChange)) func()
}

// ProfileLoader fetches a profile by user id.
type ProfileLoader interface {
	GetProfile(ctx context.Context, id string) (*profile.Profile, error)
}

type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Snapshot is a copy of the state passed to subscribers.
type Snapshot struct {
	User    *backend.User
	Profile *profile.Profile
	Loading bool
}

// State holds the signed-in user and profile for the process. A nil user
// means nobody is signed in; the profile is never set without a user.
type State struct {
	auth     auth.Service
	events   EventSource
	profiles ProfileLoader
	nav      Navigator

	mu      sync.RWMutex
	user    *backend.User
	profile *profile.Profile
	loading bool

	loaded     chan struct{}
	loadedOnce sync.Once

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int

	unsubscribe func()
}

func New(authSvc auth.Service, events EventSource, profiles ProfileLoader, nav Navigator) *State {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &State{
		auth:     authSvc,
		events:   events,
		profiles: profiles,
		nav:      nav,
		loading:  true,
		loaded:   make(chan struct{}),
		subs:     make(map[int]func(Snapshot)),
	}
}

// Init restores the existing session, then follows auth state changes
// until Close. Loading ends once, after the initial check, even when it
// fails.
func (s *State) Init(ctx context.Context) error {
	defer s.finishLoading()

	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to restore session")
	} else if sess != nil {
		s.loadUserData(ctx, sess.User)
	}

	if s.events != nil {
		s.unsubscribe = s.events.OnAuthStateChange(s.handleAuthChange)
	}
	return err
}

func (s *State) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *State) handleAuthChange(change backend.AuthChange) {
	logger.Debug("Auth state changed", "event", change.Event)

	if change.Session == nil {
		s.clear()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	s.loadUserData(ctx, change.Session.User)
}

// loadUserData publishes the user at once and the profile when it
// arrives. A failed profile fetch is logged and leaves the user without a
// profile.
func (s *State) loadUserData(ctx context.Context, user backend.User) {
	s.mu.Lock()
	s.user = &user
	if s.profile != nil && s.profile.ID != user.ID {
		s.profile = nil
	}
	s.mu.Unlock()
	metrics.SetSessionActive(true)
	s.notify()

	p, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to load user profile", "user_id", user.ID)
		return
	}

	s.mu.Lock()
	if s.user != nil && s.user.ID == user.ID {
		s.profile = p
	}
	s.mu.Unlock()
	s.notify()
}

func (s *State) set(user *backend.User, p *profile.Profile) {
	s.mu.Lock()
	s.user, s.profile = user, p
	s.mu.Unlock()
	metrics.SetSessionActive(user != nil)
	s.notify()
}

func (s *State) clear() {
	s.set(nil, nil)
}

func (s *State) finishLoading() {
	s.loadedOnce.Do(func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		close(s.loaded)
		s.notify()
	})
}

// SignIn authenticates and fills the state before returning. On failure
// the state is left as it was.
func (s *State) SignIn(ctx context.Context, email, password string) (*backend.User, error) {
	u, err := s.auth.SignIn(ctx, auth.SignInCredentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	user := backend.User{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
	s.set(&user, u.Profile)
	logger.Info("User signed in", "user_id", u.ID, "role", u.Role)
	return &user, nil
}

// SignUp registers the account. When the backend signs the new user in
// straight away the state is filled too; otherwise the user must confirm
// their email first.
func (s *State) SignUp(ctx context.Context, creds auth.SignUpCredentials) (*backend.User, error) {
	u, err := s.auth.SignUp(ctx, creds)
	if err != nil {
		return nil, err
	}

	user := backend.User{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to read session after sign up")
	}
	if sess != nil && sess.User.ID == u.ID {
		s.set(&user, u.Profile)
	}
	return &user, nil
}

// SignOut signs out remotely and always clears the local state. It only
// navigates to the login page when the remote sign-out succeeded.
func (s *State) SignOut(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	s.clear()
	if err != nil {
		logger.WithError(err).Error("Error signing out")
		return err
	}
	s.nav.Navigate(LoginPath)
	return nil
}

func (s *State) ResendConfirmationEmail(ctx context.Context, email string) error {
	return s.auth.ResendConfirmationEmail(ctx, email)
}

func (s *State) CurrentUser() *backend.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) CurrentProfile() *profile.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

func (s *State) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// WaitLoaded blocks until the initial session check has finished.
func (s *State) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// UserRole is the current profile's role, or "" without one.
func (s *State) UserRole() profile.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.Role
}

func (s *State) HasRole(role profile.Role) bool {
	current := s.UserRole()
	return current != "" && current == role
}

func (s *State) IsBusinessOwner() bool { return s.HasRole(profile.RoleBusinessOwner) }
func (s *State) IsAthlete() bool       { return s.HasRole(profile.RoleAthlete) }
func (s *State) IsTrainer() bool       { return s.HasRole(profile.RoleTrainer) }

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		User:    s.CurrentUser(),
		Profile: s.CurrentProfile(),
		Loading: s.IsLoading(),
	}
}

// Subscribe registers fn to run after every state change. fn runs on the
// goroutine that made the change.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *State) notify() {
	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	if len(subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}
