package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wodbox/internal/backend"
	"wodbox/internal/logger"
	"wodbox/internal/metrics"
	"wodbox/internal/profile"
)

const (
	DefaultProfileRetries    = 3
	DefaultProfileRetryDelay = time.Second
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrUserCreation    = errors.New("user creation failed")
	ErrSignInFailed    = errors.New("sign in failed")
)

// Provider is the backend auth module.
type Provider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*backend.User, *backend.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*backend.User, *backend.Session, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*backend.Session, error)
	GetUser(ctx context.Context) (*backend.User, error)
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, password string) error
	Resend(ctx context.Context, email string) error
}

// ProfileStore reads and creates profile rows. profile.Service satisfies it.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*profile.Profile, error)
	CreateProfile(ctx context.Context, req profile.CreateRequest) (*profile.Profile, error)
}

// AuthUser is an authenticated account together with its profile.
type AuthUser struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	CreatedAt time.Time        `json:"created_at"`
	Role      profile.Role     `json:"role"`
	Profile   *profile.Profile `json:"profile"`
}

type SignUpCredentials struct {
	Email    string       `json:"email" binding:"required,email"`
	Password string       `json:"password" binding:"required,min=6"`
	FullName string       `json:"full_name" binding:"required"`
	Role     profile.Role `json:"role" binding:"required,oneof=business_owner athlete trainer"`
	BoxID    *string      `json:"box_id,omitempty" binding:"omitempty,uuid"`
}

type SignInCredentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type Service interface {
	SignUp(ctx context.Context, creds SignUpCredentials) (*AuthUser, error)
	SignIn(ctx context.Context, creds SignInCredentials) (*AuthUser, error)
	SignOut(ctx context.Context) error
	GetCurrentUser(ctx context.Context) (*AuthUser, error)
	GetSession(ctx context.Context) (*backend.Session, error)
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	ResendConfirmationEmail(ctx context.Context, email string) error
}

// Options tunes how long SignUp waits for the backend trigger to create
// the profile row.
type Options struct {
	ProfileRetries    int
	ProfileRetryDelay time.Duration
}

type service struct {
	provider Provider
	profiles ProfileStore
	retries  int
	delay    time.Duration
}

func NewService(provider Provider, profiles ProfileStore, opts Options) Service {
	s := &service{
		provider: provider,
		profiles: profiles,
		retries:  opts.ProfileRetries,
		delay:    opts.ProfileRetryDelay,
	}
	if s.retries < 0 {
		s.retries = DefaultProfileRetries
	}
	if s.delay <= 0 {
		s.delay = DefaultProfileRetryDelay
	}
	return s
}

// SignUp creates the account and waits for its profile. The profile is
// normally inserted by a database trigger; when it has not appeared after
// ProfileRetries+1 fetches it is inserted here instead.
func (s *service) SignUp(ctx context.Context, creds SignUpCredentials) (*AuthUser, error) {
	metadata := map[string]interface{}{
		"full_name": creds.FullName,
		"role":      string(creds.Role),
		"box_id":    nil,
	}
	if creds.BoxID != nil && *creds.BoxID != "" {
		metadata["box_id"] = *creds.BoxID
	}

	user, _, err := s.provider.SignUp(ctx, creds.Email, creds.Password, metadata)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID == "" {
		return nil, ErrUserCreation
	}

	p, err := s.awaitProfile(ctx, user.ID, creds)
	if err != nil {
		return nil, err
	}

	logger.Info("User signed up", "user_id", user.ID, "role", p.Role)
	return newAuthUser(user, p), nil
}

func (s *service) awaitProfile(ctx context.Context, userID string, creds SignUpCredentials) (*profile.Profile, error) {
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err := sleep(ctx, s.delay); err != nil {
			return nil, err
		}

		p, err := s.profiles.GetProfile(ctx, userID)
		if err == nil {
			metrics.RecordProfileFetchAttempts(attempt + 1)
			return p, nil
		}
		if !errors.Is(err, profile.ErrNotFound) {
			logger.WithError(err).Warn("Profile fetch failed", "user_id", userID)
		}
		if left := s.retries - attempt; left > 0 {
			logger.Debug("Profile not found, retrying", "user_id", userID, "retries_left", left)
		}
	}
	metrics.RecordProfileFetchAttempts(s.retries + 1)

	logger.Info("Creating profile explicitly", "user_id", userID)
	metrics.RecordProfileFallbackInsert()
	p, err := s.profiles.CreateProfile(ctx, profile.CreateRequest{
		ID:       userID,
		FullName: creds.FullName,
		Role:     creds.Role,
		BoxID:    creds.BoxID,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (s *service) SignIn(ctx context.Context, creds SignInCredentials) (*AuthUser, error) {
	user, _, err := s.provider.SignInWithPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID == "" {
		return nil, ErrSignInFailed
	}

	p, err := s.loadProfile(ctx, user.ID)
	if err != nil {
		// The backend already holds the new session. Drop it so no one is
		// left signed in without a profile.
		if outErr := s.provider.SignOut(ctx); outErr != nil {
			logger.WithError(outErr).Warn("Failed to sign out after profile lookup failed", "user_id", user.ID)
		}
		return nil, err
	}
	return newAuthUser(user, p), nil
}

func (s *service) SignOut(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

// GetCurrentUser returns (nil, nil) when nobody is signed in or the backend
// no longer accepts the stored token. A signed-in user without a profile is
// ErrProfileNotFound, as in SignIn.
func (s *service) GetCurrentUser(ctx context.Context) (*AuthUser, error) {
	user, err := s.provider.GetUser(ctx)
	if err != nil {
		if !errors.Is(err, backend.ErrNoSession) {
			logger.WithError(err).Debug("Backend rejected the current session")
		}
		return nil, nil
	}
	if user == nil {
		return nil, nil
	}

	p, err := s.loadProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return newAuthUser(user, p), nil
}

func (s *service) GetSession(ctx context.Context) (*backend.Session, error) {
	return s.provider.GetSession(ctx)
}

func (s *service) ResetPassword(ctx context.Context, email string) error {
	return s.provider.ResetPasswordForEmail(ctx, email)
}

func (s *service) UpdatePassword(ctx context.Context, newPassword string) error {
	return s.provider.UpdatePassword(ctx, newPassword)
}

func (s *service) ResendConfirmationEmail(ctx context.Context, email string) error {
	return s.provider.Resend(ctx, email)
}

func (s *service) loadProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func newAuthUser(user *backend.User, p *profile.Profile) *AuthUser {
	return &AuthUser{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		Role:      p.Role,
		Profile:   p,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
