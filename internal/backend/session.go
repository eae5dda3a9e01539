package backend

import (
	"time"

	"github.com/supabase-community/gotrue-go/types"
)

// User is the authenticated identity issued by the auth backend.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	CreatedAt    time.Time              `json:"created_at"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// Session is the token pair persisted under the storage key.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

func (s *Session) ExpiresIn(now time.Time) time.Duration {
	return time.Unix(s.ExpiresAt, 0).Sub(now)
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && !now.Before(time.Unix(s.ExpiresAt, 0))
}

func userFromAPI(u types.User) User {
	return User{
		ID:           u.ID.String(),
		Email:        u.Email,
		CreatedAt:    u.CreatedAt,
		UserMetadata: u.UserMetadata,
	}
}

func sessionFromAPI(s types.Session, now time.Time) *Session {
	expiresAt := s.ExpiresAt
	if expiresAt == 0 && s.ExpiresIn > 0 {
		expiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresAt:    expiresAt,
		User:         userFromAPI(s.User),
	}
}
