package guard

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"wodbox/internal/api"
	"wodbox/internal/backend"
	"wodbox/internal/profile"
)

const (
	LoginPath   = "/auth/login"
	LandingPath = "/dashboard"
)

// Session is the part of session.State the guards read.
type Session interface {
	WaitLoaded(ctx context.Context) error
	CurrentUser() *backend.User
	UserRole() profile.Role
}

// Authenticated lets signed-in users through and sends everyone else to
// the login page with the requested URL in returnUrl.
func Authenticated(state Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := loadedUser(c, state)
		if !ok {
			return
		}
		if user == nil {
			redirect(c, LoginPath+"?returnUrl="+url.QueryEscape(c.Request.URL.RequestURI()))
			return
		}

		setIdentity(c, user, state.UserRole())
		c.Next()
	}
}

// RequireRole lets through users whose profile has role. Anonymous users
// go to the login page, other roles to the landing page.
func RequireRole(state Session, role profile.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := loadedUser(c, state)
		if !ok {
			return
		}
		if user == nil {
			redirect(c, LoginPath)
			return
		}

		current := state.UserRole()
		if current != role {
			redirect(c, LandingPath)
			return
		}

		setIdentity(c, user, current)
		c.Next()
	}
}

func BusinessOwner(state Session) gin.HandlerFunc {
	return RequireRole(state, profile.RoleBusinessOwner)
}

func Athlete(state Session) gin.HandlerFunc {
	return RequireRole(state, profile.RoleAthlete)
}

func GetUserID(c *gin.Context) (string, bool) {
	return api.GetUserID(c)
}

func loadedUser(c *gin.Context, state Session) (*backend.User, bool) {
	if err := state.WaitLoaded(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "Session is still loading"})
		return nil, false
	}
	return state.CurrentUser(), true
}

func setIdentity(c *gin.Context, user *backend.User, role profile.Role) {
	c.Set(api.ContextUserID, user.ID)
	c.Set(api.ContextUserRole, string(role))
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
	c.Abort()
}
