package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"wodbox/internal/api"
	"wodbox/internal/auth"
	"wodbox/internal/backend"
	"wodbox/internal/guard"
	"wodbox/internal/logger"
	"wodbox/internal/profile"
)

const (
	EmailConfirmationPath = "/auth/email-confirmation"
	UpdatePasswordPath    = "/auth/update-password"
	OnboardingPath        = "/onboarding"
)

// Session is the process session state the pages act on. *session.State
// satisfies it.
type Session interface {
	guard.Session
	CurrentProfile() *profile.Profile
	SignIn(ctx context.Context, email, password string) (*backend.User, error)
	SignUp(ctx context.Context, creds auth.SignUpCredentials) (*backend.User, error)
	SignOut(ctx context.Context) error
	ResendConfirmationEmail(ctx context.Context, email string) error
}

// Accounts covers the password flows. auth.Service satisfies it.
type Accounts interface {
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
}

// URLSessionDetector completes the auth callback redirect.
// *backend.Client satisfies it.
type URLSessionDetector interface {
	SessionFromURL(ctx context.Context, u *url.URL) (*backend.Session, error)
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

type EmailConfirmationResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type DashboardResponse struct {
	User            *backend.User    `json:"user"`
	Profile         *profile.Profile `json:"profile"`
	Role            string           `json:"role,omitempty"`
	NeedsOnboarding bool             `json:"needs_onboarding"`
}

type pageHandler struct {
	session  Session
	accounts Accounts
	callback URLSessionDetector
	nav      *Navigator
}

func newPageHandler(session Session, accounts Accounts, callback URLSessionDetector, nav *Navigator) *pageHandler {
	return &pageHandler{session: session, accounts: accounts, callback: callback, nav: nav}
}

// Login signs in and points the client at returnUrl when it is a local
// path, otherwise at the dashboard.
func (h *pageHandler) Login(c *gin.Context) {
	var req auth.SignInCredentials
	if !api.BindJSON(c, &req) {
		return
	}

	if _, err := h.session.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Profile not found"})
			return
		}
		writeAuthError(c, err, auth.FlowSignIn)
		return
	}

	c.JSON(http.StatusOK, api.RedirectResponse{Redirect: localPath(c.Query("returnUrl"), guard.LandingPath)})
}

func (h *pageHandler) Register(c *gin.Context) {
	var req auth.SignUpCredentials
	if !api.BindJSON(c, &req) {
		return
	}

	if _, err := h.session.SignUp(c.Request.Context(), req); err != nil {
		writeAuthError(c, err, auth.FlowSignUp)
		return
	}

	c.JSON(http.StatusCreated, api.RedirectResponse{
		Message:  "Account created. Check your email to confirm it.",
		Redirect: EmailConfirmationPath + "?email=" + url.QueryEscape(req.Email),
	})
}

// EmailConfirmation needs the address the confirmation went to; without
// one the client is sent back to the login page.
func (h *pageHandler) EmailConfirmation(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.Redirect(http.StatusFound, guard.LoginPath)
		return
	}

	c.JSON(http.StatusOK, EmailConfirmationResponse{
		Email:   email,
		Message: "We sent a confirmation link to " + email,
	})
}

func (h *pageHandler) ResendConfirmation(c *gin.Context) {
	var req EmailRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.session.ResendConfirmationEmail(c.Request.Context(), req.Email); err != nil {
		writeAuthError(c, err, auth.FlowResend)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Confirmation email sent"})
}

// Callback completes a confirmation or recovery link. Recovery links go on
// to the password form.
func (h *pageHandler) Callback(c *gin.Context) {
	sess, err := h.callback.SessionFromURL(c.Request.Context(), c.Request.URL)
	if err != nil {
		logger.WithError(err).Warn("Auth callback rejected")
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "The link is invalid or has expired"})
		return
	}
	if sess == nil {
		c.Redirect(http.StatusFound, guard.LoginPath)
		return
	}

	if c.Query("type") == "recovery" {
		c.Redirect(http.StatusFound, UpdatePasswordPath)
		return
	}
	c.Redirect(http.StatusFound, guard.LandingPath)
}

// Logout always drops the local session. A failed remote sign-out is
// reported and the client stays where it is.
func (h *pageHandler) Logout(c *gin.Context) {
	if err := h.session.SignOut(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Could not sign out. Please try again."})
		return
	}
	c.JSON(http.StatusOK, api.RedirectResponse{
		Message:  "Signed out",
		Redirect: h.nav.Take(guard.LoginPath),
	})
}

func (h *pageHandler) ResetPassword(c *gin.Context) {
	var req EmailRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.Email); err != nil {
		writeAuthError(c, err, auth.FlowPasswordReset)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "If the account exists, a reset link is on its way"})
}

func (h *pageHandler) UpdatePassword(c *gin.Context) {
	var req PasswordRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if err := h.accounts.UpdatePassword(c.Request.Context(), req.Password); err != nil {
		writeAuthError(c, err, auth.FlowPasswordReset)
		return
	}
	c.JSON(http.StatusOK, api.RedirectResponse{Message: "Password updated", Redirect: guard.LandingPath})
}

func (h *pageHandler) Dashboard(c *gin.Context) {
	p := h.session.CurrentProfile()
	resp := DashboardResponse{
		User:            h.session.CurrentUser(),
		Profile:         p,
		NeedsOnboarding: needsOnboarding(p),
	}
	if p != nil {
		resp.Role = string(p.Role)
	}
	c.JSON(http.StatusOK, resp)
}

// Onboarding is where an owner sets up their box. Users with nothing left
// to set up are sent to the dashboard.
func (h *pageHandler) Onboarding(c *gin.Context) {
	p := h.session.CurrentProfile()
	if !needsOnboarding(p) {
		c.Redirect(http.StatusFound, guard.LandingPath)
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{
		User:            h.session.CurrentUser(),
		Profile:         p,
		Role:            string(p.Role),
		NeedsOnboarding: true,
	})
}

func needsOnboarding(p *profile.Profile) bool {
	return p != nil && p.Role == profile.RoleBusinessOwner && p.BoxID == nil
}

func writeAuthError(c *gin.Context, err error, flow auth.Flow) {
	kind := auth.Classify(err)
	status := http.StatusBadGateway
	switch kind {
	case auth.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case auth.KindEmailNotConfirmed:
		status = http.StatusForbidden
	case auth.KindAlreadyRegistered:
		status = http.StatusConflict
	case auth.KindWeakPassword:
		status = http.StatusBadRequest
	}
	if status == http.StatusBadGateway {
		logger.WithError(err).Error("Auth request failed")
	}
	c.JSON(status, api.ErrorResponse{Error: auth.UserMessage(kind, flow)})
}

// localPath accepts only same-site absolute paths.
func localPath(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
