package api

import (
	"context"
	"net/http"

	"github.com/taskwire/taskwire/internal/state"
)

// sessionEnvelope is the shape every auth endpoint returns inside data.
type sessionEnvelope struct {
	Token string `json:"token"`
	User  struct {
		ID                 string `json:"id"`
		Email              string `json:"email"`
		Role               string `json:"role"`
		OrganizationID     string `json:"organization_id"`
		HasAdminPrivileges bool   `json:"has_admin_privileges"`
		IsImpersonating    bool   `json:"is_impersonating"`
	} `json:"user"`
}

func (e sessionEnvelope) session(fallbackToken string) state.Session {
	token := e.Token
	if token == "" {
		token = fallbackToken
	}
	return state.Session{
		UserID:             e.User.ID,
		OrganizationID:     e.User.OrganizationID,
		Email:              e.User.Email,
		Role:               e.User.Role,
		IsImpersonating:    e.User.IsImpersonating,
		HasAdminPrivileges: e.User.HasAdminPrivileges,
		Token:              token,
	}
}

// Login authenticates with email and password. Never retried: a slow or
// failing login must fail fast and visibly.
func (c *Client) Login(ctx context.Context, email, password string) (state.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, loginPath, body, &env, callOpts{noRetry: true}); err != nil {
		return state.Session{}, err
	}
	return env.session(""), nil
}

// Signup registers a new organization and returns its admin session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (state.Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/signup", req, &env, callOpts{noRetry: true}); err != nil {
		return state.Session{}, err
	}
	return env.session(""), nil
}

// Probe validates the current token against /auth/me. A 401 here is the one
// case that tears down the session globally.
func (c *Client) Probe(ctx context.Context) (state.Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodGet, probePath, nil, &env, callOpts{}); err != nil {
		return state.Session{}, err
	}
	// The probe confirms identity but does not rotate the token.
	return env.session(c.sessions.Token()), nil
}

// Logout invalidates the session server-side. Local teardown is the caller's
// job so it happens even when this call fails.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, callOpts{})
}

// Impersonate assumes access to a tenant organization (super-admin only).
// The backend issues a fresh scoped session.
func (c *Client) Impersonate(ctx context.Context, orgID string) (state.Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/super-admin/impersonate/"+orgID, nil, &env, callOpts{}); err != nil {
		return state.Session{}, err
	}
	return env.session(""), nil
}

// StopImpersonation returns to the super-admin's own session.
func (c *Client) StopImpersonation(ctx context.Context) (state.Session, error) {
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/super-admin/impersonate/stop", nil, &env, callOpts{}); err != nil {
		return state.Session{}, err
	}
	return env.session(""), nil
}
