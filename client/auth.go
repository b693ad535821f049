// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/agency-cms/internal/rbac"
)

// LoginResult is the answer to a successful login.
type LoginResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verifyResult struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user"`
}

// AuthState is the client's view of the session: the current user, the
// token and the permission set. It is safe for concurrent use.
//
// Logout only discards the client copy of the token. The server keeps no
// session record, so a copied token stays valid until it expires.
type AuthState struct {
	c *Client

	mu    sync.RWMutex
	user  *User
	token string
}

func newAuthState(c *Client) *AuthState {
	return &AuthState{c: c}
}

// User returns the current user, or nil.
func (a *AuthState) User() *User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

// Token returns the verified token, or "".
func (a *AuthState) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Permissions returns the current user's permission table.
func (a *AuthState) Permissions() rbac.Permissions {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	return a.user.Permissions.Clone()
}

// IsAuthenticated reports whether a verified user is held.
func (a *AuthState) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user != nil && a.token != ""
}

// HasPermission applies the server's permission rule to the current user.
func (a *AuthState) HasPermission(r rbac.Resource, act rbac.Action) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return false
	}
	return rbac.HasPermission(a.user, r, act)
}

// Nav returns the admin navigation entries the current user may open.
// Each entry is gated by the same check the guard runs for its route.
func (a *AuthState) Nav() []rbac.NavItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	return rbac.NavItems(a.user)
}

func (a *AuthState) set(user *User, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
	a.token = token
}

func (a *AuthState) reset() {
	a.set(nil, "")
}

// Login exchanges credentials for a token. On success the token is stored
// under both storage keys. On failure nothing is stored and the error
// matches ErrInvalidCredentials, ErrAccountInactive or ErrRateLimited.
func (a *AuthState) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	data, err := a.c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      map[string]string{"email": email, "password": password},
		anonymous: true,
	})
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := decodeData(data, &res); err != nil {
		return nil, err
	}
	if res.Token == "" || res.User == nil {
		return nil, errors.New("login response carries no token")
	}
	if err := a.c.tokens.SetToken(res.Token); err != nil {
		return nil, err
	}
	// Cached reads were made with the previous identity.
	a.c.queries.Clear()
	a.set(res.User, res.Token)
	return &res, nil
}

// Initialize restores the session from storage by verifying the stored
// token. It returns ErrUnauthenticated when no token is stored. When the
// server rejects the token, storage is cleared and the server's error is
// returned (ErrTokenExpired, ErrTokenInvalid, ErrAccountInactive). A
// network failure keeps the stored token for a later attempt.
func (a *AuthState) Initialize(ctx context.Context) (*User, error) {
	token, err := a.c.tokens.Token()
	if err != nil {
		return nil, err
	}
	if token == "" {
		a.reset()
		return nil, ErrUnauthenticated
	}
	user, err := a.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Verify checks token with the server and adopts it on success. A
// rejected token is removed from storage.
func (a *AuthState) Verify(ctx context.Context, token string) (*User, error) {
	data, err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/verify-token", token: token})
	if err == nil {
		var res verifyResult
		if err = decodeData(data, &res); err == nil && (!res.Valid || res.User == nil) {
			err = ErrTokenInvalid
		}
		if err == nil {
			if err := a.c.tokens.SetToken(token); err != nil {
				return nil, err
			}
			a.set(res.User, token)
			return res.User, nil
		}
	}

	a.reset()
	if transient(err) {
		return nil, err
	}
	a.c.logger.Debug("stored token rejected", "error", err)
	if clearErr := a.c.tokens.Clear(); clearErr != nil {
		return nil, errors.Join(err, clearErr)
	}
	a.c.queries.Clear()
	return nil, err
}

// Logout tells the server (best effort) and forgets the token locally.
// The token itself is not revoked server-side.
func (a *AuthState) Logout(ctx context.Context) error {
	if a.Token() != "" {
		if _, err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}); err != nil {
			a.c.logger.Debug("logout request failed", "error", err)
		}
	}
	a.reset()
	a.c.queries.Clear()
	return a.c.tokens.Clear()
}

// Me refreshes the current user from GET /auth/me.
func (a *AuthState) Me(ctx context.Context) (*User, error) {
	var res struct {
		User *User `json:"user"`
	}
	if err := a.c.getJSON(ctx, "/auth/me", nil, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, ErrTokenInvalid
	}
	a.mu.Lock()
	a.user = res.User
	a.mu.Unlock()
	return res.User, nil
}

// ProfileInput changes the current user's own profile. Nil fields are
// left as they are.
type ProfileInput struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// UpdateProfile changes the current user's email or name.
func (a *AuthState) UpdateProfile(ctx context.Context, in ProfileInput) (*User, error) {
	var u User
	if err := a.c.send(ctx, http.MethodPut, "/auth/profile", in, &u); err != nil {
		return nil, err
	}
	a.mu.Lock()
	if a.user != nil {
		a.user = &u
	}
	a.mu.Unlock()
	return &u, nil
}

// ChangePassword changes the current user's password.
func (a *AuthState) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return a.c.send(ctx, http.MethodPut, "/auth/change-password", body, nil)
}
