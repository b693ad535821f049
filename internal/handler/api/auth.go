// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MeResponse describes the authenticated user and what they may open.
type MeResponse struct {
	User        *model.User      `json:"user"`
	Permissions rbac.Permissions `json:"permissions"`
	Nav         []rbac.NavItem   `json:"nav"`
}

// VerifyResponse is returned by POST /auth/verify-token.
type VerifyResponse struct {
	Valid bool        `json:"valid"`
	User  *model.User `json:"user"`
}

// ChangePasswordRequest is the body of PUT /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	email := model.NormalizeEmail(req.Email)
	src := source(r)

	if h.LoginGuard != nil {
		if locked, remaining := h.LoginGuard.IsAccountLocked(email); locked {
			_ = h.Events.LogAuthEvent(ctx, model.EventLevelWarning, "Login attempt on locked account", src, map[string]any{"email": email})
			middleware.WriteLocked(w, remaining)
			return
		}
	}

	res, err := h.Auth.Login(ctx, email, req.Password)
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		_ = h.Events.LogAuthEvent(ctx, model.EventLevelWarning, "Login failed", src, map[string]any{"email": email})
		h.failedLogin(w, r, email)
		return
	case errors.Is(err, model.ErrAccountInactive):
		_ = h.Events.LogAuthEvent(ctx, model.EventLevelWarning, "Login attempt on inactive account", src, map[string]any{"email": email})
		h.writeError(w, r, err)
		return
	case err != nil:
		h.writeError(w, r, err)
		return
	}

	if h.LoginGuard != nil {
		h.LoginGuard.RecordSuccessfulLogin(email)
	}
	src.UserID = &res.User.ID
	h.Logger.Info("user logged in", "user_id", res.User.ID, "email", res.User.Email)
	_ = h.Events.LogAuthEvent(ctx, model.EventLevelInfo, "User logged in", src, map[string]any{"email": res.User.Email})
	WriteSuccess(w, res)
}

// failedLogin counts a failed attempt and answers with the lockout or the
// invalid credentials error. Near the limit the remaining attempts are
// reported in details.
func (h *Handler) failedLogin(w http.ResponseWriter, r *http.Request, email string) {
	if h.LoginGuard == nil {
		middleware.WriteError(w, model.ErrInvalidCredentials)
		return
	}
	if locked, d := h.LoginGuard.RecordFailedAttempt(email); locked {
		_ = h.Events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Account locked due to failed attempts", source(r),
			map[string]any{"email": email, "duration": d.String()})
		middleware.WriteLocked(w, d)
		return
	}
	status, code, msg := middleware.ErrorStatus(model.ErrInvalidCredentials)
	var details map[string]string
	if remaining := h.LoginGuard.GetRemainingAttempts(email); remaining > 0 && remaining <= 3 {
		details = map[string]string{"remaining_attempts": strconv.Itoa(remaining)}
	}
	middleware.WriteAPIError(w, status, code, msg, details)
}

// Logout handles POST /auth/logout. Tokens are stateless, so this only
// records the event; the token stays valid until it expires and the client
// is responsible for discarding it.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	h.Logger.Info("user logged out", "user_id", user.ID)
	_ = h.Events.LogAuthEvent(r.Context(), model.EventLevelInfo, "User logged out", source(r), nil)
	WriteSuccess(w, map[string]string{"message": "Logged out"})
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, meResponse(middleware.GetUser(r)))
}

func meResponse(user *model.User) MeResponse {
	nav := rbac.NavItems(user)
	if nav == nil {
		nav = []rbac.NavItem{}
	}
	return MeResponse{User: user, Permissions: user.Permissions, Nav: nav}
}

// VerifyToken handles POST /auth/verify-token. The token is read from the
// Authorization header, or from a {"token": "..."} body when the header is
// absent.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		if err := decodeJSON(r, &body); err != nil || body.Token == "" {
			middleware.WriteAPIError(w, http.StatusUnauthorized, middleware.CodeUnauthorized, "Missing token", nil)
			return
		}
		token = body.Token
	}

	user, err := h.Auth.Verify(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, VerifyResponse{Valid: true, User: user})
}

// UpdateProfile handles PUT /auth/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in auth.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.Auth.UpdateProfile(r.Context(), middleware.GetUserID(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogUserEvent(r.Context(), model.EventLevelInfo, "Profile updated", source(r), nil)
	WriteSuccess(w, user)
}

// ChangePassword handles PUT /auth/change-password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), middleware.GetUserID(r), req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogAuthEvent(r.Context(), model.EventLevelInfo, "Password changed", source(r), nil)
	WriteSuccess(w, map[string]any{
		"message":    "Password changed",
		"changed_at": time.Now().UTC().Truncate(time.Second),
	})
}
