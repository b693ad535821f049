// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strings"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/store"
)

// UpdateUserRequest is the body of PUT /users/{id}. Nil fields are
// unchanged. When Role or Permissions is set the stored table is rebuilt
// as the role template merged with Permissions.
type UpdateUserRequest struct {
	Email       *string           `json:"email"`
	FirstName   *string           `json:"first_name"`
	LastName    *string           `json:"last_name"`
	Role        *string           `json:"role"`
	Permissions *rbac.Permissions `json:"permissions"`
}

// ListUsers handles GET /users.
// Query: page, limit, role, active, search.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	active, err := parseBool(r, "active")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	users, total, err := h.Queries.ListUsers(r.Context(), store.UserFilter{
		Role:   r.URL.Query().Get("role"),
		Active: active,
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, NewListResponse(users, total, p))
}

// GetUser handles GET /users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, user)
}

// CreateUser handles POST /users. Only a super admin may create another
// super admin.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in auth.NewUser
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	caller := middleware.GetUser(r)
	if in.Role == rbac.RoleSuperAdmin && !caller.IsSuperAdmin() {
		WriteForbidden(w, "Only a super admin can create super admins")
		return
	}
	if denyEscalation(w, r, caller, rbac.Effective(in.Role, in.Permissions)) {
		return
	}

	user, err := h.Auth.CreateUser(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogUserEvent(r.Context(), model.EventLevelInfo, "User invited", source(r),
		map[string]any{"user_id": user.ID, "email": user.Email, "role": user.Role})
	WriteCreated(w, user)
}

// UpdateUser handles PUT /users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	caller := middleware.GetUser(r)
	wasSuper := user.IsSuperAdmin()
	if req.Email != nil {
		user.Email = model.NormalizeEmail(*req.Email)
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Role != nil || req.Permissions != nil {
		if user.ID == caller.ID {
			WriteForbidden(w, "You cannot change your own role or permissions")
			return
		}
		if req.Role != nil {
			user.Role = *req.Role
		}
		if (wasSuper || user.IsSuperAdmin()) && !caller.IsSuperAdmin() {
			WriteForbidden(w, "Only a super admin can manage super admins")
			return
		}
		var overrides rbac.Permissions
		if req.Permissions != nil {
			overrides = *req.Permissions
		}
		user.Permissions = rbac.Effective(user.Role, overrides)
		if denyEscalation(w, r, caller, user.Permissions) {
			return
		}
	}
	if err := user.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if wasSuper && user.IsActive && !user.IsSuperAdmin() && !h.otherSuperAdminExists(w, r) {
		return
	}

	if err := h.Queries.UpdateUser(ctx, user); err != nil {
		if _, code, _ := middleware.ErrorStatus(err); code == middleware.CodeConflict {
			ve := model.NewValidationError()
			ve.Add("email", "Email is already in use")
			err = ve
		}
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogUserEvent(ctx, model.EventLevelInfo, "User updated", source(r),
		map[string]any{"user_id": user.ID, "role": user.Role})
	WriteSuccess(w, user)
}

// DeactivateUser handles POST /users/{id}/deactivate. Users are never hard
// deleted so authored content keeps its audit trail.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	if user.ID == middleware.GetUserID(r) {
		middleware.WriteAPIError(w, http.StatusConflict, middleware.CodeConflict, "You cannot deactivate your own account", nil)
		return
	}
	if user.IsSuperAdmin() && !middleware.GetUser(r).IsSuperAdmin() {
		WriteForbidden(w, "Only a super admin can manage super admins")
		return
	}
	if user.IsSuperAdmin() && user.IsActive && !h.otherSuperAdminExists(w, r) {
		return
	}
	h.setActive(w, r, user, false)
}

// ActivateUser handles POST /users/{id}/activate.
func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	if user.IsSuperAdmin() && !middleware.GetUser(r).IsSuperAdmin() {
		WriteForbidden(w, "Only a super admin can manage super admins")
		return
	}
	h.setActive(w, r, user, true)
}

// denyEscalation writes a 403 and returns true when perms grants anything
// the caller does not hold. Malformed tables are left to validation.
func denyEscalation(w http.ResponseWriter, r *http.Request, caller *model.User, perms rbac.Permissions) bool {
	if perms.Validate() != nil {
		return false
	}
	extra := rbac.Exceeding(caller, perms)
	if len(extra) == 0 {
		return false
	}
	res, act, _ := strings.Cut(extra[0], ":")
	middleware.LogDenied(r, rbac.Resource(res), rbac.Action(act))
	middleware.WriteAPIError(w, http.StatusForbidden, middleware.CodePermissionDenied,
		"You cannot grant permissions you do not have", map[string]string{"permissions": strings.Join(extra, ", ")})
	return true
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, user *model.User, active bool) {
	if err := h.Queries.SetUserActive(r.Context(), user.ID, active); err != nil {
		h.writeError(w, r, err)
		return
	}
	user.IsActive = active
	msg := "User deactivated"
	if active {
		msg = "User activated"
	}
	_ = h.Events.LogUserEvent(r.Context(), model.EventLevelInfo, msg, source(r), map[string]any{"user_id": user.ID})
	WriteSuccess(w, user)
}

func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id, ok := parseIDParam(r)
	if !ok {
		WriteBadRequest(w, "Invalid user ID")
		return nil, false
	}
	user, err := h.Queries.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return &user, true
}

// otherSuperAdminExists guards the last active super admin. It writes the
// conflict response itself when there is none.
func (h *Handler) otherSuperAdminExists(w http.ResponseWriter, r *http.Request) bool {
	n, err := h.Queries.CountActiveSuperAdmins(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return false
	}
	if n <= 1 {
		middleware.WriteAPIError(w, http.StatusConflict, middleware.CodeConflict, "At least one active super admin must remain", nil)
		return false
	}
	return true
}
