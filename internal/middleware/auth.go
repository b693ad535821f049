// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for request data.
const (
	ContextKeyUser  ContextKey = "user"
	ContextKeyToken ContextKey = "token"
)

// TokenVerifier resolves a bearer token to a current user.
// auth.Service implements it.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.User, error)
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header. It returns "" when the header is missing or uses another scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// BearerAuth requires a valid bearer token. The user is reloaded on every
// request, so deactivation and role changes take effect immediately.
func BearerAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing bearer token", nil)
				return
			}

			user, err := v.Verify(r.Context(), token)
			if err != nil {
				if !isAuthError(err) {
					slog.Error("token verification failed", "error", err, "path", r.URL.Path)
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, token)))
		})
	}
}

// OptionalBearerAuth loads the user when a valid token is present and
// otherwise serves the request anonymously. Public endpoints use it to
// widen what an authorized caller sees.
func OptionalBearerAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := v.Verify(r.Context(), token)
			if err != nil {
				if !isAuthError(err) {
					slog.Error("token verification failed", "error", err, "path", r.URL.Path)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, token)))
		})
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, model.ErrTokenExpired) ||
		errors.Is(err, model.ErrTokenInvalid) ||
		errors.Is(err, model.ErrAccountInactive)
}

// WithUser stores user and its token in ctx.
func WithUser(ctx context.Context, user *model.User, token string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUser, user)
	return context.WithValue(ctx, ContextKeyToken, token)
}

// GetUser retrieves the authenticated user from the request context.
// Returns nil for anonymous requests.
func GetUser(r *http.Request) *model.User {
	user, _ := r.Context().Value(ContextKeyUser).(*model.User)
	return user
}

// GetToken returns the bearer token the request was authenticated with.
func GetToken(r *http.Request) string {
	token, _ := r.Context().Value(ContextKeyToken).(string)
	return token
}

// GetUserID returns the authenticated user's ID, or 0.
func GetUserID(r *http.Request) int64 {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return 0
}

// GetUserIDPtr returns the authenticated user's ID as a pointer, or nil.
func GetUserIDPtr(r *http.Request) *int64 {
	if user := GetUser(r); user != nil {
		id := user.ID
		return &id
	}
	return nil
}

// Can reports whether the request's user holds resource:action.
func Can(r *http.Request, resource rbac.Resource, action rbac.Action) bool {
	return GetUser(r).Can(resource, action)
}

// RequirePermission rejects requests whose user lacks resource:action.
// It must run after BearerAuth. Denials are logged at WARN so they reach
// the audit log.
func RequirePermission(resource rbac.Resource, action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required", nil)
				return
			}
			if !user.Can(resource, action) {
				LogDenied(r, resource, action)
				WriteAPIError(w, http.StatusForbidden, CodePermissionDenied,
					"Missing permission "+string(resource)+":"+string(action), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LogDenied records a permission denial for the request's user.
func LogDenied(r *http.Request, resource rbac.Resource, action rbac.Action) {
	slog.Warn("permission denied",
		"category", model.EventCategorySecurity,
		"user_id", GetUserID(r),
		"resource", string(resource),
		"action", string(action),
		"method", r.Method,
		"path", r.URL.Path,
		"ip", ClientIP(r),
	)
}
