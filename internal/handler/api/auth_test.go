// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/store"
)

func TestLogin_Success(t *testing.T) {
	env := testSetup(t)
	env.createUser(t, "editor@example.com", rbac.RoleEditor)

	w := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: " Editor@Example.com ", Password: testPassword})

	assertStatusCode(t, w, http.StatusOK)
	res := unmarshalData[auth.LoginResult](t, w)
	assert.NotEmpty(t, res.Token)
	require.NotNil(t, res.User)
	assert.Equal(t, "editor@example.com", res.User.Email)
	assert.False(t, res.ExpiresAt.IsZero())
	assert.NotContains(t, w.Body.String(), "password")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := testSetup(t)
	env.createUser(t, "editor@example.com", rbac.RoleEditor)

	tests := []struct {
		name  string
		email string
	}{
		{"wrong password", "editor@example.com"},
		{"unknown email", "nobody@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: tt.email, Password: "wrong-password"})
			assertStatusCode(t, w, http.StatusUnauthorized)
			assertErrorResponse(t, w, middleware.CodeInvalidCredentials)
		})
	}
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	env := testSetup(t)
	env.createUser(t, "editor@example.com", rbac.RoleEditor)
	bad := LoginRequest{Email: "editor@example.com", Password: "wrong-password"}

	for i := 0; i < 4; i++ {
		w := env.do(t, http.MethodPost, "/auth/login", "", bad)
		assertStatusCode(t, w, http.StatusUnauthorized)
		if i == 3 {
			resp := unmarshalError(t, w)
			assert.Equal(t, "1", resp.Error.Details["remaining_attempts"])
		}
	}

	w := env.do(t, http.MethodPost, "/auth/login", "", bad)
	assertStatusCode(t, w, http.StatusTooManyRequests)
	assertErrorResponse(t, w, middleware.CodeRateLimited)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// The correct password does not unlock the account early.
	w = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "editor@example.com", Password: testPassword})
	assertStatusCode(t, w, http.StatusTooManyRequests)
}

func TestLogin_InactiveAccount(t *testing.T) {
	env := testSetup(t)
	u := env.createUser(t, "gone@example.com", rbac.RoleViewer)
	require.NoError(t, store.New(env.db).SetUserActive(t.Context(), u.ID, false))

	w := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "gone@example.com", Password: testPassword})

	assertStatusCode(t, w, http.StatusForbidden)
	assertErrorResponse(t, w, middleware.CodeAccountInactive)
}

func TestMe(t *testing.T) {
	env := testSetup(t)
	_, token := env.userToken(t, "viewer@example.com", rbac.RoleViewer)

	w := env.do(t, http.MethodGet, "/auth/me", token, nil)

	assertStatusCode(t, w, http.StatusOK)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	me := unmarshalData[MeResponse](t, w)
	assert.Equal(t, "viewer@example.com", me.User.Email)
	assert.True(t, me.Permissions.Allows(rbac.ResourceProjects, rbac.ActionRead))
	assert.False(t, me.Permissions.Allows(rbac.ResourceUsers, rbac.ActionRead))
	for _, item := range me.Nav {
		assert.NotEqual(t, "/admin/users", item.Path, "viewer must not see user management")
	}
}

func TestMe_Unauthenticated(t *testing.T) {
	env := testSetup(t)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"no token", "", middleware.CodeUnauthorized},
		{"garbage token", "not-a-token", middleware.CodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/auth/me", tt.token, nil)
			assertStatusCode(t, w, http.StatusUnauthorized)
			assertErrorResponse(t, w, tt.code)
		})
	}
}

func TestVerifyToken(t *testing.T) {
	env := testSetup(t)
	_, token := env.userToken(t, "admin@example.com", rbac.RoleAdmin)

	t.Run("header", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/verify-token", token, nil)
		assertStatusCode(t, w, http.StatusOK)
		got := unmarshalData[VerifyResponse](t, w)
		assert.True(t, got.Valid)
		assert.Equal(t, "admin@example.com", got.User.Email)
	})

	t.Run("body", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/verify-token", "", map[string]string{"token": token})
		assertStatusCode(t, w, http.StatusOK)
	})

	t.Run("missing", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/verify-token", "", nil)
		assertStatusCode(t, w, http.StatusUnauthorized)
		assertErrorResponse(t, w, middleware.CodeUnauthorized)
	})

	t.Run("tampered", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/verify-token", token+"x", nil)
		assertStatusCode(t, w, http.StatusUnauthorized)
		assertErrorResponse(t, w, middleware.CodeTokenInvalid)
	})
}

func TestLogout_TokenStaysValid(t *testing.T) {
	env := testSetup(t)
	_, token := env.userToken(t, "editor@example.com", rbac.RoleEditor)

	w := env.do(t, http.MethodPost, "/auth/logout", token, nil)
	assertStatusCode(t, w, http.StatusOK)

	// Tokens are stateless; only the client copy is discarded.
	w = env.do(t, http.MethodGet, "/auth/me", token, nil)
	assertStatusCode(t, w, http.StatusOK)
}

func TestChangePassword(t *testing.T) {
	env := testSetup(t)
	_, token := env.userToken(t, "editor@example.com", rbac.RoleEditor)

	w := env.do(t, http.MethodPut, "/auth/change-password", token,
		ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "another-long-password"})
	assertStatusCode(t, w, http.StatusUnprocessableEntity)
	resp := assertErrorResponse(t, w, middleware.CodeValidation)
	assert.Contains(t, resp.Error.Details, "current_password")

	w = env.do(t, http.MethodPut, "/auth/change-password", token,
		ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: "another-long-password"})
	assertStatusCode(t, w, http.StatusOK)

	w = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "editor@example.com", Password: "another-long-password"})
	assertStatusCode(t, w, http.StatusOK)
}

func TestUpdateProfile(t *testing.T) {
	env := testSetup(t)
	_, token := env.userToken(t, "editor@example.com", rbac.RoleEditor)

	w := env.do(t, http.MethodPut, "/auth/profile", token, map[string]string{"first_name": " Ada ", "last_name": "Lovelace"})

	assertStatusCode(t, w, http.StatusOK)
	body := w.Body.String()
	assert.Contains(t, body, `"first_name":"Ada"`)
	assert.Contains(t, body, `"role":"editor"`)
}
