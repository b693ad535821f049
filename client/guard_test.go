// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/agency-cms/internal/rbac"
)

func TestAdminRoute(t *testing.T) {
	assert.False(t, AdminRoute(LoginPath).RequireAuth)

	r := AdminRoute("/admin/users")
	assert.True(t, r.RequireAuth)
	assert.Equal(t, rbac.Gate{Resource: rbac.ResourceUsers, Action: rbac.ActionRead}, r.Gate)

	r = AdminRoute(DashboardPath)
	assert.True(t, r.RequireAuth)
	assert.Zero(t, r.Gate)
}

func TestGuard_NoToken(t *testing.T) {
	s := newAPIServer(t)
	c := newTestClient(t, s)
	g := NewGuard(c.Auth())
	assert.Equal(t, GuardUnchecked, g.State())

	before := s.requests.Load()
	d := g.Evaluate(context.Background(), AdminRoute("/admin/projects"))
	assert.False(t, d.Render)
	assert.Equal(t, LoginPath, d.Redirect)
	assert.Equal(t, "/admin/projects", d.From)
	assert.True(t, d.IsRedirectToLogin())
	assert.ErrorIs(t, d.Err, ErrUnauthenticated)
	assert.Equal(t, GuardUnauthorized, g.State())
	assert.Equal(t, before, s.requests.Load(), "no verify call without a token")

	d = g.Evaluate(context.Background(), AdminRoute(LoginPath))
	assert.True(t, d.Render)
}

func TestGuard_StoredTokenVerifiedOnce(t *testing.T) {
	s := newAPIServer(t)
	s.createUser(t, "ed@example.com", rbac.RoleEditor)
	ctx := context.Background()

	res, err := newTestClient(t, s).Auth().Login(ctx, "ed@example.com", testPassword)
	require.NoError(t, err)

	storage := NewMemoryStorage()
	require.NoError(t, NewTokenStore(storage).SetToken(res.Token))
	c := newTestClient(t, s, WithStorage(storage))
	g := NewGuard(c.Auth())

	d := g.Evaluate(ctx, AdminRoute("/admin/blog"))
	assert.True(t, d.Render)
	assert.Equal(t, GuardAuthorized, d.State)
	assert.True(t, c.Auth().IsAuthenticated())

	before := s.requests.Load()
	d = g.Evaluate(ctx, AdminRoute("/admin/team"))
	assert.True(t, d.Render)
	assert.Equal(t, before, s.requests.Load(), "authorized guard does not verify again")
}

// switchableTransport fails every round trip while offline is set.
type switchableTransport struct {
	offline atomic.Bool
}

func (tr *switchableTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if tr.offline.Load() {
		return nil, errors.New("network is unreachable")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestGuard_NetworkErrorThenOnline(t *testing.T) {
	s := newAPIServer(t)
	s.createUser(t, "ed@example.com", rbac.RoleEditor)
	ctx := context.Background()

	res, err := newTestClient(t, s).Auth().Login(ctx, "ed@example.com", testPassword)
	require.NoError(t, err)

	storage := NewMemoryStorage()
	require.NoError(t, NewTokenStore(storage).SetToken(res.Token))
	tr := &switchableTransport{}
	tr.offline.Store(true)
	c := newTestClient(t, s, WithStorage(storage), WithHTTPClient(&http.Client{Transport: tr}))
	g := NewGuard(c.Auth())

	d := g.Evaluate(ctx, AdminRoute("/admin/blog"))
	assert.False(t, d.Render)
	assert.Empty(t, d.Redirect)
	assert.False(t, d.IsRedirectToLogin())
	assert.Equal(t, GuardUnchecked, d.State)
	var netErr *NetworkError
	assert.ErrorAs(t, d.Err, &netErr)

	token, err := NewTokenStore(storage).Token()
	require.NoError(t, err)
	assert.Equal(t, res.Token, token, "token survives an unreachable server")

	tr.offline.Store(false)
	d = g.Evaluate(ctx, AdminRoute("/admin/blog"))
	assert.True(t, d.Render)
	assert.Equal(t, GuardAuthorized, d.State)
	assert.NoError(t, d.Err)
	assert.True(t, c.Auth().IsAuthenticated())
}

func TestGuard_PermissionDeniedRedirectsToDashboard(t *testing.T) {
	s := newAPIServer(t)
	c := loggedIn(t, s, "view@example.com", rbac.RoleViewer)
	g := NewGuard(c.Auth())

	d := g.Evaluate(context.Background(), AdminRoute("/admin/users"))
	assert.False(t, d.Render)
	assert.Equal(t, DashboardPath, d.Redirect)
	assert.ErrorIs(t, d.Err, ErrPermissionDenied)
	assert.False(t, d.IsRedirectToLogin())
	assert.Equal(t, GuardAuthorized, g.State())

	d = g.Evaluate(context.Background(), AdminRoute(DashboardPath))
	assert.True(t, d.Render)
}

func TestGuard_SuperAdminOpensEverything(t *testing.T) {
	s := newAPIServer(t)
	c := loggedIn(t, s, "root@example.com", rbac.RoleSuperAdmin)
	g := NewGuard(c.Auth())

	for _, item := range rbac.AdminNav {
		d := g.Evaluate(context.Background(), AdminRoute(item.Path))
		assert.True(t, d.Render, item.Path)
	}
	assert.Len(t, c.Auth().Nav(), len(rbac.AdminNav))
}

func TestGuard_LoginPageRedirectsAuthenticatedUser(t *testing.T) {
	s := newAPIServer(t)
	c := loggedIn(t, s, "ed@example.com", rbac.RoleEditor)

	d := NewGuard(c.Auth()).Evaluate(context.Background(), AdminRoute(LoginPath))
	assert.False(t, d.Render)
	assert.Equal(t, DashboardPath, d.Redirect)
}

func TestGuard_ExpiredTokenClearsAndRedirects(t *testing.T) {
	s := newAPIServer(t)
	u := s.createUser(t, "ed@example.com", rbac.RoleEditor)
	storage := NewMemoryStorage()
	require.NoError(t, NewTokenStore(storage).SetToken(expiredToken(t, u)))
	c := newTestClient(t, s, WithStorage(storage))
	g := NewGuard(c.Auth())

	d := g.Evaluate(context.Background(), AdminRoute("/admin/blog"))
	assert.True(t, d.IsRedirectToLogin())
	assert.ErrorIs(t, d.Err, ErrTokenExpired)
	assert.Equal(t, GuardUnauthorized, g.State())

	admin, auth := storedKeys(t, storage)
	assert.Empty(t, admin)
	assert.Empty(t, auth)
}

func TestGuard_FollowsLoginAndLogout(t *testing.T) {
	s := newAPIServer(t)
	s.createUser(t, "ed@example.com", rbac.RoleEditor)
	c := newTestClient(t, s)
	g := NewGuard(c.Auth())
	ctx := context.Background()

	assert.False(t, g.Evaluate(ctx, AdminRoute("/admin/blog")).Render)

	_, err := c.Auth().Login(ctx, "ed@example.com", testPassword)
	require.NoError(t, err)
	assert.True(t, g.Evaluate(ctx, AdminRoute("/admin/blog")).Render)

	require.NoError(t, c.Auth().Logout(ctx))
	d := g.Evaluate(ctx, AdminRoute("/admin/blog"))
	assert.True(t, d.IsRedirectToLogin())

	g.Reset()
	assert.Equal(t, GuardUnchecked, g.State())
}
