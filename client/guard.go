// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/olegiv/agency-cms/internal/rbac"
)

// Admin area paths the guard redirects to.
const (
	LoginPath     = "/admin/login"
	DashboardPath = "/admin"
)

// GuardState is the state of a route guard.
type GuardState string

const (
	GuardUnchecked    GuardState = "unchecked"
	GuardChecking     GuardState = "checking"
	GuardAuthorized   GuardState = "authorized"
	GuardUnauthorized GuardState = "unauthorized"
)

// Route describes a page the guard protects.
type Route struct {
	Path string
	// RequireAuth is false for pages like the login form, which an
	// authenticated user is sent away from.
	RequireAuth bool
	// Gate is the permission the page needs; a zero gate only needs a
	// signed-in user.
	Gate rbac.Gate
}

// AdminRoute returns the route for an admin path, taking its gate from the
// admin navigation. The login page is the one admin route without auth.
func AdminRoute(path string) Route {
	if path == LoginPath {
		return Route{Path: path}
	}
	gate, _ := rbac.GateForPath(path)
	return Route{Path: path, RequireAuth: true, Gate: gate}
}

// Decision is what to do with a route: render it or go elsewhere. A
// decision with neither Render nor Redirect means the session could not be
// checked, for example while offline; Err holds the *NetworkError and the
// next evaluation checks again.
type Decision struct {
	State GuardState
	// Render is true when the page may be shown.
	Render bool
	// Redirect is the path to go to instead when Render is false.
	Redirect string
	// From is the originally requested path, for returning after login.
	From string
	// Err is the verify failure behind an unauthorized or unchecked
	// decision.
	Err error
}

// Guard gates admin routes on the auth state.
//
//	unchecked -> checking -> authorized | unauthorized
//
// A guard with a stored token verifies it once; later evaluations reuse
// the outcome until Reset. A verify that fails without reaching the server
// leaves the guard unchecked, so the next evaluation tries again.
type Guard struct {
	auth *AuthState

	checkMu sync.Mutex

	mu    sync.Mutex
	state GuardState
	err   error
}

// NewGuard creates a Guard in the unchecked state.
func NewGuard(auth *AuthState) *Guard {
	return &Guard{auth: auth, state: GuardUnchecked}
}

// State returns the current state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset returns the guard to unchecked, so the next evaluation verifies
// again.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GuardUnchecked
	g.err = nil
}

// Evaluate decides route. Denied permission redirects to the dashboard;
// a page is never rendered partially.
func (g *Guard) Evaluate(ctx context.Context, route Route) Decision {
	if !route.RequireAuth {
		if g.auth.IsAuthenticated() {
			return Decision{State: g.State(), Redirect: DashboardPath, From: route.Path}
		}
		return Decision{State: g.State(), Render: true}
	}

	state, err := g.check(ctx)
	if state == GuardUnchecked {
		return Decision{State: state, From: route.Path, Err: err}
	}
	if state != GuardAuthorized {
		return Decision{State: state, Redirect: LoginPath, From: route.Path, Err: err}
	}
	if !route.Gate.Open(g.auth.User()) {
		d := Decision{State: state, Redirect: DashboardPath, From: route.Path, Err: ErrPermissionDenied}
		if strings.TrimRight(route.Path, "/") == DashboardPath {
			// The dashboard has no gate; never bounce to itself.
			d.Redirect = LoginPath
		}
		return d
	}
	return Decision{State: state, Render: true}
}

// check runs the unchecked -> checking -> authorized | unauthorized
// transition once, falling back to unchecked when the server is
// unreachable. Checks are serialized; State stays readable while a verify
// is in flight.
func (g *Guard) check(ctx context.Context) (GuardState, error) {
	g.checkMu.Lock()
	defer g.checkMu.Unlock()

	state, err := g.current()
	switch state {
	case GuardAuthorized:
		if g.auth.IsAuthenticated() {
			return state, nil
		}
		// Logged out since the last check.
	case GuardUnauthorized:
		if !g.auth.IsAuthenticated() {
			return state, err
		}
		// Logged in since the last check.
		return g.set(GuardAuthorized, nil)
	}

	token, err := g.auth.c.tokens.Token()
	if err == nil && token == "" {
		err = ErrUnauthenticated
	}
	if err != nil {
		return g.set(GuardUnauthorized, err)
	}

	g.set(GuardChecking, nil)
	if _, err := g.auth.Verify(ctx, token); err != nil {
		if transient(err) {
			return g.set(GuardUnchecked, err)
		}
		return g.set(GuardUnauthorized, err)
	}
	return g.set(GuardAuthorized, nil)
}

func (g *Guard) current() (GuardState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.err
}

func (g *Guard) set(state GuardState, err error) (GuardState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state, g.err = state, err
	return state, err
}

// IsRedirectToLogin reports whether d sends the user to the login page
// because the session is missing or rejected.
func (d Decision) IsRedirectToLogin() bool {
	return !d.Render && d.Redirect == LoginPath && !errors.Is(d.Err, ErrPermissionDenied)
}
