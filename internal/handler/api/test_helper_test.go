// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/testutil"
)

const testPassword = "correct-horse-battery"

// testEnv is a handler mounted on a router over a migrated database.
type testEnv struct {
	db     *sql.DB
	h      *Handler
	router chi.Router
	tagged *cache.Tagged
}

// testSetup creates a test database, an API handler with a memory cache
// and login protection, and the router serving it. opts adjust the
// dependencies before the handler is built.
func testSetup(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{})
	t.Cleanup(func() { _ = mem.Close() })
	tagged := cache.NewTagged(mem)

	guard := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit:       1000,
		IPBurst:           1000,
		MaxFailedAttempts: 5,
	})
	t.Cleanup(guard.Stop)

	d := Deps{
		DB:         db,
		Auth:       testutil.AuthService(db),
		LoginGuard: guard,
		Cache:      tagged,
		Logger:     testutil.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	h := NewHandler(d)
	r := chi.NewRouter()
	h.Routes(r)
	return &testEnv{db: db, h: h, router: r, tagged: tagged}
}

// createUser stores an active user of role with testPassword.
func (e *testEnv) createUser(t *testing.T, email, role string) *model.User {
	t.Helper()
	return testutil.CreateUser(t, e.db, email, testPassword, role)
}

// token logs in as email and returns the bearer token.
func (e *testEnv) token(t *testing.T, email string) string {
	t.Helper()
	res, err := e.h.Auth.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res.Token
}

// userToken creates a user of role and returns its token.
func (e *testEnv) userToken(t *testing.T, email, role string) (*model.User, string) {
	t.Helper()
	u := e.createUser(t, email, role)
	return u, e.token(t, email)
}

// do serves a request through the router. body may be nil; a non-empty
// token is sent as a bearer credential.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// requestWithURLParams adds chi URL parameters to a request.
func requestWithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// newJSONRequest creates an HTTP request with JSON body and optional URL params.
func newJSONRequest(t *testing.T, method, path string, body string, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if len(params) > 0 {
		req = requestWithURLParams(req, params)
	}
	return req
}

// executeHandler executes a handler and returns the response recorder.
func executeHandler(t *testing.T, handler func(http.ResponseWriter, *http.Request), req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// dataResponse is a generic wrapper for API responses with a "data" field.
type dataResponse[T any] struct {
	Data T `json:"data"`
}

// unmarshalData unmarshals a JSON response body into the specified type.
func unmarshalData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp dataResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body %s)", err, w.Body.String())
	}
	return resp.Data
}

// unmarshalList unmarshals a paginated list response.
func unmarshalList[T any](t *testing.T, w *httptest.ResponseRecorder) ListResponse[T] {
	t.Helper()
	var resp ListResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body %s)", err, w.Body.String())
	}
	return resp
}

// unmarshalError decodes the error envelope.
func unmarshalError(t *testing.T, w *httptest.ResponseRecorder) middleware.APIError {
	t.Helper()
	var resp middleware.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error: %v (body %s)", err, w.Body.String())
	}
	return resp
}
