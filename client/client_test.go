// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/handler/api"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/testutil"
)

const testPassword = "correct-horse-battery"

// apiServer is the real API mounted under /api over a migrated database.
// requests counts every request the server received.
type apiServer struct {
	*httptest.Server
	db       *sql.DB
	requests atomic.Int64
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{})
	t.Cleanup(func() { _ = mem.Close() })

	h := api.NewHandler(api.Deps{
		DB:     db,
		Auth:   testutil.AuthService(db),
		Cache:  cache.NewTagged(mem),
		Logger: testutil.DiscardLogger(),
	})
	s := &apiServer{db: db}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.requests.Add(1)
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api", h.Routes)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) createUser(t *testing.T, email, role string) *model.User {
	t.Helper()
	return testutil.CreateUser(t, s.db, email, testPassword, role)
}

// newTestClient returns a client for s with retries delayed by 1ms.
func newTestClient(t *testing.T, s *apiServer, opts ...Option) *Client {
	t.Helper()
	qo := DefaultQueryOptions()
	qo.RetryDelay = time.Millisecond
	base := []Option{WithQueryOptions(qo), WithLogger(testutil.DiscardLogger())}
	c, err := New(s.URL+"/api/", append(base, opts...)...)
	require.NoError(t, err)
	return c
}

// loggedIn returns a client signed in as a fresh user of role.
func loggedIn(t *testing.T, s *apiServer, email, role string) *Client {
	t.Helper()
	s.createUser(t, email, role)
	c := newTestClient(t, s)
	_, err := c.Auth().Login(context.Background(), email, testPassword)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com/api", "://bad"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("AGENCY_API_URL", "https://agency.example.com/api")
	t.Setenv("AGENCY_API_TIMEOUT", "3s")
	t.Setenv("AGENCY_TOKEN_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://agency.example.com/api", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)

	c, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://agency.example.com/api/projects?page=2", c.endpoint("/projects", ListParams{Page: 2}.Values()))
}

func TestHealth(t *testing.T) {
	s := newAPIServer(t)
	h, err := newTestClient(t, s).Health(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, h.Status)
}

func TestResource_CreateInvalidatesList(t *testing.T) {
	s := newAPIServer(t)
	c := loggedIn(t, s, "ed@example.com", rbac.RoleEditor)
	ctx := context.Background()
	projects := c.Projects()

	page, err := projects.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	before := s.requests.Load()
	_, err = projects.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, before, s.requests.Load(), "second read is served from cache")

	created, err := projects.Create(ctx, &Project{Title: "Rebrand", Summary: "New identity", Status: model.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, "rebrand", created.Slug)

	page, err = projects.List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "list was refetched after create")
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Pagination.Page)

	got, err := projects.Get(ctx, "rebrand")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	edit := *got
	edit.Summary = "Updated"
	updated, err := projects.Update(ctx, "rebrand", &edit)
	require.NoError(t, err)
	assert.Equal(t, "Updated", updated.Summary)

	again, err := projects.Get(ctx, "rebrand")
	require.NoError(t, err)
	assert.Equal(t, "Updated", again.Summary, "get was refetched after update")
}

func TestResource_PerParamKeys(t *testing.T) {
	s := newAPIServer(t)
	c := loggedIn(t, s, "admin@example.com", rbac.RoleAdmin)
	ctx := context.Background()

	for _, title := range []string{"One", "Two", "Three"} {
		_, err := c.Team().Create(ctx, &TeamMember{Name: title, Position: "Designer", Status: model.TeamStatusActive})
		require.NoError(t, err)
	}

	first, err := c.Team().List(ctx, ListParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	second, err := c.Team().List(ctx, ListParams{Page: 2, Limit: 2})
	require.NoError(t, err)

	assert.Len(t, first.Items, 2)
	assert.Len(t, second.Items, 1)
	assert.True(t, first.Pagination.HasNext)
	assert.True(t, c.Queries().State(TagTeam, ListParams{Page: 1, Limit: 2}.Values()).HasData)
	assert.True(t, c.Queries().State(TagTeam, ListParams{Page: 2, Limit: 2}.Values()).HasData)
}

func TestResource_Errors(t *testing.T) {
	s := newAPIServer(t)
	ctx := context.Background()
	anon := newTestClient(t, s)

	_, err := anon.Blog().Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = anon.Blog().Create(ctx, &BlogPost{Title: "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = anon.Projects().List(ctx, ListParams{Status: model.StatusDraft})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	viewer := loggedIn(t, s, "view@example.com", rbac.RoleViewer)
	_, err = viewer.Services().Create(ctx, &Service{Title: "Design"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	editor := loggedIn(t, s, "ed@example.com", rbac.RoleEditor)
	_, err = editor.Blog().Create(ctx, &BlogPost{})
	require.ErrorIs(t, err, ErrValidation)
	fields, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "body")
}

func TestResource_PublicListIsPublishedOnly(t *testing.T) {
	s := newAPIServer(t)
	ctx := context.Background()
	admin := loggedIn(t, s, "admin@example.com", rbac.RoleAdmin)

	_, err := admin.Blog().Create(ctx, &BlogPost{Title: "Live", Body: "x", Status: model.StatusPublished})
	require.NoError(t, err)
	_, err = admin.Blog().Create(ctx, &BlogPost{Title: "Hidden", Body: "x", Status: model.StatusDraft})
	require.NoError(t, err)

	page, err := newTestClient(t, s).Blog().List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Live", page.Items[0].Title)

	all, err := admin.Blog().List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
}

func TestContacts(t *testing.T) {
	s := newAPIServer(t)
	ctx := context.Background()

	res, err := newTestClient(t, s).Contacts().Submit(ctx, ContactInput{
		Name: "Ada", Email: "ada@example.com", Message: "We need a website",
	})
	require.NoError(t, err)
	assert.NotZero(t, res.ID)

	ed := loggedIn(t, s, "ed@example.com", rbac.RoleEditor)
	page, err := ed.Contacts().List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	status := model.ContactStatusRead
	triaged, err := ed.Contacts().Triage(ctx, res.ID, TriageInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, model.ContactStatusRead, triaged.Status)

	got, err := ed.Contacts().Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContactStatusRead, got.Status)

	assert.ErrorIs(t, ed.Contacts().Delete(ctx, res.ID), ErrPermissionDenied)
}

func TestCompanyInfo_PrivateKeysHidden(t *testing.T) {
	s := newAPIServer(t)
	ctx := context.Background()
	admin := loggedIn(t, s, "admin@example.com", rbac.RoleAdmin)

	_, err := admin.CompanyInfo().Put(ctx, CompanyInfo{Key: "company.name", Value: "Acme", IsPublic: true})
	require.NoError(t, err)
	_, err = admin.CompanyInfo().Put(ctx, CompanyInfo{Key: "billing.iban", Value: "DE00", IsPublic: false})
	require.NoError(t, err)

	all, err := admin.CompanyInfo().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	anon := newTestClient(t, s)
	public, err := anon.CompanyInfo().List(ctx)
	require.NoError(t, err)
	for _, row := range public {
		assert.NotEqual(t, "billing.iban", row.Key)
	}
	_, err = anon.CompanyInfo().Get(ctx, "billing.iban")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, admin.CompanyInfo().Delete(ctx, "billing.iban"))
	all, err = admin.CompanyInfo().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	qo := DefaultQueryOptions()
	qo.RetryDelay = time.Millisecond
	c, err := New(url+"/api", WithQueryOptions(qo))
	require.NoError(t, err)

	_, err = c.Projects().List(context.Background(), ListParams{})
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.Equal(t, http.MethodGet, netErr.Method)
}

func TestDecodeAPIError(t *testing.T) {
	e := decodeAPIError(http.StatusUnauthorized, []byte(`{"error":{"code":"token_expired","message":"Token has expired"}}`))
	assert.ErrorIs(t, e, ErrTokenExpired)
	assert.True(t, e.IsAuthFailure())
	assert.Contains(t, e.Error(), "token_expired")

	e = decodeAPIError(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	assert.Equal(t, http.StatusBadGateway, e.Status)
	assert.True(t, retryable(e))

	assert.False(t, retryable(&APIError{Status: http.StatusNotFound}))
	assert.True(t, retryable(&APIError{Status: http.StatusTooManyRequests}))
	assert.False(t, retryable(&NetworkError{Err: context.Canceled}))
}
