// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueryCache(opts QueryOptions) (*QueryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := NewQueryCache(opts, nil)
	q.now = clock.Now
	return q, clock
}

// counter returns a fetch function that counts its calls.
func counter(calls *atomic.Int64) func(context.Context) (int64, error) {
	return func(context.Context) (int64, error) {
		return calls.Add(1), nil
	}
}

func TestQueryCache_ServesFreshValues(t *testing.T) {
	q, clock := newTestQueryCache(DefaultQueryOptions())
	ctx := context.Background()
	var calls atomic.Int64

	v, err := Query(ctx, q, TagProjects, nil, counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	clock.Advance(4 * time.Minute)
	v, _ = Query(ctx, q, TagProjects, nil, counter(&calls))
	assert.Equal(t, int64(1), v, "within the stale window")

	clock.Advance(2 * time.Minute)
	assert.True(t, q.State(TagProjects, nil).Stale)
	v, _ = Query(ctx, q, TagProjects, nil, counter(&calls))
	assert.Equal(t, int64(2), v, "refetched after the stale window")
}

func TestQueryCache_CacheTimeEvicts(t *testing.T) {
	q, clock := newTestQueryCache(DefaultQueryOptions())
	var calls atomic.Int64

	_, err := Query(context.Background(), q, TagBlog, nil, counter(&calls))
	require.NoError(t, err)
	assert.True(t, q.State(TagBlog, nil).HasData)

	clock.Advance(10 * time.Minute)
	assert.False(t, q.State(TagBlog, nil).HasData)
}

func TestQueryCache_InvalidateTag(t *testing.T) {
	q, _ := newTestQueryCache(DefaultQueryOptions())
	ctx := context.Background()
	var projects, blog atomic.Int64
	page1 := url.Values{"page": {"1"}}
	page2 := url.Values{"page": {"2"}}

	_, _ = Query(ctx, q, TagProjects, page1, counter(&projects))
	_, _ = Query(ctx, q, TagProjects, page2, counter(&projects))
	_, _ = Query(ctx, q, TagBlog, page1, counter(&blog))
	require.Equal(t, int64(2), projects.Load(), "distinct params are distinct entries")

	q.Invalidate(TagProjects)
	assert.True(t, q.State(TagProjects, page1).Stale)
	assert.True(t, q.State(TagProjects, page2).Stale)
	assert.False(t, q.State(TagBlog, page1).Stale)

	_, _ = Query(ctx, q, TagProjects, page1, counter(&projects))
	_, _ = Query(ctx, q, TagProjects, page2, counter(&projects))
	_, _ = Query(ctx, q, TagBlog, page1, counter(&blog))
	assert.Equal(t, int64(4), projects.Load())
	assert.Equal(t, int64(1), blog.Load())
}

func TestQueryKey_ParamOrder(t *testing.T) {
	a := url.Values{}
	a.Set("status", "published")
	a.Set("page", "2")
	b := url.Values{}
	b.Set("page", "2")
	b.Set("status", "published")
	assert.Equal(t, QueryKey(TagBlog, a), QueryKey(TagBlog, b))
	assert.Equal(t, TagBlog, QueryKey(TagBlog, nil))
}

func TestQueryCache_DeduplicatesInFlight(t *testing.T) {
	q, _ := newTestQueryCache(DefaultQueryOptions())
	var calls atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	fetch := func(context.Context) (int64, error) {
		once.Do(func() { close(started) })
		<-release
		return calls.Add(1), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int64, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = Query(context.Background(), q, TagTeam, nil, fetch)
		}()
	}

	<-started
	assert.True(t, q.State(TagTeam, nil).Fetching)
	// Give the other callers time to join the flight.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, int64(1), r)
	}
	assert.False(t, q.State(TagTeam, nil).Fetching)
}

func TestQueryCache_InvalidateDuringFetch(t *testing.T) {
	q, _ := newTestQueryCache(DefaultQueryOptions())
	var calls atomic.Int64

	_, err := Query(context.Background(), q, TagServices, nil, func(context.Context) (int64, error) {
		q.Invalidate(TagServices)
		return calls.Add(1), nil
	})
	require.NoError(t, err)
	assert.True(t, q.State(TagServices, nil).Stale, "result fetched before invalidation is stale")

	v, _ := Query(context.Background(), q, TagServices, nil, counter(&calls))
	assert.Equal(t, int64(2), v)
}

func TestQueryCache_Retry(t *testing.T) {
	netErr := &NetworkError{Method: http.MethodGet, URL: "http://x", Err: errors.New("connection reset")}

	tests := []struct {
		name      string
		retry     int
		failures  int
		err       error
		wantCalls int64
		wantErr   bool
	}{
		{"recovers on retry", 1, 1, netErr, 2, false},
		{"single retry only", 1, 5, netErr, 2, true},
		{"retries disabled", -1, 1, netErr, 1, true},
		{"server error retried", 1, 1, &APIError{Status: http.StatusInternalServerError}, 2, false},
		{"not found is final", 1, 1, &APIError{Status: http.StatusNotFound, Code: codeNotFound}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultQueryOptions()
			opts.Retry = tt.retry
			opts.RetryDelay = time.Millisecond
			q, _ := newTestQueryCache(opts)

			var calls atomic.Int64
			_, err := Query(context.Background(), q, TagBlog, nil, func(context.Context) (string, error) {
				if calls.Add(1) <= int64(tt.failures) {
					return "", tt.err
				}
				return "ok", nil
			})
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, !tt.wantErr, q.State(TagBlog, nil).HasData, "failures are not cached")
		})
	}
}

func TestQueryCache_CallerCancel(t *testing.T) {
	q, _ := newTestQueryCache(DefaultQueryOptions())
	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Query(ctx, q, TagCompany, nil, func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
		done <- err
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	// The shared fetch still completes and fills the cache.
	assert.Eventually(t, func() bool { return q.State(TagCompany, nil).HasData }, time.Second, 5*time.Millisecond)
}

func TestQueryCache_FocusAndClear(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64

	q, _ := newTestQueryCache(DefaultQueryOptions())
	_, _ = Query(ctx, q, TagBlog, nil, counter(&calls))
	q.Focus()
	assert.False(t, q.State(TagBlog, nil).Stale, "refetch on focus is off by default")

	opts := DefaultQueryOptions()
	opts.RefetchOnFocus = true
	q, _ = newTestQueryCache(opts)
	_, _ = Query(ctx, q, TagBlog, nil, counter(&calls))
	q.Focus()
	assert.True(t, q.State(TagBlog, nil).Stale)

	q.Clear()
	assert.False(t, q.State(TagBlog, nil).HasData)
}

func TestQuery_TypeMismatch(t *testing.T) {
	q, _ := newTestQueryCache(DefaultQueryOptions())
	ctx := context.Background()

	_, err := Query(ctx, q, TagBlog, nil, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	_, err = Query(ctx, q, TagBlog, nil, func(context.Context) (string, error) { return "x", nil })
	assert.Error(t, err)
}
