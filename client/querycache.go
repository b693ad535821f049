// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Query cache tags, one per collection.
const (
	TagProjects = "projects"
	TagBlog     = "blog"
	TagTeam     = "team"
	TagServices = "services"
	TagContacts = "contacts"
	TagCompany  = "company"
	TagUsers    = "users"
)

// QueryOptions tune the query cache.
type QueryOptions struct {
	// StaleTime is how long a fetched value is served without refetching.
	StaleTime time.Duration
	// CacheTime is how long an unused value is kept at all.
	CacheTime time.Duration
	// Retry is how many times a failed fetch is repeated. Only network
	// failures and 5xx/408/429 responses are retried.
	Retry      int
	RetryDelay time.Duration
	// RefetchOnFocus makes Focus mark every entry stale.
	RefetchOnFocus bool
}

// DefaultQueryOptions returns a 5 minute stale window, a 10 minute cache
// window, one retry and no refetch on focus.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		StaleTime:  5 * time.Minute,
		CacheTime:  10 * time.Minute,
		Retry:      1,
		RetryDelay: 500 * time.Millisecond,
	}
}

// QueryState describes one cache entry.
type QueryState struct {
	HasData   bool
	Stale     bool
	Fetching  bool
	UpdatedAt time.Time
}

type queryEntry struct {
	tag       string
	value     any
	fetchedAt time.Time
	lastUsed  time.Time
	stale     bool
}

// QueryCache caches read results by tag and parameters. Identical
// concurrent fetches share one call. It is safe for concurrent use.
// Cached values are shared between callers and must not be modified.
type QueryCache struct {
	opts   QueryOptions
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	entries  map[string]*queryEntry
	gens     map[string]uint64
	epoch    uint64
	fetching map[string]int
	group    singleflight.Group
}

// NewQueryCache creates a QueryCache. Zero durations take the defaults; a
// negative Retry disables retries.
func NewQueryCache(opts QueryOptions, logger *slog.Logger) *QueryCache {
	def := DefaultQueryOptions()
	if opts.StaleTime == 0 {
		opts.StaleTime = def.StaleTime
	}
	if opts.CacheTime == 0 {
		opts.CacheTime = def.CacheTime
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCache{
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*queryEntry),
		gens:     make(map[string]uint64),
		fetching: make(map[string]int),
	}
}

// QueryKey is the cache key of tag and params. url.Values.Encode sorts by
// key, so equal parameter sets give equal keys.
func QueryKey(tag string, params url.Values) string {
	if len(params) == 0 {
		return tag
	}
	return tag + "?" + params.Encode()
}

// Fetch returns the fresh cached value of (tag, params) or calls fn. A
// caller that gives up through ctx does not cancel a fetch other callers
// are waiting on.
func (q *QueryCache) Fetch(ctx context.Context, tag string, params url.Values, fn func(context.Context) (any, error)) (any, error) {
	key := QueryKey(tag, params)
	now := q.now()

	q.mu.Lock()
	q.sweepLocked(now)
	if e, ok := q.entries[key]; ok {
		e.lastUsed = now
		if !e.stale && now.Sub(e.fetchedAt) < q.opts.StaleTime {
			q.mu.Unlock()
			return e.value, nil
		}
	}
	gen, epoch := q.gens[tag], q.epoch
	q.mu.Unlock()

	// A fetch started before an invalidation is never joined after it.
	flight := fmt.Sprintf("%s#%d.%d", key, epoch, gen)
	ch := q.group.DoChan(flight, func() (any, error) {
		q.setFetching(key, 1)
		defer q.setFetching(key, -1)

		v, err := q.fetchWithRetry(context.WithoutCancel(ctx), key, fn)
		if err != nil {
			return nil, err
		}
		q.store(tag, key, gen, epoch, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (q *QueryCache) fetchWithRetry(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= q.opts.Retry || !retryable(err) {
			return nil, err
		}
		q.logger.Debug("retrying query", "key", key, "attempt", attempt+1, "error", err)
		if q.opts.RetryDelay > 0 {
			t := time.NewTimer(q.opts.RetryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
}

func (q *QueryCache) store(tag, key string, gen, epoch uint64, v any) {
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()
	if epoch != q.epoch {
		return
	}
	q.entries[key] = &queryEntry{
		tag:       tag,
		value:     v,
		fetchedAt: now,
		lastUsed:  now,
		stale:     q.gens[tag] != gen,
	}
}

func (q *QueryCache) setFetching(key string, delta int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fetching[key] += delta
	if q.fetching[key] <= 0 {
		delete(q.fetching, key)
	}
}

// sweepLocked drops entries unused for CacheTime.
func (q *QueryCache) sweepLocked(now time.Time) {
	for k, e := range q.entries {
		if now.Sub(e.lastUsed) >= q.opts.CacheTime {
			delete(q.entries, k)
		}
	}
}

// Invalidate marks every entry under tag stale, so the next read of each
// refetches.
func (q *QueryCache) Invalidate(tag string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gens[tag]++
	for _, e := range q.entries {
		if e.tag == tag {
			e.stale = true
		}
	}
}

// Focus is called when the application regains focus. It marks every entry
// stale when RefetchOnFocus is set and does nothing otherwise.
func (q *QueryCache) Focus() {
	if !q.opts.RefetchOnFocus {
		return
	}
	q.mu.Lock()
	tags := make(map[string]struct{})
	for _, e := range q.entries {
		tags[e.tag] = struct{}{}
	}
	q.mu.Unlock()
	for tag := range tags {
		q.Invalidate(tag)
	}
}

// Clear drops every entry. Results of fetches still in flight are
// discarded.
func (q *QueryCache) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.epoch++
	clear(q.entries)
}

// State reports the entry of (tag, params).
func (q *QueryCache) State(tag string, params url.Values) QueryState {
	key := QueryKey(tag, params)
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()
	st := QueryState{Fetching: q.fetching[key] > 0}
	if e, ok := q.entries[key]; ok && now.Sub(e.lastUsed) < q.opts.CacheTime {
		st.HasData = true
		st.UpdatedAt = e.fetchedAt
		st.Stale = e.stale || now.Sub(e.fetchedAt) >= q.opts.StaleTime
	}
	return st
}

// Query is the typed form of QueryCache.Fetch.
func Query[T any](ctx context.Context, q *QueryCache, tag string, params url.Values, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := q.Fetch(ctx, tag, params, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: cached %T is not %T", QueryKey(tag, params), v, zero)
	}
	return t, nil
}
