// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"net/url"
)

// Tags used by the content API. One per content type plus company info.
const (
	TagProjects = "projects"
	TagBlog     = "blog"
	TagTeam     = "team"
	TagServices = "services"
	TagCompany  = "company"
)

// Tagged namespaces keys by tag and a per-tag generation counter.
// Invalidate bumps the generation so every older key becomes unreachable
// and ages out through its TTL; nothing is scanned or deleted.
type Tagged struct {
	cache Cache
}

// NewTagged wraps cache.
func NewTagged(cache Cache) *Tagged {
	return &Tagged{cache: cache}
}

// Backend returns the underlying cache.
func (t *Tagged) Backend() Cache { return t.cache }

func genKey(tag string) string { return "gen:" + tag }

func (t *Tagged) generation(ctx context.Context, tag string) string {
	data, err := t.cache.Get(ctx, genKey(tag))
	if err != nil {
		return "0"
	}
	return string(data)
}

// Key returns the current key for tag and params. Params are encoded in
// sorted order so equal parameter sets share a key.
func (t *Tagged) Key(ctx context.Context, tag string, params url.Values) string {
	return tag + ":" + t.generation(ctx, tag) + ":" + params.Encode()
}

// Invalidate makes every key previously returned for tag stale.
func (t *Tagged) Invalidate(ctx context.Context, tag string) error {
	_, err := t.cache.Incr(ctx, genKey(tag))
	return err
}
