// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Page is one page of a list response.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Total      int64      `json:"total"`
	Pagination Pagination `json:"pagination"`
}

// Pagination mirrors the pagination block of list responses. It is zero
// when the server sent none.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

var errUnknownShape = errors.New("unrecognized list response")

// Normalize reads a collection from any of the shapes the API has used:
// a bare array, an object holding the array under key, or a {"data": [...]}
// envelope. total comes from a "total" field when present and falls back
// to the number of items.
func Normalize[T any](raw []byte, key string) ([]T, int64, error) {
	page, err := normalizePage[T](raw, key)
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

func normalizePage[T any](raw []byte, key string) (*Page[T], error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errUnknownShape
	}

	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return &Page[T]{Items: nonNil(items), Total: int64(len(items))}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	var items []T
	found := false
	for _, k := range []string{key, "data"} {
		v, ok := obj[k]
		if k == "" || !ok || !isArray(v) {
			continue
		}
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, fmt.Errorf("decode list %q: %w", k, err)
		}
		found = true
		break
	}
	if !found {
		return nil, errUnknownShape
	}

	page := &Page[T]{Items: nonNil(items), Total: int64(len(items))}
	if v, ok := obj["total"]; ok {
		if err := json.Unmarshal(v, &page.Total); err != nil {
			return nil, fmt.Errorf("decode total: %w", err)
		}
	}
	if v, ok := obj["pagination"]; ok {
		if err := json.Unmarshal(v, &page.Pagination); err != nil {
			return nil, fmt.Errorf("decode pagination: %w", err)
		}
	}
	return page, nil
}

// unwrapData returns the value under "data" when raw is a {"data": ...}
// envelope and raw itself otherwise.
func unwrapData(raw []byte) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &env) == nil && len(env.Data) > 0 {
		return env.Data
	}
	return trimmed
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
