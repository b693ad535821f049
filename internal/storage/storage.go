// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage persists media blobs on local disk or in an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Blobs stores media objects under slash-separated keys such as
// "originals/<uuid>/hero.jpg".
type Blobs interface {
	// Put writes data and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// cleanKey rejects keys that are absolute or escape the root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
