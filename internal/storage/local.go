// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes blobs below a directory served at baseURL.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates root if needed.
func NewLocal(root, baseURL string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Local{root: abs, baseURL: baseURL}, nil
}

// Root returns the absolute upload directory.
func (l *Local) Root() string { return l.root }

func (l *Local) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	full, key, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	return joinURL(l.baseURL, key), nil
}

func (l *Local) DeletePrefix(_ context.Context, prefix string) error {
	full, _, err := l.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", prefix, err)
	}
	return nil
}

// resolve maps key to a path inside root.
func (l *Local) resolve(key string) (string, string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if full != l.root && !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path traversal detected: %q escapes upload dir", key)
	}
	return full, key, nil
}

var _ Blobs = (*Local)(nil)
