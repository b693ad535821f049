// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package importer

import (
	"database/sql"
	"time"
)

// Legacy values of the published column.
const (
	publishedYes    = "yes"
	publishedNo     = "no"
	publishedQueued = "que"
)

// LegacyPost is a blog post row of the legacy site.
type LegacyPost struct {
	ID          int64
	Title       string
	Slug        string // empty on old schemas
	Body        string // HTML
	Timestamp   time.Time
	Author      string
	Published   string // "yes", "no" or "que"
	Tags        string // JSON array, or comma separated on old rows
	Thumbnail   sql.NullString
	Description sql.NullString
}
