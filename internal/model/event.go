// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth     = "auth"
	EventCategoryUser     = "user"
	EventCategoryContent  = "content"
	EventCategoryContact  = "contact"
	EventCategoryCompany  = "company"
	EventCategoryMedia    = "media"
	EventCategorySecurity = "security"
	EventCategorySystem   = "system"
	EventCategoryCache    = "cache"
)

// Event is an audit log entry.
type Event struct {
	ID         int64     `json:"id"`
	Level      string    `json:"level"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	UserID     *int64    `json:"user_id,omitempty"`
	Metadata   string    `json:"metadata"` // JSON object
	IPAddress  string    `json:"ip_address,omitempty"`
	RequestURL string    `json:"request_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
