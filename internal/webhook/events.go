// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers signed event notifications to configured URLs.
package webhook

import (
	"time"
)

// Event types.
const (
	EventContactSubmitted = "contact.submitted"
	EventContentPublished = "content.published"
)

// Event is the JSON body posted to every target.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new webhook event.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ContactEventData describes a new contact submission.
type ContactEventData struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Company     string    `json:"company,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Country     string    `json:"country,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ContentEventData describes an item that became publicly visible.
type ContentEventData struct {
	Kind        string     `json:"kind"`
	ID          int64      `json:"id"`
	Slug        string     `json:"slug,omitempty"`
	Title       string     `json:"title,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Scheduled   bool       `json:"scheduled"`
}
