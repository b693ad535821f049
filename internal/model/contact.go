// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// Contact submission states.
const (
	ContactStatusNew      = "new"
	ContactStatusRead     = "read"
	ContactStatusReplied  = "replied"
	ContactStatusArchived = "archived"
)

// ContactStatuses lists the states an admin may move a submission to.
var ContactStatuses = []string{ContactStatusNew, ContactStatusRead, ContactStatusReplied, ContactStatusArchived}

// MaxMessageLength caps a public contact message.
const MaxMessageLength = 5000

// ContactSubmission is a message sent through the public contact form.
// Country and client fields are filled in on receipt, never by the sender.
type ContactSubmission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Budget    string    `json:"budget"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	IPAddress string    `json:"ip_address"`
	Country   string    `json:"country"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Device    string    `json:"device"`
	HandledBy *int64    `json:"handled_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields a visitor supplies.
func (c *ContactSubmission) Validate() error {
	ve := NewValidationError()
	if strings.TrimSpace(c.Name) == "" {
		ve.Add("name", "Name is required")
	}
	validateLength(ve, "name", c.Name, 100)
	if c.Email == "" {
		ve.Add("email", "Email is required")
	} else if !ValidEmail(c.Email) {
		ve.Add("email", "Email is not a valid address")
	}
	validateLength(ve, "phone", c.Phone, 50)
	validateLength(ve, "company", c.Company, 200)
	validateLength(ve, "subject", c.Subject, MaxTitleLength)
	if strings.TrimSpace(c.Message) == "" {
		ve.Add("message", "Message is required")
	}
	validateLength(ve, "message", c.Message, MaxMessageLength)
	validateLength(ve, "budget", c.Budget, 50)
	return ve.Err()
}

// IsValidContactStatus reports whether s is a known submission state.
func IsValidContactStatus(s string) bool {
	for _, known := range ContactStatuses {
		if known == s {
			return true
		}
	}
	return false
}
