// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain types shared by the store, the services
// and the HTTP handlers: admin users, content items, contact submissions,
// company info rows, media and audit events.
package model

import (
	"net/mail"
	"strings"
	"time"

	"github.com/olegiv/agency-cms/internal/rbac"
)

// MinPasswordLength is the shortest password accepted on create or change.
const MinPasswordLength = 8

// User is an admin panel account. Users are deactivated, never deleted, so
// authored content keeps its audit trail.
type User struct {
	ID           int64            `json:"id"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"` // Never expose in JSON
	FirstName    string           `json:"first_name"`
	LastName     string           `json:"last_name"`
	Role         string           `json:"role"`
	Permissions  rbac.Permissions `json:"permissions"`
	IsActive     bool             `json:"is_active"`
	LastLoginAt  *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// GetRole implements rbac.Subject.
func (u *User) GetRole() string {
	if u == nil {
		return ""
	}
	return u.Role
}

// GetPermissions implements rbac.Subject.
func (u *User) GetPermissions() rbac.Permissions {
	if u == nil {
		return nil
	}
	return u.Permissions
}

// Can reports whether u may perform action on resource.
func (u *User) Can(resource rbac.Resource, action rbac.Action) bool {
	if u == nil {
		return false
	}
	return rbac.HasPermission(u, resource, action)
}

// IsSuperAdmin returns true for the bypass role.
func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == rbac.RoleSuperAdmin
}

// FullName joins first and last name, falling back to the email.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// NormalizeEmail lowercases and trims an email for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether s parses as a bare address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Validate checks the editable user fields. Password rules are checked by
// the auth service.
func (u *User) Validate() error {
	ve := NewValidationError()
	if u.Email == "" {
		ve.Add("email", "Email is required")
	} else if !ValidEmail(u.Email) {
		ve.Add("email", "Email is not a valid address")
	}
	if strings.TrimSpace(u.FirstName) == "" {
		ve.Add("first_name", "First name is required")
	}
	if len(u.FirstName) > 100 {
		ve.Add("first_name", "First name must be at most 100 characters")
	}
	if len(u.LastName) > 100 {
		ve.Add("last_name", "Last name must be at most 100 characters")
	}
	if !rbac.IsValidRole(u.Role) {
		ve.Add("role", "Role must be one of "+strings.Join(rbac.Roles(), ", "))
	}
	if err := u.Permissions.Validate(); err != nil {
		ve.Add("permissions", err.Error())
	}
	return ve.Err()
}
