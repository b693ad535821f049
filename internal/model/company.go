// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Company info value types.
const (
	ValueTypeText    = "text"
	ValueTypeJSON    = "json"
	ValueTypeHTML    = "html"
	ValueTypeNumber  = "number"
	ValueTypeBoolean = "boolean"
	ValueTypeURL     = "url"
	ValueTypeEmail   = "email"
)

// CompanyValueTypes lists every declared value type.
var CompanyValueTypes = []string{
	ValueTypeText, ValueTypeJSON, ValueTypeHTML, ValueTypeNumber,
	ValueTypeBoolean, ValueTypeURL, ValueTypeEmail,
}

var companyKeyRegex = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,99}$`)

// CompanyInfo is a key/value setting of the agency (address, phone,
// social links). Private rows are admin-only.
type CompanyInfo struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   string    `json:"value_type"`
	IsPublic    bool      `json:"is_public"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsValidCompanyKey reports whether key matches the lowercase key format.
func IsValidCompanyKey(key string) bool {
	return companyKeyRegex.MatchString(key)
}

// Validate checks the key format and that Value parses as ValueType.
func (c *CompanyInfo) Validate() error {
	ve := NewValidationError()
	if !IsValidCompanyKey(c.Key) {
		ve.Add("key", "Key must start with a letter and contain only a-z, 0-9, '_' or '.'")
	}
	validateLength(ve, "description", c.Description, MaxSummaryLength)

	switch c.ValueType {
	case ValueTypeText, ValueTypeHTML:
	case ValueTypeJSON:
		if !json.Valid([]byte(c.Value)) {
			ve.Add("value", "Value must be valid JSON")
		}
	case ValueTypeNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64); err != nil {
			ve.Add("value", "Value must be a number")
		}
	case ValueTypeBoolean:
		if _, err := strconv.ParseBool(c.Value); err != nil {
			ve.Add("value", "Value must be true or false")
		}
	case ValueTypeURL:
		validateURL(ve, "value", c.Value)
		if c.Value == "" {
			ve.Add("value", "Value is required")
		}
	case ValueTypeEmail:
		if !ValidEmail(c.Value) {
			ve.Add("value", "Value must be an email address")
		}
	default:
		ve.Add("value_type", "Value type must be one of "+strings.Join(CompanyValueTypes, ", "))
	}
	return ve.Err()
}

// TypedValue decodes Value according to ValueType for JSON responses.
// Values that fail to decode are returned as the raw string.
func (c *CompanyInfo) TypedValue() any {
	switch c.ValueType {
	case ValueTypeJSON:
		var v any
		if err := json.Unmarshal([]byte(c.Value), &v); err == nil {
			return v
		}
	case ValueTypeNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64); err == nil {
			return f
		}
	case ValueTypeBoolean:
		if b, err := strconv.ParseBool(c.Value); err == nil {
			return b
		}
	}
	return c.Value
}
