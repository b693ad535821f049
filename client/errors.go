// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/olegiv/agency-cms/internal/model"
)

// Errors returned by the client. API failures match them with errors.Is.
var (
	ErrInvalidCredentials = model.ErrInvalidCredentials
	ErrAccountInactive    = model.ErrAccountInactive
	ErrTokenExpired       = model.ErrTokenExpired
	ErrTokenInvalid       = model.ErrTokenInvalid
	ErrPermissionDenied   = model.ErrPermissionDenied
	ErrNotFound           = model.ErrNotFound
	ErrConflict           = model.ErrConflict

	// ErrValidation matches any 422 response; use AsValidation for the fields.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated is returned when a call needs a token and none is stored.
	ErrUnauthenticated = errors.New("not authenticated")
	ErrRateLimited     = errors.New("rate limited")
)

// Error codes of the API error envelope.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeAccountInactive    = "account_inactive"
	codeTokenExpired       = "token_expired"
	codeTokenInvalid       = "token_invalid"
	codeUnauthorized       = "unauthorized"
	codePermissionDenied   = "permission_denied"
	codeNotFound           = "not_found"
	codeValidation         = "validation_error"
	codeConflict           = "conflict"
	codeRateLimited        = "rate_limit_exceeded"
)

// APIError is a non-2xx response decoded from the error envelope
// {"error":{"code","message","details"}}.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is maps envelope codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Code == codeInvalidCredentials
	case ErrAccountInactive:
		return e.Code == codeAccountInactive
	case ErrTokenExpired:
		return e.Code == codeTokenExpired
	case ErrTokenInvalid:
		return e.Code == codeTokenInvalid
	case ErrUnauthenticated:
		return e.Code == codeUnauthorized
	case ErrPermissionDenied:
		return e.Code == codePermissionDenied || (e.Code == "" && e.Status == http.StatusForbidden)
	case ErrNotFound:
		return e.Code == codeNotFound || (e.Code == "" && e.Status == http.StatusNotFound)
	case ErrConflict:
		return e.Code == codeConflict
	case ErrValidation:
		return e.Code == codeValidation || e.Status == http.StatusUnprocessableEntity
	case ErrRateLimited:
		return e.Code == codeRateLimited || e.Status == http.StatusTooManyRequests
	}
	return false
}

// IsAuthFailure reports whether the server rejected the credential itself.
func (e *APIError) IsAuthFailure() bool {
	return e.Status == http.StatusUnauthorized
}

// AsValidation returns the per-field messages of a validation failure.
func AsValidation(err error) (map[string]string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && errors.Is(apiErr, ErrValidation) {
		return apiErr.Details, true
	}
	return nil, false
}

// NetworkError is a request that never produced an HTTP response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// retryable reports whether a failed fetch may be tried again. Client
// errors other than 408 and 429 are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusRequestTimeout || apiErr.Status == http.StatusTooManyRequests
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// transient reports whether err says nothing about the token itself: the
// server was unreachable or the caller gave up.
func transient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
