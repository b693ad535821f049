// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for bearer authentication,
// permission gates, rate limiting and request context handling.
package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/olegiv/agency-cms/internal/model"
)

// Error codes of the JSON error envelope.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountInactive    = "account_inactive"
	CodeTokenExpired       = "token_expired"
	CodeTokenInvalid       = "token_invalid"
	CodeUnauthorized       = "unauthorized"
	CodePermissionDenied   = "permission_denied"
	CodeNotFound           = "not_found"
	CodeBadRequest         = "bad_request"
	CodeValidation         = "validation_error"
	CodeConflict           = "conflict"
	CodeRateLimited        = "rate_limit_exceeded"
	CodeInternal           = "internal_error"
	CodeTimeout            = "timeout"
)

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message
	apiErr.Error.Details = details

	_ = json.NewEncoder(w).Encode(apiErr)
}

// ErrorStatus maps a domain error to its HTTP status, envelope code and
// client-facing message. Unknown errors map to 500 with a generic message.
func ErrorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password"
	case errors.Is(err, model.ErrAccountInactive):
		return http.StatusForbidden, CodeAccountInactive, "Account is inactive"
	case errors.Is(err, model.ErrTokenExpired):
		return http.StatusUnauthorized, CodeTokenExpired, "Token has expired"
	case errors.Is(err, model.ErrTokenInvalid):
		return http.StatusUnauthorized, CodeTokenInvalid, "Token is invalid"
	case errors.Is(err, model.ErrPermissionDenied):
		return http.StatusForbidden, CodePermissionDenied, "Permission denied"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "Not found"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, CodeConflict, "Conflicts with an existing record"
	}
	if _, ok := model.AsValidationError(err); ok {
		return http.StatusUnprocessableEntity, CodeValidation, "Validation failed"
	}
	return http.StatusInternalServerError, CodeInternal, "Internal server error"
}

// WriteError writes err using the envelope of ErrorStatus. Validation
// errors carry every offending field in details.
func WriteError(w http.ResponseWriter, err error) {
	status, code, msg := ErrorStatus(err)
	var details map[string]string
	if ve, ok := model.AsValidationError(err); ok {
		details = ve.Fields
	}
	WriteAPIError(w, status, code, msg, details)
}

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds drops every limiter once the cache holds more than maxSize.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

func (lc *limiterCache[K]) size() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.limiters)
}

// UserRateLimit limits authenticated requests per user id. Requests
// without a user in context pass through; the global limiter covers them.
func UserRateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	cache := newLimiterCache[int64](rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !cache.get(user.ID).Allow() {
				WriteAPIError(w, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded. Please slow down.", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GlobalRateLimiter limits requests per client IP.
type GlobalRateLimiter struct {
	cache   *limiterCache[string]
	maxKeys int
}

// NewGlobalRateLimiter creates a per-IP limiter allowing rps requests per
// second with the given burst.
func NewGlobalRateLimiter(rps float64, burst int) *GlobalRateLimiter {
	return &GlobalRateLimiter{
		cache:   newLimiterCache[string](rps, burst),
		maxKeys: 10000,
	}
}

// Middleware rejects requests over the limit with a JSON 429.
func (rl *GlobalRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !rl.cache.get(ip).Allow() {
				slog.Warn("rate limit exceeded", "category", model.EventCategorySecurity, "ip", ip, "path", r.URL.Path)
				WriteAPIError(w, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded. Please slow down.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Prune clears the limiter table when it grew past its bound.
func (rl *GlobalRateLimiter) Prune() {
	if rl.cache.clearIfExceeds(rl.maxKeys) {
		slog.Info("cleared rate limiters due to size")
	}
}

// ClientIP returns the request's client address without the port. When
// chi's RealIP runs first, RemoteAddr already holds the forwarded address.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
