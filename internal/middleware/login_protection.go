// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/agency-cms/internal/model"
)

// maxLockout caps the exponential lockout backoff.
const maxLockout = 24 * time.Hour

// maxTrackedIPs bounds the per-IP limiter map between cleanups.
const maxTrackedIPs = 10000

// LoginProtection throttles POST /auth/login per client IP and locks an
// account after repeated failed logins. Each lockout of the same account
// doubles the previous one.
type LoginProtection struct {
	ipLimiters *limiterCache[string]

	mu       sync.RWMutex
	accounts map[string]*loginAttempt

	maxFailed int
	lockout   time.Duration
	window    time.Duration

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type loginAttempt struct {
	count       int
	firstFailed time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtectionConfig configures LoginProtection. Zero fields take the
// defaults of DefaultLoginProtectionConfig.
type LoginProtectionConfig struct {
	// IPRateLimit is login requests per second per IP.
	IPRateLimit float64
	IPBurst     int
	// MaxFailedAttempts within AttemptWindow lock the account.
	MaxFailedAttempts int
	// LockoutDuration is the first lockout; later ones double it.
	LockoutDuration time.Duration
	AttemptWindow   time.Duration
}

// DefaultLoginProtectionConfig allows one login every two seconds per IP
// with a burst of 5, and locks an account for 15 minutes after 5 failures
// within 15 minutes.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection creates a LoginProtection and starts its cleanup
// goroutine. Call Stop on shutdown.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	lp := &LoginProtection{
		ipLimiters: newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		accounts:   make(map[string]*loginAttempt),
		maxFailed:  cfg.MaxFailedAttempts,
		lockout:    cfg.LockoutDuration,
		window:     cfg.AttemptWindow,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go lp.cleanup()
	return lp
}

// accountKey folds emails so "Ada@x.io" and "ada@x.io " share one counter,
// matching the case-insensitive login lookup.
func accountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckIPRateLimit reports whether ip may make another login request.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsAccountLocked reports whether email is locked and for how much longer.
func (lp *LoginProtection) IsAccountLocked(email string) (bool, time.Duration) {
	lp.mu.RLock()
	a, ok := lp.accounts[accountKey(email)]
	lp.mu.RUnlock()
	if !ok {
		return false, 0
	}
	if now := lp.now(); now.Before(a.lockedUntil) {
		return true, a.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailedAttempt counts a failed login for email. It returns true and
// the lockout length when this failure locked the account.
func (lp *LoginProtection) RecordFailedAttempt(email string) (bool, time.Duration) {
	key := accountKey(email)
	now := lp.now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	a, ok := lp.accounts[key]
	switch {
	case !ok:
		a = &loginAttempt{}
		lp.accounts[key] = a
		fallthrough
	case now.Sub(a.firstFailed) > lp.window:
		a.count = 0
		a.firstFailed = now
	}
	a.count++
	slog.Debug("failed login recorded", "email", key, "count", a.count)

	if a.count < lp.maxFailed {
		return false, 0
	}

	d := lp.lockout << a.lockouts
	if d <= 0 || d > maxLockout {
		d = maxLockout
	}
	a.lockedUntil = now.Add(d)
	a.lockouts++
	a.count = 0

	slog.Warn("account locked after failed logins",
		"category", model.EventCategorySecurity,
		"email", key,
		"lockouts", a.lockouts,
		"duration", d.String(),
	)
	return true, d
}

// RecordSuccessfulLogin forgets the failures and lockout history of email.
func (lp *LoginProtection) RecordSuccessfulLogin(email string) {
	lp.mu.Lock()
	delete(lp.accounts, accountKey(email))
	lp.mu.Unlock()
}

// GetRemainingAttempts returns how many failures email has left before it
// is locked.
func (lp *LoginProtection) GetRemainingAttempts(email string) int {
	lp.mu.RLock()
	a, ok := lp.accounts[accountKey(email)]
	lp.mu.RUnlock()
	if !ok || lp.now().Sub(a.firstFailed) > lp.window {
		return lp.maxFailed
	}
	return max(lp.maxFailed-a.count, 0)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (lp *LoginProtection) Stop() {
	lp.stopOnce.Do(func() { close(lp.stop) })
}

func (lp *LoginProtection) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lp.cleanupStaleEntries()
		case <-lp.stop:
			return
		}
	}
}

// cleanupStaleEntries drops accounts that are neither locked nor inside an
// attempt window.
func (lp *LoginProtection) cleanupStaleEntries() {
	if lp.ipLimiters.clearIfExceeds(maxTrackedIPs) {
		slog.Info("cleared login rate limiters", "limit", maxTrackedIPs)
	}

	now := lp.now()
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for key, a := range lp.accounts {
		if now.After(a.lockedUntil) && now.Sub(a.firstFailed) > lp.window {
			delete(lp.accounts, key)
		}
	}
}

// Middleware rate limits POST requests per client IP. Other methods pass
// through. It guards login and the public contact form.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)
			if !lp.CheckIPRateLimit(ip) {
				slog.Warn("login rate limit exceeded", "category", model.EventCategorySecurity, "ip", ip, "path", r.URL.Path)
				WriteAPIError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many attempts. Please wait a moment and try again.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteLocked writes the 429 returned for a locked account.
func WriteLocked(w http.ResponseWriter, remaining time.Duration) {
	secs := max(int(remaining.Round(time.Second)/time.Second), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteAPIError(w, http.StatusTooManyRequests, CodeRateLimited,
		"Account temporarily locked after repeated failed logins", map[string]string{"retry_after": strconv.Itoa(secs)})
}
