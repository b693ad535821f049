// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testLoginProtection returns a protection with a generous IP limit and a
// controllable clock.
func testLoginProtection(t *testing.T, maxAttempts int, lockout, window time.Duration) (*LoginProtection, *time.Time) {
	t.Helper()
	lp := NewLoginProtection(LoginProtectionConfig{
		IPRateLimit:       10,
		IPBurst:           100,
		MaxFailedAttempts: maxAttempts,
		LockoutDuration:   lockout,
		AttemptWindow:     window,
	})
	t.Cleanup(lp.Stop)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lp.now = func() time.Time { return now }
	return lp, &now
}

func TestDefaultLoginProtectionConfig(t *testing.T) {
	cfg := DefaultLoginProtectionConfig()

	if cfg.IPRateLimit != 0.5 {
		t.Errorf("IPRateLimit = %v, want 0.5", cfg.IPRateLimit)
	}
	if cfg.IPBurst != 5 {
		t.Errorf("IPBurst = %d, want 5", cfg.IPBurst)
	}
	if cfg.MaxFailedAttempts != 5 {
		t.Errorf("MaxFailedAttempts = %d, want 5", cfg.MaxFailedAttempts)
	}
	if cfg.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration = %v, want 15m", cfg.LockoutDuration)
	}
}

func TestNewLoginProtectionDefaultValues(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{})
	defer lp.Stop()

	if lp.maxFailed != 5 {
		t.Errorf("maxFailed = %d, want 5 (default)", lp.maxFailed)
	}
	if lp.lockout != 15*time.Minute {
		t.Errorf("lockout = %v, want 15m (default)", lp.lockout)
	}
	if lp.window != 15*time.Minute {
		t.Errorf("window = %v, want 15m (default)", lp.window)
	}
}

func TestLoginProtectionLocksAfterMaxAttempts(t *testing.T) {
	lp, now := testLoginProtection(t, 3, time.Minute, time.Hour)
	email := "ada@example.com"

	for i := 1; i <= 2; i++ {
		if locked, _ := lp.RecordFailedAttempt(email); locked {
			t.Fatalf("attempt %d locked the account early", i)
		}
	}
	if got := lp.GetRemainingAttempts(email); got != 1 {
		t.Errorf("GetRemainingAttempts() = %d, want 1", got)
	}

	locked, d := lp.RecordFailedAttempt(email)
	if !locked || d != time.Minute {
		t.Fatalf("third attempt = (%v, %v), want (true, 1m)", locked, d)
	}
	if locked, remaining := lp.IsAccountLocked(email); !locked || remaining != time.Minute {
		t.Errorf("IsAccountLocked() = (%v, %v), want (true, 1m)", locked, remaining)
	}

	*now = now.Add(61 * time.Second)
	if locked, _ := lp.IsAccountLocked(email); locked {
		t.Error("account still locked after the lockout passed")
	}
}

func TestLoginProtectionExponentialBackoff(t *testing.T) {
	lp, now := testLoginProtection(t, 1, time.Hour, 48*time.Hour)
	email := "ada@example.com"

	want := []time.Duration{time.Hour, 2 * time.Hour, 4 * time.Hour, 8 * time.Hour, 16 * time.Hour, 24 * time.Hour, 24 * time.Hour}
	for i, w := range want {
		locked, d := lp.RecordFailedAttempt(email)
		if !locked {
			t.Fatalf("lockout %d: not locked", i+1)
		}
		if d != w {
			t.Errorf("lockout %d: duration = %v, want %v", i+1, d, w)
		}
		*now = now.Add(d + time.Second)
	}
}

func TestLoginProtectionRecordSuccessfulLogin(t *testing.T) {
	lp, _ := testLoginProtection(t, 3, time.Minute, time.Hour)
	email := "ada@example.com"

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	lp.RecordSuccessfulLogin(email)

	if got := lp.GetRemainingAttempts(email); got != 3 {
		t.Errorf("GetRemainingAttempts() after success = %d, want 3", got)
	}
}

func TestLoginProtectionFoldsEmailCase(t *testing.T) {
	lp, _ := testLoginProtection(t, 2, time.Minute, time.Hour)

	lp.RecordFailedAttempt("Ada@Example.com")
	if locked, _ := lp.RecordFailedAttempt(" ada@example.com "); !locked {
		t.Fatal("differently cased emails should share one counter")
	}
	if locked, _ := lp.IsAccountLocked("ADA@EXAMPLE.COM"); !locked {
		t.Error("lockout should apply to every casing")
	}
}

func TestLoginProtectionAttemptWindowReset(t *testing.T) {
	lp, now := testLoginProtection(t, 3, time.Minute, 10*time.Minute)
	email := "ada@example.com"

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)

	*now = now.Add(11 * time.Minute)
	if got := lp.GetRemainingAttempts(email); got != 3 {
		t.Errorf("GetRemainingAttempts() after window = %d, want 3", got)
	}
	if locked, _ := lp.RecordFailedAttempt(email); locked {
		t.Error("attempt after window reset should not lock")
	}
	if got := lp.GetRemainingAttempts(email); got != 2 {
		t.Errorf("GetRemainingAttempts() = %d, want 2", got)
	}
}

func TestLoginProtectionCleanupStaleEntries(t *testing.T) {
	lp, now := testLoginProtection(t, 3, time.Minute, 10*time.Minute)
	lp.RecordFailedAttempt("old@example.com")
	*now = now.Add(time.Hour)
	lp.RecordFailedAttempt("new@example.com")

	lp.cleanupStaleEntries()

	lp.mu.RLock()
	defer lp.mu.RUnlock()
	if _, ok := lp.accounts["old@example.com"]; ok {
		t.Error("stale entry was not removed")
	}
	if _, ok := lp.accounts["new@example.com"]; !ok {
		t.Error("recent entry was removed")
	}
}

func TestLoginProtectionMiddleware(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 2})
	defer lp.Stop()

	handler := lp.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	post := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := post("10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := post("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body APIError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != CodeRateLimited {
		t.Errorf("code = %q, want %q", body.Error.Code, CodeRateLimited)
	}

	if rec := post("10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", rec.Code)
	}

	// GET requests are not limited.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:4242"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", rec.Code)
	}
}

func TestWriteLocked(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteLocked(rec, 90*time.Second)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Retry-After = %q, want 90", got)
	}
}

func TestLoginProtectionStopIsIdempotent(t *testing.T) {
	lp := NewLoginProtection(DefaultLoginProtectionConfig())
	lp.Stop()
	lp.Stop()
}
