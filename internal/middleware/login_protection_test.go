// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLoginProtection(t *testing.T) *LoginProtection {
	t.Helper()
	lp := NewLoginProtection(LoginProtectionConfig{
		IPRateLimit:       0.001,
		IPBurst:           2,
		MaxFailedAttempts: 3,
		LockoutDuration:   time.Minute,
		AttemptWindow:     time.Minute,
	})
	t.Cleanup(lp.Stop)
	return lp
}

func TestLoginProtection_AccountLockout(t *testing.T) {
	lp := newTestLoginProtection(t)
	email := "admin@example.com"

	if got := lp.GetRemainingAttempts(email); got != 3 {
		t.Fatalf("GetRemainingAttempts() = %d, want 3", got)
	}

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	if got := lp.GetRemainingAttempts(email); got != 1 {
		t.Errorf("GetRemainingAttempts() = %d, want 1", got)
	}

	locked, d := lp.RecordFailedAttempt(email)
	if !locked || d != time.Minute {
		t.Fatalf("RecordFailedAttempt() = (%v, %v), want (true, 1m)", locked, d)
	}
	if locked, _ := lp.IsAccountLocked(email); !locked {
		t.Error("account should be locked")
	}

	lp.RecordSuccessfulLogin(email)
	if locked, _ := lp.IsAccountLocked(email); locked {
		t.Error("account should be unlocked after success")
	}
}

func TestLoginProtection_Middleware(t *testing.T) {
	lp := newTestLoginProtection(t)
	h := lp.Middleware()(simpleOKHandler())

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		req.RemoteAddr = "192.0.2.1:5000"
		return executeRequest(h, req).Code
	}

	if post() != http.StatusOK || post() != http.StatusOK {
		t.Fatal("burst requests should pass")
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// GET requests render the form and are never limited.
	req := httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	if code := executeRequest(h, req).Code; code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", code, http.StatusOK)
	}
}

func TestLoginProtection_LockoutDoubles(t *testing.T) {
	lp := newTestLoginProtection(t)

	tests := []struct {
		previous int
		want     time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{3, 8 * time.Minute},
		{20, maxLockout},
	}
	for _, tt := range tests {
		if got := lp.lockoutFor(tt.previous); got != tt.want {
			t.Errorf("lockoutFor(%d) = %v, want %v", tt.previous, got, tt.want)
		}
	}
}

func TestLoginProtection_EmailCaseInsensitive(t *testing.T) {
	lp := newTestLoginProtection(t)

	lp.RecordFailedAttempt("Admin@Example.com")
	if got := lp.GetRemainingAttempts(" admin@example.com"); got != 2 {
		t.Errorf("GetRemainingAttempts() = %d, want 2", got)
	}
}

func TestLoginProtection_Sweep(t *testing.T) {
	lp := newTestLoginProtection(t)
	lp.RecordFailedAttempt("editor@example.com")

	lp.sweep(time.Now())
	if got := lp.GetRemainingAttempts("editor@example.com"); got != 2 {
		t.Fatalf("recent failure swept: remaining = %d", got)
	}

	lp.sweep(time.Now().Add(2 * time.Minute))
	lp.mu.Lock()
	n := len(lp.accounts)
	lp.mu.Unlock()
	if n != 0 {
		t.Errorf("accounts after sweep = %d, want 0", n)
	}
}
