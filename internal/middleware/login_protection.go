// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/olegiv/ocms-redirects/internal/util"
)

const (
	// maxLockout caps the doubling lockout duration.
	maxLockout = 24 * time.Hour
	// maxTrackedIPs bounds the per-IP limiter map between sweeps.
	maxTrackedIPs = 10000
	sweepInterval = 10 * time.Minute
)

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is login POSTs per second per client IP.
	IPRateLimit float64
	IPBurst     int
	// MaxFailedAttempts within AttemptWindow lock the account.
	MaxFailedAttempts int
	// LockoutDuration is the first lockout; each further lockout doubles it.
	LockoutDuration time.Duration
	AttemptWindow   time.Duration
}

// DefaultLoginProtectionConfig allows a burst of 5 login POSTs per IP, then
// one every 2 seconds, and locks an account for 15 minutes after 5 failures.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

func (c *LoginProtectionConfig) applyDefaults() {
	def := DefaultLoginProtectionConfig()
	if c.IPRateLimit <= 0 {
		c.IPRateLimit = def.IPRateLimit
	}
	if c.IPBurst <= 0 {
		c.IPBurst = def.IPBurst
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = def.LockoutDuration
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = def.AttemptWindow
	}
}

// accountState is the failure history of one admin account.
type accountState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

func (s *accountState) windowExpired(now time.Time, window time.Duration) bool {
	return now.Sub(s.windowStart) > window
}

// LoginProtection throttles login POSTs per client IP and locks admin
// accounts after repeated failed passwords.
type LoginProtection struct {
	cfg      LoginProtectionConfig
	limiters *limiterCache[string]

	mu       sync.Mutex
	accounts map[string]*accountState

	stop chan struct{}
	once sync.Once
}

// NewLoginProtection creates a LoginProtection and starts its sweeper. Call
// Stop when done.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	cfg.applyDefaults()
	lp := &LoginProtection{
		cfg:      cfg,
		limiters: newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		accounts: make(map[string]*accountState),
		stop:     make(chan struct{}),
	}
	go lp.sweepLoop()
	return lp
}

func accountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lockoutFor returns the lockout after the given number of earlier lockouts.
func (lp *LoginProtection) lockoutFor(previous int) time.Duration {
	d := lp.cfg.LockoutDuration
	for range previous {
		d *= 2
		if d >= maxLockout {
			return maxLockout
		}
	}
	return d
}

// CheckIPRateLimit reports whether a login POST from ip may proceed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.limiters.get(ip).Allow()
}

// IsAccountLocked reports whether email is locked and for how much longer.
func (lp *LoginProtection) IsAccountLocked(email string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	state, ok := lp.accounts[accountKey(email)]
	if !ok {
		return false, 0
	}
	if remaining := time.Until(state.lockedUntil); remaining > 0 {
		return true, remaining
	}
	return false, 0
}

// RecordFailedAttempt counts a failed password for email. When the failure
// locks the account it returns true and the lockout duration.
func (lp *LoginProtection) RecordFailedAttempt(email string) (bool, time.Duration) {
	key := accountKey(email)
	now := time.Now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	state, ok := lp.accounts[key]
	if !ok {
		state = &accountState{windowStart: now}
		lp.accounts[key] = state
	} else if state.windowExpired(now, lp.cfg.AttemptWindow) {
		state.failures = 0
		state.windowStart = now
	}

	state.failures++
	if state.failures < lp.cfg.MaxFailedAttempts {
		slog.Debug("failed login recorded", "email", key, "failures", state.failures)
		return false, 0
	}

	lockout := lp.lockoutFor(state.lockouts)
	state.lockedUntil = now.Add(lockout)
	state.lockouts++
	state.failures = 0

	slog.Warn("admin account locked after failed logins",
		"email", key,
		"lockouts", state.lockouts,
		"duration", lockout,
	)
	return true, lockout
}

// RecordSuccessfulLogin forgets the failure history of email.
func (lp *LoginProtection) RecordSuccessfulLogin(email string) {
	lp.mu.Lock()
	delete(lp.accounts, accountKey(email))
	lp.mu.Unlock()
}

// GetRemainingAttempts returns how many failures email has left before it
// is locked.
func (lp *LoginProtection) GetRemainingAttempts(email string) int {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	state, ok := lp.accounts[accountKey(email)]
	if !ok || state.windowExpired(time.Now(), lp.cfg.AttemptWindow) {
		return lp.cfg.MaxFailedAttempts
	}
	return max(lp.cfg.MaxFailedAttempts-state.failures, 0)
}

// Stop ends the background sweeper.
func (lp *LoginProtection) Stop() {
	lp.once.Do(func() { close(lp.stop) })
}

func (lp *LoginProtection) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lp.sweep(time.Now())
		case <-lp.stop:
			return
		}
	}
}

// sweep drops unlocked accounts whose attempt window has passed.
func (lp *LoginProtection) sweep(now time.Time) {
	if lp.limiters.clearIfExceeds(maxTrackedIPs) {
		slog.Info("cleared login rate limiters", "limit", maxTrackedIPs)
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()
	for key, state := range lp.accounts {
		if now.After(state.lockedUntil) && state.windowExpired(now, lp.cfg.AttemptWindow) {
			delete(lp.accounts, key)
		}
	}
}

// Middleware rate limits login POSTs per client IP. GET requests pass.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				if ip := util.ClientIP(r); !lp.CheckIPRateLimit(ip) {
					slog.Warn("login rate limit exceeded", "ip", ip)
					http.Error(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
