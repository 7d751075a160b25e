// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTML admin, public page and health handlers.
package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/ocms-redirects/internal/auth"
	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/render"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// AuthHandler handles authentication routes.
type AuthHandler struct {
	queries         *store.Queries
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	eventService    *service.EventService
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil.
func NewAuthHandler(db *sql.DB, renderer *render.Renderer, sm *scs.SessionManager, events *service.EventService, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		queries:         store.New(db),
		renderer:        renderer,
		sessionManager:  sm,
		eventService:    events,
		loginProtection: lp,
	}
}

func (h *AuthHandler) loginURL() string {
	return h.renderer.AdminPrefix() + RouteLogin
}

func (h *AuthHandler) homeURL() string {
	return h.renderer.AdminPrefix() + RouteRedirects
}

// LoginForm renders the login page. Logged-in users go straight to the
// redirects list.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if userID := h.sessionManager.GetInt64(r.Context(), middleware.SessionKeyUserID); userID > 0 {
		if _, err := h.queries.GetUserByID(r.Context(), userID); err == nil {
			http.Redirect(w, r, h.homeURL(), http.StatusSeeOther)
			return
		}
	}

	renderOrError(w, r, h.renderer, http.StatusOK, templateLogin, render.TemplateData{
		Title: "Sign in",
	})
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, h.loginURL()) {
		return
	}

	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")
	if email == "" || password == "" {
		flashError(w, r, h.renderer, h.loginURL(), "Email and password are required")
		return
	}

	r = r.WithContext(service.WithActor(r.Context(), service.Actor{IP: util.ClientIP(r)}))
	ctx := r.Context()
	client := util.ParseUserAgent(r.UserAgent())
	meta := map[string]any{"email": email, "browser": client.Browser, "os": client.OS}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(email); locked {
			h.logAuth(r, model.EventLevelWarning, "Login attempt on locked account", meta)
			flashError(w, r, h.renderer, h.loginURL(), "Account locked. Try again in "+formatDuration(remaining)+".")
			return
		}
	}

	user, err := h.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("login attempt for non-existent user", "email", email)
			h.logAuth(r, model.EventLevelWarning, "Login failed: user not found", meta)
		} else {
			slog.Error("database error during login", "error", err)
		}
		// Failed attempts count for unknown users too, so accounts cannot be enumerated.
		h.failedAttempt(w, r, email, meta)
		return
	}

	valid, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		slog.Error("password check error", "error", err)
		flashError(w, r, h.renderer, h.loginURL(), "Invalid email or password")
		return
	}
	if !valid {
		h.logAuth(r, model.EventLevelWarning, "Login failed: invalid password", meta)
		h.failedAttempt(w, r, email, meta)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(email)
	}

	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(password); err == nil {
			if err := h.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
				PasswordHash: newHash,
				UpdatedAt:    time.Now().UTC(),
				ID:           user.ID,
			}); err != nil {
				slog.Error("failed to re-hash password", "error", err, "user_id", user.ID)
			}
		}
	}

	if err := h.queries.UpdateUserLastLogin(ctx, store.UpdateUserLastLoginParams{
		LastLoginAt: util.NullTimeFrom(time.Now().UTC()),
		ID:          user.ID,
	}); err != nil {
		slog.Error("failed to update last login time", "error", err, "user_id", user.ID)
	}

	// Regenerate session ID to prevent session fixation
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "session renewal error", "error", err)
		return
	}
	h.sessionManager.Put(r.Context(), middleware.SessionKeyUserID, user.ID)

	slog.Info("user logged in", "user_id", user.ID, "email", user.Email)
	r = r.WithContext(service.WithActor(ctx, service.Actor{UserID: user.ID, Email: user.Email, IP: util.ClientIP(r)}))
	h.logAuth(r, model.EventLevelInfo, "User logged in", meta)

	name := user.Name
	if name == "" {
		name = user.Email
	}
	flashSuccess(w, r, h.renderer, h.homeURL(), "Welcome back, "+name+"!")
}

// failedAttempt records a failed login and redirects back to the login form
// with a message matching the lockout state.
func (h *AuthHandler) failedAttempt(w http.ResponseWriter, r *http.Request, email string, meta map[string]any) {
	if h.loginProtection != nil {
		if locked, lockDuration := h.loginProtection.RecordFailedAttempt(email); locked {
			h.logAuth(r, model.EventLevelWarning, "Account locked due to failed attempts", map[string]any{
				"email":    email,
				"duration": lockDuration.String(),
			})
			flashError(w, r, h.renderer, h.loginURL(), "Too many failed attempts. Try again in "+formatDuration(lockDuration)+".")
			return
		}
		if remaining := h.loginProtection.GetRemainingAttempts(email); remaining <= 3 && remaining > 0 {
			flashError(w, r, h.renderer, h.loginURL(), "Invalid email or password. "+pluralAttempts(remaining)+" remaining.")
			return
		}
	}
	flashError(w, r, h.renderer, h.loginURL(), "Invalid email or password")
}

// Logout handles user logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionManager.GetInt64(r.Context(), middleware.SessionKeyUserID)
	if userID > 0 {
		h.logAuth(r, model.EventLevelInfo, "User logged out", nil)
	}

	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("session destroy error", "error", err)
	}
	slog.Info("user logged out", "user_id", userID)

	flashAndRedirect(w, r, h.renderer, h.loginURL(), "You have been logged out", render.FlashInfo)
}

func (h *AuthHandler) logAuth(r *http.Request, level, message string, meta map[string]any) {
	if h.eventService == nil {
		return
	}
	_ = h.eventService.LogAuthEvent(r.Context(), level, message, meta)
}

func pluralAttempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return strconv.Itoa(n) + " attempts"
}
