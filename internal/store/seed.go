// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-redirects/internal/auth"
)

// Default admin credentials
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme1234"
	DefaultAdminName     = "Administrator"
)

// EnsureDefaultSite makes sure a site for domain exists and is the default one.
func EnsureDefaultSite(ctx context.Context, db *sql.DB, domain, name string) (Site, error) {
	queries := New(db)

	site, err := queries.GetSiteByDomain(ctx, domain)
	if err == nil && site.IsDefault {
		return site, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Site{}, fmt.Errorf("looking up site %q: %w", domain, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Site{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	qtx := queries.WithTx(tx)
	now := time.Now()
	if err := qtx.ClearDefaultSite(ctx, now); err != nil {
		return Site{}, fmt.Errorf("clearing default site: %w", err)
	}

	if site.ID != 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE sites SET is_default = 1, updated_at = ? WHERE id = ?`, now, site.ID); err != nil {
			return Site{}, fmt.Errorf("marking default site: %w", err)
		}
		site.IsDefault = true
	} else {
		site, err = qtx.CreateSite(ctx, CreateSiteParams{
			Domain:    domain,
			Name:      name,
			IsDefault: true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Site{}, fmt.Errorf("creating default site: %w", err)
		}
		slog.Info("created default site", "site_id", site.ID, "domain", domain)
	}

	if err := tx.Commit(); err != nil {
		return Site{}, fmt.Errorf("committing default site: %w", err)
	}
	return site, nil
}

// Seed creates the default admin user when doSeed is set and no admin exists yet.
func Seed(ctx context.Context, db *sql.DB, doSeed bool) error {
	if !doSeed {
		return nil
	}

	queries := New(db)

	_, err := queries.GetUserByEmail(ctx, DefaultAdminEmail)
	if err == nil {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:        DefaultAdminEmail,
		PasswordHash: passwordHash,
		Role:         "admin",
		Name:         DefaultAdminName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Warn("created default admin user, change its password",
		"id", user.ID,
		"email", user.Email,
	)

	return nil
}
