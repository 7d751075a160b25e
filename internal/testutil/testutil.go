// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the redirect manager.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/olegiv/ocms-redirects/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// TestSiteDomain is the domain of the default site created by TestSite.
const TestSiteDomain = "example.com"

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a temporary test database with migrations applied.
// Returns the database and a cleanup function that should be deferred.
func TestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "redirects-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		_ = os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}

	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		_ = os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	return db, func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	}
}

// TestSite makes TestSiteDomain the default site of db.
func TestSite(t *testing.T, db *sql.DB) store.Site {
	t.Helper()

	site, err := store.EnsureDefaultSite(context.Background(), db, TestSiteDomain, "Example")
	if err != nil {
		t.Fatalf("EnsureDefaultSite: %v", err)
	}
	return site
}

// CreateTestSite adds a non-default site.
func CreateTestSite(t *testing.T, db *sql.DB, domain string) store.Site {
	t.Helper()

	now := time.Now().UTC()
	site, err := store.New(db).CreateSite(context.Background(), store.CreateSiteParams{
		Domain:    domain,
		Name:      domain,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSite: %v", err)
	}
	return site
}

// CreateTestPage adds a published page to siteID.
func CreateTestPage(t *testing.T, db *sql.DB, siteID int64, path string) store.Page {
	t.Helper()

	now := time.Now().UTC()
	page, err := store.New(db).CreatePage(context.Background(), store.CreatePageParams{
		SiteID:    siteID,
		Title:     "Page " + path,
		Path:      path,
		Body:      "<p>" + path + "</p>",
		Status:    "published",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	return page
}

// CreateTestRedirect adds an active path redirect to siteID.
func CreateTestRedirect(t *testing.T, db *sql.DB, siteID int64, oldPath, newPath string, code int64) store.Redirect {
	t.Helper()

	now := time.Now().UTC()
	r, err := store.New(db).CreateRedirect(context.Background(), store.CreateRedirectParams{
		SiteID:       siteID,
		OldPath:      oldPath,
		NewPath:      newPath,
		ResponseCode: code,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}
	return r
}

// TestMemoryDB creates an in-memory SQLite database for testing.
// Useful for tests that don't need persistent storage or migrations.
func TestMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
