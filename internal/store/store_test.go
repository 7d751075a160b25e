// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// testDB creates a migrated database in a temporary directory.
func testDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "redirects-test.db")

	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate: %v", err)
	}

	return db, func() { _ = db.Close() }
}

func mustCreateSite(t *testing.T, q *Queries, domain string) Site {
	t.Helper()
	now := time.Now()
	site, err := q.CreateSite(context.Background(), CreateSiteParams{
		Domain: domain, Name: domain, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSite: %v", err)
	}
	return site
}

func TestMigrationVersion(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	version, err := MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != 3 {
		t.Errorf("version = %d, want 3", version)
	}
}

func TestEnsureDefaultSite(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()

	site, err := EnsureDefaultSite(ctx, db, "example.com", "Example")
	if err != nil {
		t.Fatalf("EnsureDefaultSite: %v", err)
	}
	if !site.IsDefault {
		t.Error("site should be default")
	}

	again, err := EnsureDefaultSite(ctx, db, "example.com", "Example")
	if err != nil {
		t.Fatalf("EnsureDefaultSite (again): %v", err)
	}
	if again.ID != site.ID {
		t.Errorf("ID = %d, want %d", again.ID, site.ID)
	}

	other, err := EnsureDefaultSite(ctx, db, "other.test", "Other")
	if err != nil {
		t.Fatalf("EnsureDefaultSite (other): %v", err)
	}

	def, err := New(db).GetDefaultSite(ctx)
	if err != nil {
		t.Fatalf("GetDefaultSite: %v", err)
	}
	if def.ID != other.ID {
		t.Errorf("default site = %d, want %d", def.ID, other.ID)
	}
}

func TestRedirectUniquePerSite(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()
	q := New(db)

	a := mustCreateSite(t, q, "a.test")
	b := mustCreateSite(t, q, "b.test")
	now := time.Now()

	params := CreateRedirectParams{
		SiteID: a.ID, OldPath: "/old/", NewPath: "/new/", ResponseCode: 301, Active: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if _, err := q.CreateRedirect(ctx, params); err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}
	if _, err := q.CreateRedirect(ctx, params); err == nil {
		t.Error("expected unique constraint violation for same site")
	}

	params.SiteID = b.ID
	if _, err := q.CreateRedirect(ctx, params); err != nil {
		t.Errorf("same path on another site should be allowed: %v", err)
	}
}

func TestGetActiveRedirectTarget(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()
	q := New(db)

	site := mustCreateSite(t, q, "example.com")
	now := time.Now()

	page, err := q.CreatePage(ctx, CreatePageParams{
		SiteID: site.ID, Title: "About", Path: "/about/", Status: "published", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	rd, err := q.CreateRedirect(ctx, CreateRedirectParams{
		SiteID: site.ID, OldPath: "/about.php", PageID: sql.NullInt64{Int64: page.ID, Valid: true},
		ResponseCode: 302, Active: true, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}

	row, err := q.GetActiveRedirectTarget(ctx, GetActiveRedirectTargetParams{SiteID: site.ID, OldPath: "/about.php"})
	if err != nil {
		t.Fatalf("GetActiveRedirectTarget: %v", err)
	}
	if !row.PagePath.Valid || row.PagePath.String != "/about/" {
		t.Errorf("PagePath = %v, want /about/", row.PagePath)
	}
	if row.ResponseCode != 302 {
		t.Errorf("ResponseCode = %d, want 302", row.ResponseCode)
	}

	if _, err := q.ToggleRedirectActive(ctx, ToggleRedirectActiveParams{UpdatedAt: now, ID: rd.ID}); err != nil {
		t.Fatalf("ToggleRedirectActive: %v", err)
	}
	_, err = q.GetActiveRedirectTarget(ctx, GetActiveRedirectTargetParams{SiteID: site.ID, OldPath: "/about.php"})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("inactive redirect should not resolve, got err = %v", err)
	}
}

func TestDeletePageNullsRedirect(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()
	q := New(db)

	site := mustCreateSite(t, q, "example.com")
	now := time.Now()

	page, err := q.CreatePage(ctx, CreatePageParams{
		SiteID: site.ID, Title: "Gone", Path: "/gone/", Status: "published", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	rd, err := q.CreateRedirect(ctx, CreateRedirectParams{
		SiteID: site.ID, OldPath: "/x", PageID: sql.NullInt64{Int64: page.ID, Valid: true},
		ResponseCode: 301, Active: true, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}

	if err := q.DeletePage(ctx, page.ID); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	got, err := q.GetRedirectByID(ctx, rd.ID)
	if err != nil {
		t.Fatalf("GetRedirectByID: %v", err)
	}
	if got.PageID.Valid {
		t.Error("page_id should be NULL after page deletion")
	}
}

func TestFindRedirectTo(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()
	q := New(db)

	site := mustCreateSite(t, q, "example.com")
	now := time.Now()

	rd, err := q.CreateRedirect(ctx, CreateRedirectParams{
		SiteID: site.ID, OldPath: "/path1/", NewPath: "/path2/", ResponseCode: 301, Active: true,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}

	found, err := q.FindRedirectTo(ctx, FindRedirectToParams{SiteID: site.ID, Path: "/path2/"})
	if err != nil {
		t.Fatalf("FindRedirectTo: %v", err)
	}
	if found.ID != rd.ID {
		t.Errorf("found ID = %d, want %d", found.ID, rd.ID)
	}

	_, err = q.FindRedirectTo(ctx, FindRedirectToParams{SiteID: site.ID, Path: "/path2/", ExcludeID: rd.ID})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("excluded redirect should not be found, got err = %v", err)
	}
}

func TestListAndCountRedirects(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()
	q := New(db)

	site := mustCreateSite(t, q, "example.com")
	now := time.Now()
	for _, p := range []string{"/a", "/b", "/blog/old"} {
		if _, err := q.CreateRedirect(ctx, CreateRedirectParams{
			SiteID: site.ID, OldPath: p, NewPath: "/new" + p, ResponseCode: 301, Active: true,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("CreateRedirect(%s): %v", p, err)
		}
	}

	all, err := q.ListRedirects(ctx, ListRedirectsParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListRedirects: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}

	count, err := q.CountRedirects(ctx, CountRedirectsParams{SiteID: site.ID, Search: "blog"})
	if err != nil {
		t.Fatalf("CountRedirects: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestAddRedirectHits(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()
	q := New(db)

	site := mustCreateSite(t, q, "example.com")
	now := time.Now()
	rd, err := q.CreateRedirect(ctx, CreateRedirectParams{
		SiteID: site.ID, OldPath: "/hits", ResponseCode: 301, Active: true, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateRedirect: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := q.AddRedirectHits(ctx, AddRedirectHitsParams{
			Hits: 3, LastHitAt: sql.NullTime{Time: now, Valid: true}, ID: rd.ID,
		}); err != nil {
			t.Fatalf("AddRedirectHits: %v", err)
		}
	}

	got, err := q.GetRedirectByID(ctx, rd.ID)
	if err != nil {
		t.Fatalf("GetRedirectByID: %v", err)
	}
	if got.HitCount != 6 {
		t.Errorf("HitCount = %d, want 6", got.HitCount)
	}
	if !got.LastHitAt.Valid {
		t.Error("LastHitAt should be set")
	}
}

func TestSeed(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := Seed(ctx, db, false); err != nil {
		t.Fatalf("Seed(false): %v", err)
	}
	if _, err := New(db).GetUserByEmail(ctx, DefaultAdminEmail); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("seed disabled should not create admin, err = %v", err)
	}

	if err := Seed(ctx, db, true); err != nil {
		t.Fatalf("Seed(true): %v", err)
	}
	if err := Seed(ctx, db, true); err != nil {
		t.Fatalf("Seed is not idempotent: %v", err)
	}

	user, err := New(db).GetUserByEmail(ctx, DefaultAdminEmail)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.Role != "admin" {
		t.Errorf("Role = %q, want admin", user.Role)
	}
}
