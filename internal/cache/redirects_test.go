// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
)

func TestRedirectCache_LookupCachesResults(t *testing.T) {
	rc := NewRedirectCache(newTestMemoryCache(0), time.Minute)
	ctx := context.Background()

	calls := 0
	load := func() (*RedirectEntry, error) {
		calls++
		return &RedirectEntry{Found: true, Target: model.Target{RedirectID: 7, Location: "/new/", Status: 301}}, nil
	}

	for i := 0; i < 3; i++ {
		entry, err := rc.Lookup(ctx, 1, "/old/", load)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if !entry.Found || entry.Target.Location != "/new/" {
			t.Errorf("unexpected entry: %+v", entry)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}
}

func TestRedirectCache_NegativeAndInvalidate(t *testing.T) {
	rc := NewRedirectCache(newTestMemoryCache(0), time.Minute)
	ctx := context.Background()

	calls := 0
	miss := func() (*RedirectEntry, error) {
		calls++
		return &RedirectEntry{}, nil
	}

	_, _ = rc.Lookup(ctx, 1, "/nope", miss)
	_, _ = rc.Lookup(ctx, 1, "/nope", miss)
	_, _ = rc.Lookup(ctx, 2, "/nope", miss)
	if calls != 2 {
		t.Errorf("loader called %d times, want 2", calls)
	}

	if err := rc.InvalidateSite(ctx, 1); err != nil {
		t.Fatalf("InvalidateSite: %v", err)
	}
	_, _ = rc.Lookup(ctx, 1, "/nope", miss)
	_, _ = rc.Lookup(ctx, 2, "/nope", miss)
	if calls != 3 {
		t.Errorf("loader called %d times, want 3", calls)
	}

	_ = rc.InvalidateAll(ctx)
	_, _ = rc.Lookup(ctx, 2, "/nope", miss)
	if calls != 4 {
		t.Errorf("loader called %d times, want 4", calls)
	}
}

func TestRedirectCache_LoaderError(t *testing.T) {
	rc := NewRedirectCache(newTestMemoryCache(0), time.Minute)
	boom := errors.New("db down")

	_, err := rc.Lookup(context.Background(), 1, "/x", func() (*RedirectEntry, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
