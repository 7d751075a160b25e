// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
)

const redirectKeyPrefix = "redirect:"

// RedirectEntry is the cached result of one lookup. Found is false for a
// negative result so repeated 404s do not hit the database.
type RedirectEntry struct {
	Found  bool         `json:"found"`
	Target model.Target `json:"target"`
}

// RedirectCache caches redirect lookups per (site, candidate path).
type RedirectCache struct {
	typed *TypedCache[RedirectEntry]
}

// NewRedirectCache wraps c for redirect lookups.
func NewRedirectCache(c Cache, ttl time.Duration) *RedirectCache {
	return &RedirectCache{typed: NewTypedCache[RedirectEntry](c, ttl)}
}

func siteKeyPrefix(siteID int64) string {
	return redirectKeyPrefix + strconv.FormatInt(siteID, 10) + ":"
}

// Lookup returns the cached entry for candidate or calls load on a miss.
func (rc *RedirectCache) Lookup(ctx context.Context, siteID int64, candidate string, load func() (*RedirectEntry, error)) (*RedirectEntry, error) {
	return rc.typed.GetOrSet(ctx, siteKeyPrefix(siteID)+candidate, load)
}

// InvalidateSite drops every cached lookup for siteID.
func (rc *RedirectCache) InvalidateSite(ctx context.Context, siteID int64) error {
	return rc.typed.DeleteByPrefix(ctx, siteKeyPrefix(siteID))
}

// InvalidateAll drops every cached lookup.
func (rc *RedirectCache) InvalidateAll(ctx context.Context) error {
	return rc.typed.DeleteByPrefix(ctx, redirectKeyPrefix)
}
