// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/olegiv/ocms-redirects/internal/cache"
	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// Candidates returns the paths tried for uri, in order: the full URI, the
// URI without its trailing slash (appendSlash only), the URI without its
// query string, and the URI with both removed.
func Candidates(uri string, appendSlash bool) []string {
	out := []string{uri}
	add := func(c string) {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}

	if appendSlash {
		add(util.StripTrailingSlash(uri))
	}
	if strings.Contains(uri, "?") {
		noQuery := util.StripQuery(uri)
		add(noQuery)
		if appendSlash {
			add(util.StripTrailingSlash(noQuery))
		}
	}
	return out
}

// ResolverConfig holds the optional collaborators of a Resolver.
type ResolverConfig struct {
	AppendSlash bool
	Cache       *cache.RedirectCache
	Hits        *HitCounter
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Resolver finds the redirect for a request that matched no page.
type Resolver struct {
	queries     *store.Queries
	appendSlash bool
	cache       *cache.RedirectCache
	hits        *HitCounter
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewResolver creates a new Resolver.
func NewResolver(db *sql.DB, cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		queries:     store.New(db),
		appendSlash: cfg.AppendSlash,
		cache:       cfg.Cache,
		hits:        cfg.Hits,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Resolve returns the target for uri on siteID, or nil when no active
// redirect matches any candidate.
func (r *Resolver) Resolve(ctx context.Context, siteID int64, uri string) (*model.Target, error) {
	started := time.Now()

	for _, candidate := range Candidates(uri, r.appendSlash) {
		entry, err := r.lookup(ctx, siteID, candidate)
		if err != nil {
			r.metrics.ObserveLookup(metrics.ResultError, started)
			return nil, fmt.Errorf("resolving %q: %w", candidate, err)
		}
		if !entry.Found {
			continue
		}

		target := entry.Target
		if target.IsGone() {
			r.metrics.ObserveLookup(metrics.ResultGone, started)
		} else {
			r.metrics.ObserveLookup(metrics.ResultServed, started)
		}
		r.hits.Record(target.RedirectID)
		return &target, nil
	}

	r.metrics.ObserveLookup(metrics.ResultMiss, started)
	return nil, nil
}

func (r *Resolver) lookup(ctx context.Context, siteID int64, candidate string) (*cache.RedirectEntry, error) {
	if r.cache == nil {
		return r.load(ctx, siteID, candidate)
	}

	loaded := false
	entry, err := r.cache.Lookup(ctx, siteID, candidate, func() (*cache.RedirectEntry, error) {
		loaded = true
		return r.load(ctx, siteID, candidate)
	})
	if err == nil {
		r.metrics.RecordCache(!loaded)
	}
	return entry, err
}

func (r *Resolver) load(ctx context.Context, siteID int64, candidate string) (*cache.RedirectEntry, error) {
	row, err := r.queries.GetActiveRedirectTarget(ctx, store.GetActiveRedirectTargetParams{
		SiteID:  siteID,
		OldPath: candidate,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return &cache.RedirectEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cache.RedirectEntry{Found: true, Target: TargetFor(row)}, nil
}

// TargetFor builds the served target of a stored redirect. A page
// destination wins over the new path.
func TargetFor(row store.GetActiveRedirectTargetRow) model.Target {
	location := row.NewPath
	if row.PagePath.Valid && row.PagePath.String != "" {
		location = row.PagePath.String
	}
	return model.Target{
		RedirectID: row.ID,
		Location:   location,
		Status:     model.EffectiveStatus(row.ResponseCode, location != ""),
	}
}
