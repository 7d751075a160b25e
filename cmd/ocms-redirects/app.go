// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/olegiv/ocms-redirects/internal/cache"
	"github.com/olegiv/ocms-redirects/internal/config"
	"github.com/olegiv/ocms-redirects/internal/logging"
	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// app holds what every command needs: configuration, the database and the
// services writing to it.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	logger     *slog.Logger
	cache      cache.Cache
	redirectRC *cache.RedirectCache
	metrics    *metrics.Metrics
	events     *service.EventService
	sites      *service.SiteService
	redirects  *service.RedirectService
	apiKeys    *service.APIKeyService
}

// openApp loads the configuration, opens and migrates the database and
// builds the services.
func openApp(ctx context.Context) (*app, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Text logger until the database is available
	slog.SetDefault(logging.NewTextLogger(cfg.LogLevel))

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// Warnings and errors are also written to the event log
	logger := logging.NewLogger(cfg.LogLevel, db)
	slog.SetDefault(logger)

	if _, err := store.EnsureDefaultSite(ctx, db, cfg.SiteDomain, cfg.SiteName); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensuring default site: %w", err)
	}

	c := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTLDuration(),
		MaxSize:    cfg.CacheMaxSize,
	}, logger)
	rc := cache.NewRedirectCache(c, cfg.CacheTTLDuration())
	m := metrics.New()

	events := service.NewEventService(db, logger)
	a := &app{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		cache:      c,
		redirectRC: rc,
		metrics:    m,
		events:     events,
		sites:      service.NewSiteService(db, events),
		apiKeys:    service.NewAPIKeyService(db),
	}
	a.redirects = service.NewRedirectService(db, a.redirectConfig(nil))
	return a, nil
}

// redirectConfig returns the redirect service configuration. publisher may
// be nil.
func (a *app) redirectConfig(publisher service.Publisher) service.RedirectServiceConfig {
	return service.RedirectServiceConfig{
		AdminPrefix: a.cfg.AdminPrefix,
		Cache:       a.redirectRC,
		Events:      a.events,
		Publisher:   publisher,
		Metrics:     a.metrics,
		Logger:      a.logger,
	}
}

// Close releases the cache and the database.
func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close cache", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// siteByDomain returns the site for domain, or the default site when domain
// is empty.
func (a *app) siteByDomain(ctx context.Context, domain string) (store.Site, error) {
	if domain == "" {
		return a.sites.Default(ctx)
	}
	site, err := a.sites.GetByDomain(ctx, domain)
	if errors.Is(err, service.ErrNotFound) {
		return store.Site{}, fmt.Errorf("No site found, invalid domain: %s", domain) //nolint:staticcheck // printed as is
	}
	if err != nil {
		return store.Site{}, fmt.Errorf("loading site: %w", err)
	}
	return site, nil
}
