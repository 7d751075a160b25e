// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/olegiv/ocms-redirects/internal/cache"
	"github.com/olegiv/ocms-redirects/internal/handler"
	"github.com/olegiv/ocms-redirects/internal/handler/api"
	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/render"
	"github.com/olegiv/ocms-redirects/internal/scheduler"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/session"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/webhook"
	"github.com/olegiv/ocms-redirects/web"
)

// apiVersionPath is the API mount point below the admin prefix.
const apiVersionPath = "api/v1"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	slog.Info("starting ocms-redirects", "version", versionInfo().Short(), "env", cfg.Env)
	if v, err := store.MigrationVersion(a.db); err == nil {
		slog.Info("database ready", "path", cfg.DBPath, "schema_version", v)
	}

	if err := store.Seed(ctx, a.db, cfg.DoSeed); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	// Webhook delivery runs until shutdown
	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	whCfg := webhook.DefaultConfig()
	whCfg.Workers = cfg.WebhookWorkers
	whCfg.Timeout = time.Duration(cfg.WebhookTimeoutSecs) * time.Second
	whCfg.AllowPrivate = cfg.IsDevelopment()
	dispatcher := webhook.NewDispatcher(a.db, a.logger, whCfg)
	dispatcher.Start(dispatcherCtx)
	defer dispatcher.Stop()

	// Writes made through the server also notify webhooks
	a.redirects = service.NewRedirectService(a.db, a.redirectConfig(dispatcher))
	pageService := service.NewPageService(a.db, a.redirectRC, a.events, dispatcher, a.logger)
	webhookService := service.NewWebhookService(a.db, whCfg.AllowPrivate)

	hits := service.NewHitCounter(a.db)
	resolver := service.NewResolver(a.db, service.ResolverConfig{
		AppendSlash: cfg.AppendSlash,
		Cache:       a.redirectRC,
		Hits:        hits,
		Metrics:     a.metrics,
		Logger:      a.logger,
	})

	sched := scheduler.New(a.logger)
	if err := sched.RegisterMaintenance(scheduler.Maintenance{
		Hits:           hits,
		Events:         a.events,
		Webhooks:       dispatcher,
		Metrics:        a.metrics,
		EventRetention: cfg.EventRetention(),
	}); err != nil {
		return fmt.Errorf("registering scheduled jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	sessionManager := session.New(a.db, cfg.IsDevelopment())

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		AdminPrefix:    cfg.AdminPrefix,
		IsDev:          cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Stop()

	var cachePinger handler.Pinger
	if rc, ok := a.cache.(*cache.RedisCache); ok {
		cachePinger = rc
	}

	healthHandler := handler.NewHealthHandler(a.db, handler.HealthConfig{
		SessionManager: sessionManager,
		APIKeys:        a.apiKeys,
		Cache:          cachePinger,
		Scheduler:      sched,
		Version:        versionInfo(),
	})
	authHandler := handler.NewAuthHandler(a.db, renderer, sessionManager, a.events, loginProtection)
	redirectsHandler := handler.NewRedirectsHandler(renderer, a.redirects, a.sites, pageService, cfg.ImportMaxUploadSize)
	eventsHandler := handler.NewEventsHandler(renderer, a.events)
	frontendHandler := handler.NewFrontendHandler(renderer, pageService, a.sites)
	apiHandler := api.NewHandler(api.Config{
		Redirects:     a.redirects,
		Pages:         pageService,
		Sites:         a.sites,
		Webhooks:      webhookService,
		Events:        a.events,
		Version:       versionInfo(),
		MaxUploadSize: cfg.ImportMaxUploadSize,
	})

	adminRoot := strings.TrimSuffix(cfg.AdminPrefix, "/")
	apiPrefix := cfg.AdminPrefix + apiVersionPath
	loginPath := adminRoot + handler.RouteLogin

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.Timeout(time.Duration(cfg.RequestTimeoutSecs) * time.Second))
	r.Use(middleware.ResolveSite(a.sites))
	r.Use(middleware.RedirectFallback(fallbackConfig(cfg.AdminPrefix, resolver, a.sites, a.metrics)))
	r.Use(sessionManager.LoadAndSave)

	// Static files
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("loading static files: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Health and metrics
	r.Get(handler.RouteHealth, healthHandler.Health)
	r.Get(handler.RouteHealthLive, healthHandler.Liveness)
	r.Get(handler.RouteHealthReady, healthHandler.Readiness)
	r.Handle(handler.RouteMetrics, a.metrics.Handler())

	r.Route(adminRoot, func(r chi.Router) {
		// The API authenticates with bearer keys instead of the session
		r.Use(middleware.SkipCSRF(apiPrefix))
		r.Use(middleware.CSRF(middleware.DefaultCSRFConfig(
			[]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerAddr())))

		r.Mount("/"+apiVersionPath, apiHandler.Routes(a.apiKeys, api.RateLimit{
			RPS:   cfg.APIRateLimit,
			Burst: apiBurst(cfg.APIRateLimit),
		}))

		r.Get(handler.RouteLogin, authHandler.LoginForm)
		r.With(loginProtection.Middleware()).Post(handler.RouteLogin, authHandler.Login)
		r.Get(handler.RouteLogout, authHandler.Logout)
		r.Post(handler.RouteLogout, authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionManager, loginPath))
			r.Use(middleware.LoadUser(sessionManager, a.db, loginPath))
			r.Use(middleware.RequireRole(model.RoleEditor, a.events))

			r.Get(handler.RouteRoot, func(w http.ResponseWriter, req *http.Request) {
				http.Redirect(w, req, adminRoot+handler.RouteRedirects, http.StatusSeeOther)
			})

			r.Get(handler.RouteRedirects, redirectsHandler.List)
			r.Post(handler.RouteRedirects, redirectsHandler.Create)
			r.Get(handler.RouteRedirects+handler.RouteSuffixNew, redirectsHandler.NewForm)
			r.Get(handler.RouteRedirects+handler.RouteSuffixImport, redirectsHandler.ImportForm)
			r.Post(handler.RouteRedirects+handler.RouteSuffixImport, redirectsHandler.Import)
			r.Get(handler.RouteRedirects+handler.RouteSuffixExport, redirectsHandler.Export)
			r.Get(handler.RouteRedirectsID, redirectsHandler.EditForm)
			r.Post(handler.RouteRedirectsID, redirectsHandler.Update)
			r.Post(handler.RouteRedirectsID+handler.RouteSuffixToggle, redirectsHandler.Toggle)
			r.Post(handler.RouteRedirectsID+handler.RouteSuffixDelete, redirectsHandler.Delete)

			r.Get(handler.RouteEvents, eventsHandler.List)
		})
	})

	mountPages(r, frontendHandler.Page)

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "admin", cfg.AdminPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Keep the hits counted since the last scheduled flush
	if n, err := hits.Flush(shutdownCtx); err != nil {
		slog.Error("failed to flush redirect hits", "error", err)
	} else if n > 0 {
		slog.Info("flushed redirect hits", "hits", n)
	}

	slog.Info("server stopped")
	return nil
}

// fallbackConfig returns the redirect fallback settings. The admin site and
// static files are skipped by prefix, health and metrics by exact path.
func fallbackConfig(adminPrefix string, resolver *service.Resolver, sites *service.SiteService, m *metrics.Metrics) middleware.RedirectFallbackConfig {
	return middleware.RedirectFallbackConfig{
		Resolver:     resolver,
		Sites:        sites,
		Metrics:      m,
		SkipPrefixes: []string{adminPrefix, "/static/"},
		SkipPaths: []string{
			handler.RouteHealth,
			handler.RouteHealthLive,
			handler.RouteHealthReady,
			handler.RouteMetrics,
		},
	}
}

// mountPages routes every method of every unmatched path to page, so a
// missing page is a 404 for the redirect fallback and never a 405.
func mountPages(r chi.Router, page http.HandlerFunc) {
	r.HandleFunc("/*", page)
}

// apiBurst returns the burst allowance for an API rate of rps.
func apiBurst(rps float64) int {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	return burst
}
