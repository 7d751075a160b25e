// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/ocms-redirects/internal/handler"
	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/testutil"
)

// newPublicRouter builds the public side of the server router: the same
// middleware order, fallback settings and catch-all page route, with stub
// health and admin handlers.
func newPublicRouter(t *testing.T, a *app) http.Handler {
	t.Helper()

	resolver := service.NewResolver(a.db, service.ResolverConfig{Cache: a.redirectRC})
	pages := service.NewPageService(a.db, a.redirectRC, a.events, nil, testutil.TestLoggerSilent())
	frontend := handler.NewFrontendHandler(nil, pages, a.sites)
	ok := func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ResolveSite(a.sites))
	r.Use(middleware.RedirectFallback(fallbackConfig(a.cfg.AdminPrefix, resolver, a.sites, a.metrics)))

	r.Get(handler.RouteHealth, ok)
	r.Get(handler.RouteHealthLive, ok)
	r.Get(handler.RouteHealthReady, ok)
	r.Get(handler.RouteMetrics, ok)
	r.Route(strings.TrimSuffix(a.cfg.AdminPrefix, "/"), func(r chi.Router) {
		r.Get(handler.RouteRedirects, ok)
	})
	mountPages(r, frontend.Page)
	return r
}

func TestRouter_RedirectFallback(t *testing.T) {
	a := newTestApp(t)
	site, err := a.siteByDomain(context.Background(), "")
	if err != nil {
		t.Fatalf("siteByDomain: %v", err)
	}
	testutil.CreateTestRedirect(t, a.db, site.ID, "/old/", "/new/", 301)
	testutil.CreateTestRedirect(t, a.db, site.ID, "/gone/", "", 301)
	testutil.CreateTestRedirect(t, a.db, site.ID, "/health-tips/", "/wellbeing/", 301)
	testutil.CreateTestRedirect(t, a.db, site.ID, "/metrics-report", "/reports/", 302)
	// Stored directly; the validator would refuse these paths.
	testutil.CreateTestRedirect(t, a.db, site.ID, "/health", "/elsewhere/", 301)
	testutil.CreateTestRedirect(t, a.db, site.ID, "/admin/x/", "/new/", 301)

	h := newPublicRouter(t, a)

	tests := []struct {
		method   string
		path     string
		status   int
		location string
	}{
		{http.MethodGet, "/old/", http.StatusMovedPermanently, "/new/"},
		{http.MethodHead, "/old/", http.StatusMovedPermanently, "/new/"},
		{http.MethodPost, "/old/", http.StatusMovedPermanently, "/new/"},
		{http.MethodPut, "/old/?x=1", http.StatusMovedPermanently, "/new/"},
		{http.MethodDelete, "/gone/", http.StatusGone, ""},
		{http.MethodGet, "/health-tips/", http.StatusMovedPermanently, "/wellbeing/"},
		{http.MethodHead, "/metrics-report", http.StatusFound, "/reports/"},
		{http.MethodGet, "/health", http.StatusOK, ""},
		{http.MethodGet, "/health/live", http.StatusOK, ""},
		{http.MethodGet, "/metrics", http.StatusOK, ""},
		{http.MethodGet, "/admin/redirects", http.StatusOK, ""},
		{http.MethodGet, "/admin/x/", http.StatusNotFound, ""},
		{http.MethodGet, "/nothing/", http.StatusNotFound, ""},
		{http.MethodPost, "/nothing/", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.com"+tt.path, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if got := w.Header().Get("Location"); got != tt.location {
				t.Errorf("Location = %q, want %q", got, tt.location)
			}
		})
	}
}

func TestFallbackConfig_Skips(t *testing.T) {
	cfg := fallbackConfig("/admin/", nil, nil, nil)

	if len(cfg.SkipPrefixes) != 2 || cfg.SkipPrefixes[0] != "/admin/" || cfg.SkipPrefixes[1] != "/static/" {
		t.Errorf("SkipPrefixes = %v", cfg.SkipPrefixes)
	}
	for _, p := range cfg.SkipPaths {
		if strings.HasSuffix(p, "/") {
			t.Errorf("skip path %q would match by prefix", p)
		}
	}
}
