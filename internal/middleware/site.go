// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// ResolveSite puts the site serving the request host into the context.
// Requests for unknown hosts use the default site.
func ResolveSite(sites *service.SiteService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			site, err := sites.ResolveByHost(r.Context(), util.RequestHost(r))
			if err != nil {
				slog.Error("failed to resolve site", "host", r.Host, "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySite, site)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSite returns the site stored by ResolveSite, or nil.
func GetSite(r *http.Request) *store.Site {
	site, ok := r.Context().Value(ContextKeySite).(store.Site)
	if !ok {
		return nil
	}
	return &site
}
