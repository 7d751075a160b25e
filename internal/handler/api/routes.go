// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-redirects/internal/handler"
	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/service"
)

// API resource routes
const (
	routeRedirects   = "/redirects"
	routeRedirectsID = routeRedirects + handler.RouteParamID
	routePages       = "/pages"
	routePagesID     = routePages + handler.RouteParamID
	routeSites       = "/sites"
	routeWebhooks    = "/webhooks"
	routeWebhooksID  = routeWebhooks + handler.RouteParamID
	routeEvents      = "/events"
)

// RateLimit configures the per-key request rate.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Routes returns the v1 API router. Everything except /status needs an API
// key, and every resource needs its own permission.
func (h *Handler) Routes(keys *service.APIKeyService, limit RateLimit) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", h.Status)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(keys))
		r.Use(middleware.APIRateLimit(limit.RPS, limit.Burst))

		r.Get("/auth", h.AuthInfo)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionRedirectsRead))
			r.Get(routeRedirects, h.ListRedirects)
			r.Get(routeRedirects+handler.RouteSuffixExport, h.ExportRedirects)
			r.Get(routeRedirectsID, h.GetRedirect)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionRedirectsWrite))
			r.Post(routeRedirects, h.CreateRedirect)
			r.Post(routeRedirects+handler.RouteSuffixImport, h.ImportRedirects)
			r.Put(routeRedirectsID, h.UpdateRedirect)
			r.Delete(routeRedirectsID, h.DeleteRedirect)
			r.Post(routeRedirectsID+handler.RouteSuffixToggle, h.ToggleRedirect)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionPagesRead))
			r.Get(routePages, h.ListPages)
			r.Get(routePagesID, h.GetPage)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionPagesWrite))
			r.Post(routePages, h.CreatePage)
			r.Put(routePagesID, h.UpdatePage)
			r.Delete(routePagesID, h.DeletePage)
		})

		r.With(middleware.RequirePermission(model.PermissionSitesRead)).Get(routeSites, h.ListSites)
		r.With(middleware.RequirePermission(model.PermissionSitesWrite)).Post(routeSites, h.CreateSite)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermissionWebhooksWrite))
			r.Get(routeWebhooks, h.ListWebhooks)
			r.Post(routeWebhooks, h.CreateWebhook)
			r.Delete(routeWebhooksID, h.DeleteWebhook)
		})

		r.With(middleware.RequirePermission(model.PermissionEventsRead)).Get(routeEvents, h.ListEvents)
	})

	return r
}
