// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration. Admin routes are
// relative to the admin prefix.
const (
	// RouteRoot is the root path.
	RouteRoot = "/"
	// RouteParamID is the ID parameter pattern.
	RouteParamID = "/{id}"
	// RouteSuffixNew is the suffix for "new" routes.
	RouteSuffixNew = "/new"
	// RouteSuffixToggle is the suffix for toggle routes.
	RouteSuffixToggle = "/toggle"
	// RouteSuffixDelete is the suffix for delete routes posted from HTML forms.
	RouteSuffixDelete = "/delete"
	// RouteSuffixImport is the suffix for import routes.
	RouteSuffixImport = "/import"
	// RouteSuffixExport is the suffix for export routes.
	RouteSuffixExport = "/export"

	// RouteLogin is the login route.
	RouteLogin = "/login"
	// RouteLogout is the logout route.
	RouteLogout = "/logout"
	// RouteRedirects is the redirects admin route.
	RouteRedirects = "/redirects"
	// RouteEvents is the event log admin route.
	RouteEvents = "/events"

	// RouteRedirectsID is the redirects ID route pattern.
	RouteRedirectsID = RouteRedirects + RouteParamID
)

// Health routes
const (
	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"
	RouteMetrics     = "/metrics"
)

// Templates
const (
	templateLogin         = "auth/login"
	templateRedirectsList = "admin/redirects_list"
	templateRedirectForm  = "admin/redirect_form"
	templateImport        = "admin/redirects_import"
	templateEvents        = "admin/events"
	templatePage          = "frontend/page"
)

// Log messages
const (
	logRenderError = "render error"
)

const (
	// redirectsPerPage is the page size of the redirects list.
	redirectsPerPage = 50
	// eventsPerPage is the page size of the event log.
	eventsPerPage = 100
	// maxImportMemory is the part of an upload kept in memory.
	maxImportMemory = 1 << 20
)
