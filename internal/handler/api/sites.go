// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/ocms-redirects/internal/service"
)

// ListSites handles GET /api/v1/sites.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.sites.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "site", "Failed to list sites")
		return
	}
	WriteSuccess(w, sites, &Meta{Total: int64(len(sites))})
}

// CreateSite handles POST /api/v1/sites.
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req service.SiteInput
	if !decodeJSON(w, r, &req) {
		return
	}

	site, err := h.sites.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "site", "Failed to create site")
		return
	}
	WriteCreated(w, site)
}
