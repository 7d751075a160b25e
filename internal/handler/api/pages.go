// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// PageRequest is the request body for creating or replacing a page. An
// empty path is derived from the title.
type PageRequest struct {
	SiteID int64  `json:"site_id"`
	Title  string `json:"title"`
	Path   string `json:"path"`
	Body   string `json:"body"`
	Status string `json:"status"`
}

// ListPages handles GET /api/v1/pages?site=ID. A missing site means the
// default site.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromValue(w, r, r.URL.Query().Get("site"))
	if !ok {
		return
	}

	pages, err := h.pages.ListBySite(r.Context(), site.ID)
	if err != nil {
		writeServiceError(w, err, "page", "Failed to list pages")
		return
	}
	if pages == nil {
		pages = []store.Page{}
	}
	WriteSuccess(w, pages, &Meta{Total: int64(len(pages))})
}

// GetPage handles GET /api/v1/pages/{id}.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := requireEntityByID(w, r, "page", func(id int64) (store.Page, error) {
		return h.pages.Get(r.Context(), id)
	})
	if !ok {
		return
	}
	WriteSuccess(w, page, nil)
}

// CreatePage handles POST /api/v1/pages.
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SiteID == 0 {
		site, err := h.sites.Default(r.Context())
		if err != nil {
			writeServiceError(w, err, "default site", "Failed to load default site")
			return
		}
		req.SiteID = site.ID
	}

	page, err := h.pages.Create(r.Context(), service.PageInput(req))
	if err != nil {
		writeServiceError(w, err, "page", "Failed to create page")
		return
	}
	WriteCreated(w, page)
}

// UpdatePage handles PUT /api/v1/pages/{id}. Pages cannot move between sites.
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	existing, ok := requireEntityByID(w, r, "page", func(id int64) (store.Page, error) {
		return h.pages.Get(r.Context(), id)
	})
	if !ok {
		return
	}

	var req PageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	page, err := h.pages.Update(r.Context(), existing.ID, service.PageInput(req))
	if err != nil {
		writeServiceError(w, err, "page", "Failed to update page")
		return
	}
	WriteSuccess(w, page, nil)
}

// DeletePage handles DELETE /api/v1/pages/{id}.
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	page, ok := requireEntityByID(w, r, "page", func(id int64) (store.Page, error) {
		return h.pages.Get(r.Context(), id)
	})
	if !ok {
		return
	}

	if err := h.pages.Delete(r.Context(), page.ID); err != nil {
		writeServiceError(w, err, "page", "Failed to delete page")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
