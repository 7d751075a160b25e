// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"slices"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// ListEvents handles GET /api/v1/events, newest first.
// Query parameters: category, page, per_page.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !slices.Contains(model.EventCategories(), category) {
		WriteBadRequest(w, "Unknown event category", map[string]string{"category": category})
		return
	}
	page, perPage := parsePagination(r)

	events, err := h.events.List(r.Context(), category, int64(perPage), int64((page-1)*perPage))
	if err != nil {
		writeServiceError(w, err, "event", "Failed to list events")
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	WriteSuccess(w, events, &Meta{Page: page, PerPage: perPage})
}
