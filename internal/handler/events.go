// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"slices"

	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/render"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// EventsHandler shows the audit log.
type EventsHandler struct {
	renderer *render.Renderer
	events   *service.EventService
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(renderer *render.Renderer, events *service.EventService) *EventsHandler {
	return &EventsHandler{renderer: renderer, events: events}
}

// EventsListData holds data for the event log template.
type EventsListData struct {
	Events     []store.Event
	Categories []string
	Category   string
	Page       int
	HasMore    bool
}

// List handles GET /admin/events, newest first.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if !slices.Contains(model.EventCategories(), category) {
		category = ""
	}
	page := render.ParsePageParam(r)

	// One extra row tells whether an older page exists.
	events, err := h.events.List(r.Context(), category, eventsPerPage+1, int64((page-1)*eventsPerPage))
	if err != nil {
		logAndInternalError(w, "failed to list events", "error", err)
		return
	}
	hasMore := len(events) > eventsPerPage
	if hasMore {
		events = events[:eventsPerPage]
	}

	renderOrError(w, r, h.renderer, http.StatusOK, templateEvents, render.TemplateData{
		Title: "Events",
		User:  middleware.GetUser(r),
		Data: EventsListData{
			Events:     events,
			Categories: model.EventCategories(),
			Category:   category,
			Page:       page,
			HasMore:    hasMore,
		},
	})
}
