// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// WebhookResponse represents a webhook in API responses. The signing secret
// is only returned once, on creation.
type WebhookResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	IsActive  bool      `json:"is_active"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func webhookToResponse(wh store.Webhook) WebhookResponse {
	return WebhookResponse{
		ID:        wh.ID,
		Name:      wh.Name,
		URL:       wh.Url,
		Events:    model.ParseEvents(wh.Events),
		IsActive:  wh.IsActive,
		CreatedAt: wh.CreatedAt,
		UpdatedAt: wh.UpdatedAt,
	}
}

// ListWebhooks handles GET /api/v1/webhooks.
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "webhook", "Failed to list webhooks")
		return
	}

	resp := make([]WebhookResponse, 0, len(hooks))
	for _, wh := range hooks {
		resp = append(resp, webhookToResponse(wh))
	}
	WriteSuccess(w, resp, &Meta{Total: int64(len(resp))})
}

// CreateWebhook handles POST /api/v1/webhooks.
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req service.WebhookInput
	if !decodeJSON(w, r, &req) {
		return
	}

	wh, err := h.webhooks.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "webhook", "Failed to create webhook")
		return
	}

	resp := webhookToResponse(wh)
	resp.Secret = wh.Secret
	WriteCreated(w, resp)
}

// DeleteWebhook handles DELETE /api/v1/webhooks/{id}.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	wh, ok := requireEntityByID(w, r, "webhook", func(id int64) (store.Webhook, error) {
		return h.webhooks.Get(r.Context(), id)
	})
	if !ok {
		return
	}

	if err := h.webhooks.Delete(r.Context(), wh.ID); err != nil {
		writeServiceError(w, err, "webhook", "Failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
