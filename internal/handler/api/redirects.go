// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// RedirectResponse represents a redirect in API responses.
type RedirectResponse struct {
	ID           int64      `json:"id"`
	SiteID       int64      `json:"site_id"`
	OldPath      string     `json:"old_path"`
	NewPath      string     `json:"new_path"`
	PageID       *int64     `json:"page_id,omitempty"`
	ResponseCode int64      `json:"response_code"`
	Active       bool       `json:"active"`
	HitCount     int64      `json:"hit_count"`
	LastHitAt    *time.Time `json:"last_hit_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RedirectRequest is the request body for creating or replacing a redirect.
// A missing active flag means active.
type RedirectRequest struct {
	SiteID       int64  `json:"site_id"`
	OldPath      string `json:"old_path"`
	NewPath      string `json:"new_path"`
	PageID       *int64 `json:"page_id,omitempty"`
	ResponseCode int64  `json:"response_code"`
	Active       *bool  `json:"active,omitempty"`
}

func (req RedirectRequest) input() service.RedirectInput {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return service.RedirectInput{
		SiteID:       req.SiteID,
		OldPath:      req.OldPath,
		NewPath:      req.NewPath,
		PageID:       req.PageID,
		ResponseCode: req.ResponseCode,
		Active:       active,
	}
}

func redirectToResponse(r store.Redirect) RedirectResponse {
	resp := RedirectResponse{
		ID:           r.ID,
		SiteID:       r.SiteID,
		OldPath:      r.OldPath,
		NewPath:      r.NewPath,
		PageID:       util.PtrFromNullInt64(r.PageID),
		ResponseCode: r.ResponseCode,
		Active:       r.Active,
		HitCount:     r.HitCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastHitAt.Valid {
		resp.LastHitAt = &r.LastHitAt.Time
	}
	return resp
}

// ListRedirects handles GET /api/v1/redirects.
// Query parameters: site, q, page, per_page.
func (h *Handler) ListRedirects(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	items, total, err := h.redirects.List(r.Context(), service.ListFilter{
		SiteID: parseQueryInt64(r, "site"),
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  int64(perPage),
		Offset: int64((page - 1) * perPage),
	})
	if err != nil {
		writeServiceError(w, err, "redirect", "Failed to list redirects")
		return
	}

	resp := make([]RedirectResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, redirectToResponse(item))
	}
	WriteSuccess(w, resp, pageMeta(total, page, perPage))
}

// GetRedirect handles GET /api/v1/redirects/{id}.
func (h *Handler) GetRedirect(w http.ResponseWriter, r *http.Request) {
	redirect, ok := requireEntityByID(w, r, "redirect", func(id int64) (store.Redirect, error) {
		return h.redirects.Get(r.Context(), id)
	})
	if !ok {
		return
	}
	WriteSuccess(w, redirectToResponse(redirect), nil)
}

// CreateRedirect handles POST /api/v1/redirects. A missing site_id means
// the default site.
func (h *Handler) CreateRedirect(w http.ResponseWriter, r *http.Request) {
	var req RedirectRequest
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

	redirect, err := h.redirects.Create(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, err, "redirect", "Failed to create redirect")
		return
	}
	WriteCreated(w, redirectToResponse(redirect))
}

// UpdateRedirect handles PUT /api/v1/redirects/{id}. The body replaces the
// redirect; a missing site_id keeps the current site.
func (h *Handler) UpdateRedirect(w http.ResponseWriter, r *http.Request) {
	existing, ok := requireEntityByID(w, r, "redirect", func(id int64) (store.Redirect, error) {
		return h.redirects.Get(r.Context(), id)
	})
	if !ok {
		return
	}

	var req RedirectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SiteID == 0 {
		req.SiteID = existing.SiteID
	}

	redirect, err := h.redirects.Update(r.Context(), existing.ID, req.input())
	if err != nil {
		writeServiceError(w, err, "redirect", "Failed to update redirect")
		return
	}
	WriteSuccess(w, redirectToResponse(redirect), nil)
}

// DeleteRedirect handles DELETE /api/v1/redirects/{id}.
func (h *Handler) DeleteRedirect(w http.ResponseWriter, r *http.Request) {
	redirect, ok := requireEntityByID(w, r, "redirect", func(id int64) (store.Redirect, error) {
		return h.redirects.Get(r.Context(), id)
	})
	if !ok {
		return
	}

	if err := h.redirects.Delete(r.Context(), redirect.ID); err != nil {
		writeServiceError(w, err, "redirect", "Failed to delete redirect")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRedirect handles POST /api/v1/redirects/{id}/toggle.
func (h *Handler) ToggleRedirect(w http.ResponseWriter, r *http.Request) {
	redirect, ok := requireEntityByID(w, r, "redirect", func(id int64) (store.Redirect, error) {
		return h.redirects.Get(r.Context(), id)
	})
	if !ok {
		return
	}

	toggled, err := h.redirects.Toggle(r.Context(), redirect.ID)
	if err != nil {
		writeServiceError(w, err, "redirect", "Failed to toggle redirect")
		return
	}
	WriteSuccess(w, redirectToResponse(toggled), nil)
}

// ImportRedirects handles POST /api/v1/redirects/import with a multipart
// csv_file and an optional site_id. The whole file is applied or nothing.
func (h *Handler) ImportRedirects(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("File exceeds %d bytes", h.maxUploadSize), nil)
			return
		}
		WriteBadRequest(w, "Expected a multipart form with a csv_file field", nil)
		return
	}

	site, ok := h.siteFromValue(w, r, r.FormValue("site_id"))
	if !ok {
		return
	}

	file, _, err := r.FormFile("csv_file")
	if err != nil {
		WriteBadRequest(w, "Missing csv_file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.redirects.ImportCSV(r.Context(), site.ID, file)
	if err != nil {
		writeServiceError(w, err, "redirect", "Failed to import redirects")
		return
	}
	WriteSuccess(w, result, nil)
}

// ExportRedirects handles GET /api/v1/redirects/export?site=ID and returns
// the CSV file of one site.
func (h *Handler) ExportRedirects(w http.ResponseWriter, r *http.Request) {
	site, ok := h.siteFromValue(w, r, r.URL.Query().Get("site"))
	if !ok {
		return
	}

	var buf bytes.Buffer
	if _, err := h.redirects.ExportCSV(r.Context(), site.ID, &buf); err != nil {
		writeServiceError(w, err, "redirect", "Failed to export redirects")
		return
	}

	filename, err := util.SanitizeFilename("redirects-" + site.Domain + ".csv")
	if err != nil {
		filename = "redirects.csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = buf.WriteTo(w)
}

// siteFromValue resolves a site ID form or query value; empty means the
// default site.
func (h *Handler) siteFromValue(w http.ResponseWriter, r *http.Request, value string) (store.Site, bool) {
	var (
		site store.Site
		err  error
	)
	if value == "" {
		site, err = h.sites.Default(r.Context())
	} else {
		id, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil || id <= 0 {
			WriteBadRequest(w, "Invalid site ID", nil)
			return store.Site{}, false
		}
		site, err = h.sites.Get(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, err, "site", "Failed to load site")
		return store.Site{}, false
	}
	return site, true
}
