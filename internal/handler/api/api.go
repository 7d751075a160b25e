// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API handlers for redirects, pages, sites,
// webhooks and the event log.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/olegiv/ocms-redirects/internal/handler"
	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/transfer"
	"github.com/olegiv/ocms-redirects/internal/version"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	// maxBodySize bounds JSON request bodies.
	maxBodySize = 1 << 20
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	redirects     *service.RedirectService
	pages         *service.PageService
	sites         *service.SiteService
	webhooks      *service.WebhookService
	events        *service.EventService
	version       version.Info
	maxUploadSize int64
}

// Config holds the services the API exposes.
type Config struct {
	Redirects     *service.RedirectService
	Pages         *service.PageService
	Sites         *service.SiteService
	Webhooks      *service.WebhookService
	Events        *service.EventService
	Version       version.Info
	MaxUploadSize int64
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 << 20
	}
	return &Handler{
		redirects:     cfg.Redirects,
		pages:         cfg.Pages,
		sites:         cfg.Sites,
		webhooks:      cfg.Webhooks,
		events:        cfg.Events,
		version:       cfg.Version,
		maxUploadSize: cfg.MaxUploadSize,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// writeServiceError maps a service error to its API response. logMsg is
// used for unexpected errors only.
func writeServiceError(w http.ResponseWriter, err error, entityName, logMsg string) {
	if errs, ok := service.AsValidationErrors(err); ok {
		WriteValidationError(w, errs)
		return
	}
	var importErr *transfer.ImportError
	switch {
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, capitalizeFirst(entityName)+" not found")
	case errors.As(err, &importErr):
		details := map[string]string{}
		if importErr.Row > 0 {
			details["row"] = strconv.Itoa(importErr.Row)
		}
		WriteBadRequest(w, importErr.Message, details)
	default:
		slog.Error(logMsg, "error", err)
		WriteInternalError(w, logMsg)
	}
}

// decodeJSON reads a JSON request body into dst. Returns false with the
// response written on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body", map[string]string{"body": err.Error()})
		return false
	}
	return true
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	API     string `json:"api"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{
		Status:  "ok",
		Version: h.version.Short(),
		API:     "v1",
	}, nil)
}

// AuthInfoResponse describes the calling API key.
type AuthInfoResponse struct {
	KeyPrefix   string   `json:"key_prefix"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// AuthInfo returns information about the authenticated API key.
func (h *Handler) AuthInfo(w http.ResponseWriter, r *http.Request) {
	apiKey := middleware.GetAPIKey(r)
	if apiKey == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}

	WriteSuccess(w, AuthInfoResponse{
		KeyPrefix:   apiKey.KeyPrefix,
		Name:        apiKey.Name,
		Permissions: model.ParsePermissions(apiKey.Permissions),
	}, nil)
}

// EntityFetcher is a function that fetches an entity by ID.
type EntityFetcher[T any] func(id int64) (T, error)

// requireEntityByID parses an ID from the URL and fetches the entity.
// Returns the entity and true if successful, or zero value and false if error (response written).
func requireEntityByID[T any](w http.ResponseWriter, r *http.Request, entityName string, fetch EntityFetcher[T]) (T, bool) {
	var zero T

	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid "+entityName+" ID", nil)
		return zero, false
	}

	entity, err := fetch(id)
	if err != nil {
		writeServiceError(w, err, entityName, "Failed to retrieve "+entityName)
		return zero, false
	}

	return entity, true
}

// parsePagination reads the page and per_page query parameters.
func parsePagination(r *http.Request) (page, perPage int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err = strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func pageMeta(total int64, page, perPage int) *Meta {
	pages := int(total) / perPage
	if int(total)%perPage != 0 {
		pages++
	}
	return &Meta{Total: total, Page: page, PerPage: perPage, Pages: pages}
}

// capitalizeFirst returns s with the first letter capitalized.
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// parseQueryInt64 returns the positive int64 query parameter name, or 0.
func parseQueryInt64(r *http.Request, name string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
