// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/render"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/transfer"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// Import feedback
const (
	msgImportProcessed = "The file has been successfully processed."
	msgImportNoFile    = "Please choose a CSV file to upload."
)

// RedirectsHandler handles redirect management routes.
type RedirectsHandler struct {
	renderer      *render.Renderer
	redirects     *service.RedirectService
	sites         *service.SiteService
	pages         *service.PageService
	maxUploadSize int64
}

// NewRedirectsHandler creates a new RedirectsHandler. maxUploadSize bounds
// CSV uploads in bytes.
func NewRedirectsHandler(renderer *render.Renderer, redirects *service.RedirectService, sites *service.SiteService, pages *service.PageService, maxUploadSize int64) *RedirectsHandler {
	return &RedirectsHandler{
		renderer:      renderer,
		redirects:     redirects,
		sites:         sites,
		pages:         pages,
		maxUploadSize: maxUploadSize,
	}
}

func (h *RedirectsHandler) listURL() string {
	return h.renderer.AdminPrefix() + RouteRedirects
}

func (h *RedirectsHandler) itemURL(id int64) string {
	return h.listURL() + "/" + strconv.FormatInt(id, 10)
}

// RedirectRow is one line of the redirects list.
type RedirectRow struct {
	store.Redirect
	Destination string
	SiteDomain  string
}

// RedirectsListData holds data for the redirects list template.
type RedirectsListData struct {
	Rows       []RedirectRow
	Sites      []store.Site
	SiteID     int64
	Search     string
	Pagination render.Pagination
}

// List handles GET /admin/redirects.
func (h *RedirectsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	siteID := render.ParseQueryInt64(r, "site")
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	page := render.ParsePageParam(r)

	items, total, err := h.redirects.List(ctx, service.ListFilter{
		SiteID: siteID,
		Search: search,
		Limit:  redirectsPerPage,
		Offset: int64((page - 1) * redirectsPerPage),
	})
	if err != nil {
		logAndInternalError(w, "failed to list redirects", "error", err)
		return
	}

	sites, err := h.sites.List(ctx)
	if err != nil {
		logAndInternalError(w, "failed to list sites", "error", err)
		return
	}
	domains := make(map[int64]string, len(sites))
	for _, s := range sites {
		domains[s.ID] = s.Domain
	}

	pagePaths := map[int64]string{}
	rows := make([]RedirectRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, RedirectRow{
			Redirect:    item,
			Destination: h.destination(ctx, item, pagePaths),
			SiteDomain:  domains[item.SiteID],
		})
	}

	renderOrError(w, r, h.renderer, http.StatusOK, templateRedirectsList, render.TemplateData{
		Title: "Redirects",
		User:  middleware.GetUser(r),
		Data: RedirectsListData{
			Rows:       rows,
			Sites:      sites,
			SiteID:     siteID,
			Search:     search,
			Pagination: render.BuildPagination(page, total, redirectsPerPage, h.listURL(), r.URL.Query()),
		},
	})
}

// destination describes where r sends visitors. pagePaths caches page
// lookups for one request.
func (h *RedirectsHandler) destination(ctx context.Context, r store.Redirect, pagePaths map[int64]string) string {
	if r.NewPath != "" {
		return r.NewPath
	}
	if !r.PageID.Valid {
		return ""
	}
	if p, ok := pagePaths[r.PageID.Int64]; ok {
		return p
	}
	path := ""
	if page, err := h.pages.Get(ctx, r.PageID.Int64); err == nil {
		path = page.Path
	}
	pagePaths[r.PageID.Int64] = path
	return path
}

// RedirectFormData holds data for the redirect form template.
type RedirectFormData struct {
	Redirect *store.Redirect
	Input    service.RedirectInput
	Sites    []store.Site
	Pages    []store.Page
	Action   string
}

// NewForm handles GET /admin/redirects/new.
func (h *RedirectsHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	siteID := render.ParseQueryInt64(r, "site")
	if siteID == 0 {
		if site, err := h.sites.Default(r.Context()); err == nil {
			siteID = site.ID
		}
	}

	h.renderForm(w, r, http.StatusOK, nil, service.RedirectInput{
		SiteID:       siteID,
		ResponseCode: model.ResponseCodePermanent,
		Active:       true,
	}, nil)
}

// Create handles POST /admin/redirects.
func (h *RedirectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, h.listURL()+RouteSuffixNew) {
		return
	}

	input := parseRedirectForm(r)
	redirect, err := h.redirects.Create(r.Context(), input)
	if errs, ok := service.AsValidationErrors(err); ok {
		h.renderForm(w, r, http.StatusUnprocessableEntity, nil, input, errs)
		return
	}
	if err != nil {
		logAndInternalError(w, "failed to create redirect", "error", err)
		return
	}

	slog.Info("redirect created", "redirect_id", redirect.ID, "old_path", redirect.OldPath)
	flashSuccess(w, r, h.renderer, h.listURL(), fmt.Sprintf("Redirect from %s created", redirect.OldPath))
}

// EditForm handles GET /admin/redirects/{id}.
func (h *RedirectsHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	redirect, ok := h.requireRedirect(w, r)
	if !ok {
		return
	}

	h.renderForm(w, r, http.StatusOK, &redirect, service.RedirectInput{
		SiteID:       redirect.SiteID,
		OldPath:      redirect.OldPath,
		NewPath:      redirect.NewPath,
		PageID:       util.PtrFromNullInt64(redirect.PageID),
		ResponseCode: redirect.ResponseCode,
		Active:       redirect.Active,
	}, nil)
}

// Update handles POST /admin/redirects/{id}.
func (h *RedirectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	redirect, ok := h.requireRedirect(w, r)
	if !ok {
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, h.itemURL(redirect.ID)) {
		return
	}

	input := parseRedirectForm(r)
	updated, err := h.redirects.Update(r.Context(), redirect.ID, input)
	if errs, ok := service.AsValidationErrors(err); ok {
		h.renderForm(w, r, http.StatusUnprocessableEntity, &redirect, input, errs)
		return
	}
	if err != nil {
		logAndInternalError(w, "failed to update redirect", "error", err, "redirect_id", redirect.ID)
		return
	}

	slog.Info("redirect updated", "redirect_id", updated.ID, "old_path", updated.OldPath)
	flashSuccess(w, r, h.renderer, h.listURL(), fmt.Sprintf("Redirect from %s updated", updated.OldPath))
}

// Delete handles POST /admin/redirects/{id}/delete.
func (h *RedirectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	redirect, ok := h.requireRedirect(w, r)
	if !ok {
		return
	}

	if err := h.redirects.Delete(r.Context(), redirect.ID); err != nil {
		slog.Error("failed to delete redirect", "error", err, "redirect_id", redirect.ID)
		flashError(w, r, h.renderer, h.listURL(), "Error deleting redirect")
		return
	}

	slog.Info("redirect deleted", "redirect_id", redirect.ID, "old_path", redirect.OldPath)
	flashSuccess(w, r, h.renderer, h.listURL(), fmt.Sprintf("Redirect from %s deleted", redirect.OldPath))
}

// Toggle handles POST /admin/redirects/{id}/toggle.
func (h *RedirectsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	redirect, ok := h.requireRedirect(w, r)
	if !ok {
		return
	}

	toggled, err := h.redirects.Toggle(r.Context(), redirect.ID)
	if err != nil {
		slog.Error("failed to toggle redirect", "error", err, "redirect_id", redirect.ID)
		flashError(w, r, h.renderer, h.listURL(), "Error updating redirect")
		return
	}

	state := "deactivated"
	if toggled.Active {
		state = "activated"
	}
	flashSuccess(w, r, h.renderer, h.listURL(), fmt.Sprintf("Redirect from %s %s", toggled.OldPath, state))
}

// ImportData holds data for the CSV upload template.
type ImportData struct {
	Sites         []store.Site
	SiteID        int64
	Feedback      string
	FileHasErrors bool
	Result        *transfer.ImportResult
}

// ImportForm handles GET /admin/redirects/import.
func (h *RedirectsHandler) ImportForm(w http.ResponseWriter, r *http.Request) {
	h.renderImport(w, r, http.StatusOK, ImportData{SiteID: render.ParseQueryInt64(r, "site")}, nil)
}

// Import handles POST /admin/redirects/import. The page is shown again with
// feedback about the file.
func (h *RedirectsHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(maxImportMemory); err != nil {
		var maxErr *http.MaxBytesError
		msg := msgImportNoFile
		if errors.As(err, &maxErr) {
			msg = fmt.Sprintf("The file is larger than %d bytes.", h.maxUploadSize)
		}
		h.renderImport(w, r, http.StatusBadRequest, ImportData{}, map[string]string{"csv_file": msg})
		return
	}

	data := ImportData{SiteID: util.ParseNullInt64Positive(r.FormValue("site_id")).Int64}
	site, err := h.siteOrDefault(r.Context(), data.SiteID)
	if err != nil {
		h.renderImport(w, r, http.StatusUnprocessableEntity, data, map[string]string{service.FieldSiteID: service.MsgInvalidSite})
		return
	}
	data.SiteID = site.ID

	file, header, err := r.FormFile("csv_file")
	if err != nil {
		h.renderImport(w, r, http.StatusUnprocessableEntity, data, map[string]string{"csv_file": msgImportNoFile})
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.redirects.ImportCSV(r.Context(), site.ID, file)
	var importErr *transfer.ImportError
	switch {
	case errors.As(err, &importErr):
		data.Feedback = importErr.Message
		data.FileHasErrors = true
		h.renderImport(w, r, http.StatusUnprocessableEntity, data, nil)
		return
	case err != nil:
		logAndInternalError(w, "failed to import redirects", "error", err, "filename", header.Filename)
		return
	}

	slog.Info("redirects imported", "site_id", site.ID, "filename", header.Filename,
		"created", result.Created, "updated", result.Updated)
	data.Feedback = msgImportProcessed
	data.Result = result
	h.renderImport(w, r, http.StatusOK, data, nil)
}

// Export handles GET /admin/redirects/export and downloads the redirects of
// one site as CSV.
func (h *RedirectsHandler) Export(w http.ResponseWriter, r *http.Request) {
	site, err := h.siteOrDefault(r.Context(), render.ParseQueryInt64(r, "site"))
	if err != nil {
		flashError(w, r, h.renderer, h.listURL(), "Site not found")
		return
	}

	// Buffer so a failed query still produces a proper error page.
	var buf bytes.Buffer
	if _, err := h.redirects.ExportCSV(r.Context(), site.ID, &buf); err != nil {
		logAndInternalError(w, "failed to export redirects", "error", err, "site_id", site.ID)
		return
	}

	filename, err := util.SanitizeFilename(fmt.Sprintf("redirects-%s-%s.csv", site.Domain, time.Now().UTC().Format("20060102")))
	if err != nil {
		filename = "redirects.csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = buf.WriteTo(w)
}

func (h *RedirectsHandler) siteOrDefault(ctx context.Context, siteID int64) (store.Site, error) {
	if siteID > 0 {
		return h.sites.Get(ctx, siteID)
	}
	return h.sites.Default(ctx)
}

func (h *RedirectsHandler) requireRedirect(w http.ResponseWriter, r *http.Request) (store.Redirect, bool) {
	id, err := ParseIDParam(r)
	if err != nil {
		flashError(w, r, h.renderer, h.listURL(), "Invalid redirect ID")
		return store.Redirect{}, false
	}
	return requireEntityWithRedirect(w, r, h.renderer, h.listURL(), "Redirect", id,
		func(id int64) (store.Redirect, error) { return h.redirects.Get(r.Context(), id) })
}

func (h *RedirectsHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, redirect *store.Redirect, input service.RedirectInput, errs service.ValidationErrors) {
	ctx := r.Context()

	sites, err := h.sites.List(ctx)
	if err != nil {
		logAndInternalError(w, "failed to list sites", "error", err)
		return
	}
	pages, err := h.pages.ListBySite(ctx, input.SiteID)
	if err != nil {
		logAndInternalError(w, "failed to list pages", "error", err)
		return
	}

	title := "Add redirect"
	action := h.listURL()
	if redirect != nil {
		title = "Change redirect"
		action = h.itemURL(redirect.ID)
	}

	renderOrError(w, r, h.renderer, status, templateRedirectForm, render.TemplateData{
		Title:  title,
		User:   middleware.GetUser(r),
		Errors: errs,
		Data: RedirectFormData{
			Redirect: redirect,
			Input:    input,
			Sites:    sites,
			Pages:    pages,
			Action:   action,
		},
	})
}

func (h *RedirectsHandler) renderImport(w http.ResponseWriter, r *http.Request, status int, data ImportData, errs map[string]string) {
	sites, err := h.sites.List(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list sites", "error", err)
		return
	}
	data.Sites = sites
	if data.SiteID == 0 {
		if site, err := h.sites.Default(r.Context()); err == nil {
			data.SiteID = site.ID
		}
	}

	renderOrError(w, r, h.renderer, status, templateImport, render.TemplateData{
		Title:  "Upload a redirects CSV",
		User:   middleware.GetUser(r),
		Errors: errs,
		Data:   data,
	})
}

// parseRedirectForm reads a redirect from a submitted admin form.
func parseRedirectForm(r *http.Request) service.RedirectInput {
	code, _ := strconv.ParseInt(r.FormValue(service.FieldResponseCode), 10, 64)
	return service.RedirectInput{
		SiteID:       util.ParseNullInt64Positive(r.FormValue(service.FieldSiteID)).Int64,
		OldPath:      r.FormValue(service.FieldOldPath),
		NewPath:      r.FormValue(service.FieldNewPath),
		PageID:       util.PtrFromNullInt64(util.ParseNullInt64Positive(r.FormValue(service.FieldPageID))),
		ResponseCode: code,
		Active:       r.FormValue("active") != "",
	}
}
