// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/olegiv/ocms-redirects/internal/middleware"
	"github.com/olegiv/ocms-redirects/internal/render"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/util"
)

var (
	// markdown keeps raw HTML so htmlSanitizer decides what survives.
	markdown = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
	// htmlSanitizer allows the tags of user-generated content and strips scripts.
	htmlSanitizer = bluemonday.UGCPolicy()
)

// FrontendHandler serves published pages. Anything else is a plain 404,
// which the redirect fallback may replace.
type FrontendHandler struct {
	renderer *render.Renderer
	pages    *service.PageService
	sites    *service.SiteService
}

// NewFrontendHandler creates a new FrontendHandler.
func NewFrontendHandler(renderer *render.Renderer, pages *service.PageService, sites *service.SiteService) *FrontendHandler {
	return &FrontendHandler{renderer: renderer, pages: pages, sites: sites}
}

// PageView is a page ready for the public template.
type PageView struct {
	Title string
	Body  template.HTML
}

// Page handles every method on /*. Only GET and HEAD can find a page; other
// methods get the same 404 so the redirect fallback sees them too.
func (h *FrontendHandler) Page(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	site := middleware.GetSite(r)
	if site == nil {
		s, err := h.sites.ResolveByHost(ctx, util.RequestHost(r))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		site = &s
	}

	page, err := h.pages.GetPublished(ctx, site.ID, r.URL.Path)
	if errors.Is(err, service.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logAndInternalError(w, "failed to load page", "error", err, "path", r.URL.Path)
		return
	}

	body, err := RenderBody(page.Body)
	if err != nil {
		slog.Error("failed to render page body", "error", err, "page_id", page.ID)
	}

	renderOrError(w, r, h.renderer, http.StatusOK, templatePage, render.TemplateData{
		Title: page.Title,
		Data:  PageView{Title: page.Title, Body: body},
	})
}

// RenderBody converts a Markdown page body to sanitized HTML. Inline HTML
// in the source passes through the sanitizer.
func RenderBody(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return template.HTML(htmlSanitizer.Sanitize(source)), err
	}
	return template.HTML(htmlSanitizer.SanitizeBytes(buf.Bytes())), nil
}
