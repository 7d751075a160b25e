// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/testutil"
)

func TestRenderBody(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    []string
		notWant []string
	}{
		{
			name:   "markdown",
			source: "# Title\n\nSome *text* and a [link](/about/).",
			want:   []string{"<h1>Title</h1>", "<em>text</em>", `href="/about/"`},
		},
		{
			name:    "script stripped",
			source:  "<p>hello</p><script>alert(1)</script>",
			want:    []string{"<p>hello</p>"},
			notWant: []string{"<script", "alert(1)"},
		},
		{
			name:    "event handler stripped",
			source:  `<a href="/x/" onclick="steal()">x</a>`,
			notWant: []string{"onclick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderBody(tt.source)
			if err != nil {
				t.Fatalf("RenderBody: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(got), w) {
					t.Errorf("output missing %q: %s", w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(string(got), w) {
					t.Errorf("output contains %q: %s", w, got)
				}
			}
		})
	}
}

func TestFrontendPage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Pages.Create(context.Background(), service.PageInput{
		SiteID: env.Site.ID,
		Title:  "About",
		Path:   "/about/",
		Body:   "We **build** things.",
		Status: model.PageStatusPublished,
	})
	if err != nil {
		t.Fatalf("Create page: %v", err)
	}
	h := NewFrontendHandler(env.Renderer, env.Pages, env.Sites)

	req := httptest.NewRequest(http.MethodGet, "http://"+testutil.TestSiteDomain+"/about/", nil)
	w := env.serve(h.Page, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<h1>About</h1>") || !strings.Contains(body, "<strong>build</strong>") {
		t.Errorf("page not rendered: %s", body)
	}
}

func TestFrontendPage_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Pages.Create(context.Background(), service.PageInput{
		SiteID: env.Site.ID,
		Title:  "Draft",
		Path:   "/draft/",
		Status: model.PageStatusDraft,
	})
	if err != nil {
		t.Fatalf("Create page: %v", err)
	}
	h := NewFrontendHandler(env.Renderer, env.Pages, env.Sites)

	for _, path := range []string{"/missing/", "/draft/"} {
		w := httptest.NewRecorder()
		h.Page(w, httptest.NewRequest(http.MethodGet, "http://"+testutil.TestSiteDomain+path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
	}
}

func TestFrontendPage_Methods(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Pages.Create(context.Background(), service.PageInput{
		SiteID: env.Site.ID,
		Title:  "About",
		Path:   "/about/",
		Status: model.PageStatusPublished,
	})
	if err != nil {
		t.Fatalf("Create page: %v", err)
	}
	h := NewFrontendHandler(env.Renderer, env.Pages, env.Sites)

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodHead, http.StatusOK},
		{http.MethodPost, http.StatusNotFound},
		{http.MethodDelete, http.StatusNotFound},
	}
	for _, tt := range tests {
		w := env.serve(h.Page, httptest.NewRequest(tt.method, "http://"+testutil.TestSiteDomain+"/about/", nil))
		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.method, w.Code, tt.want)
		}
	}
}
