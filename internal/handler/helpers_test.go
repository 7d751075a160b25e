// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-redirects/internal/auth"
	"github.com/olegiv/ocms-redirects/internal/render"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/testutil"
	"github.com/olegiv/ocms-redirects/web"
)

const testAdminPrefix = "/admin/"

// testEnv wires the HTML handlers to a migrated database and the real
// embedded templates.
type testEnv struct {
	DB        *sql.DB
	Queries   *store.Queries
	Site      store.Site
	Sessions  *scs.SessionManager
	Renderer  *render.Renderer
	Events    *service.EventService
	Sites     *service.SiteService
	Pages     *service.PageService
	Redirects *service.RedirectService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	templates, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}

	sm := scs.New()
	renderer, err := render.New(render.Config{
		TemplatesFS:    templates,
		SessionManager: sm,
		AdminPrefix:    testAdminPrefix,
		IsDev:          true,
	})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	events := service.NewEventService(db, testutil.TestLoggerSilent())
	return &testEnv{
		DB:       db,
		Queries:  store.New(db),
		Site:     testutil.TestSite(t, db),
		Sessions: sm,
		Renderer: renderer,
		Events:   events,
		Sites:    service.NewSiteService(db, events),
		Pages:    service.NewPageService(db, nil, events, nil, testutil.TestLoggerSilent()),
		Redirects: service.NewRedirectService(db, service.RedirectServiceConfig{
			AdminPrefix: testAdminPrefix,
			Events:      events,
			Logger:      testutil.TestLoggerSilent(),
		}),
	}
}

func (e *testEnv) redirectsHandler() *RedirectsHandler {
	return NewRedirectsHandler(e.Renderer, e.Redirects, e.Sites, e.Pages, 1<<20)
}

// serve runs h inside a loaded session.
func (e *testEnv) serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.Sessions.LoadAndSave(h).ServeHTTP(w, req)
	return w
}

// createUser adds a user with a hashed password.
func (e *testEnv) createUser(t *testing.T, email, password, role string) store.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now().UTC()
	user, err := e.Queries.CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Name:         "Test User",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// withURLParam adds a chi URL parameter to req.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
