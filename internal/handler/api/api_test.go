// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/testutil"
	"github.com/olegiv/ocms-redirects/internal/version"
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	keys   *service.APIKeyService
	site   store.Site
	token  string
}

func newTestAPI(t *testing.T, perms ...string) *testAPI {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	site := testutil.TestSite(t, db)

	events := service.NewEventService(db, testutil.TestLoggerSilent())
	h := NewHandler(Config{
		Redirects: service.NewRedirectService(db, service.RedirectServiceConfig{
			AdminPrefix: "/admin/",
			Events:      events,
			Logger:      testutil.TestLoggerSilent(),
		}),
		Pages:    service.NewPageService(db, nil, events, nil, testutil.TestLoggerSilent()),
		Sites:    service.NewSiteService(db, events),
		Webhooks: service.NewWebhookService(db, true),
		Events:   events,
		Version:  version.Info{Version: "v0.9.0"},
	})

	keys := service.NewAPIKeyService(db)
	if len(perms) == 0 {
		perms = model.AllPermissions()
	}
	raw, _, err := keys.Create(context.Background(), "test", perms, time.Hour)
	require.NoError(t, err)

	srv := httptest.NewServer(h.Routes(keys, RateLimit{RPS: 1000, Burst: 1000}))
	t.Cleanup(srv.Close)

	return &testAPI{t: t, server: srv, keys: keys, site: site, token: raw}
}

func (a *testAPI) do(method, path string, body io.Reader, contentType string) *http.Response {
	a.t.Helper()

	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(a.t, err)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (a *testAPI) doJSON(method, path string, payload any) *http.Response {
	a.t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(a.t, err)
		body = bytes.NewReader(data)
	}
	return a.do(method, path, body, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type redirectEnvelope struct {
	Data RedirectResponse `json:"data"`
}

func TestStatus_Public(t *testing.T) {
	a := newTestAPI(t)
	a.token = ""

	resp := a.do(http.MethodGet, "/status", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[struct {
		Data StatusResponse `json:"data"`
	}](t, resp)
	assert.Equal(t, "ok", out.Data.Status)
	assert.Equal(t, "v0.9.0", out.Data.Version)
}

func TestAuth_Required(t *testing.T) {
	a := newTestAPI(t)
	a.token = ""

	resp := a.do(http.MethodGet, "/redirects", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_PermissionDenied(t *testing.T) {
	a := newTestAPI(t, model.PermissionRedirectsRead)

	resp := a.doJSON(http.MethodPost, "/redirects", RedirectRequest{OldPath: "/a/", NewPath: "/b/"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = a.do(http.MethodGet, "/auth", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[struct {
		Data AuthInfoResponse `json:"data"`
	}](t, resp)
	assert.Equal(t, []string{model.PermissionRedirectsRead}, out.Data.Permissions)
}

func TestRedirects_CRUD(t *testing.T) {
	a := newTestAPI(t)

	// Create on the default site.
	resp := a.doJSON(http.MethodPost, "/redirects", RedirectRequest{OldPath: "/old/", NewPath: "/new/", ResponseCode: 302})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[redirectEnvelope](t, resp).Data
	assert.Equal(t, a.site.ID, created.SiteID)
	assert.Equal(t, int64(302), created.ResponseCode)
	assert.True(t, created.Active)

	path := "/redirects/" + strconv.FormatInt(created.ID, 10)

	resp = a.do(http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/old/", decode[redirectEnvelope](t, resp).Data.OldPath)

	inactive := false
	resp = a.doJSON(http.MethodPut, path, RedirectRequest{OldPath: "/old/", NewPath: "/newer/", Active: &inactive})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[redirectEnvelope](t, resp).Data
	assert.Equal(t, "/newer/", updated.NewPath)
	assert.False(t, updated.Active)

	resp = a.do(http.MethodPost, path+"/toggle", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[redirectEnvelope](t, resp).Data.Active)

	resp = a.do(http.MethodGet, "/redirects?q=old", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data []RedirectResponse `json:"data"`
		Meta Meta               `json:"meta"`
	}](t, resp)
	assert.Len(t, list.Data, 1)
	assert.Equal(t, int64(1), list.Meta.Total)

	resp = a.do(http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.do(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRedirects_ValidationError(t *testing.T) {
	a := newTestAPI(t)

	resp := a.doJSON(http.MethodPost, "/redirects", RedirectRequest{OldPath: "/", NewPath: "/x/"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	out := decode[ErrorResponse](t, resp)
	assert.Equal(t, "validation_error", out.Error.Code)
	assert.Equal(t, service.MsgHomepage, out.Error.Details[service.FieldOldPath])
}

func TestRedirects_InvalidJSON(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodPost, "/redirects", bytes.NewBufferString(`{"old_path":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(http.MethodPost, "/redirects", bytes.NewBufferString(`{"unknown":1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func csvUpload(t *testing.T, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("csv_file", "redirects.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRedirects_ImportExport(t *testing.T) {
	a := newTestAPI(t)

	body, ct := csvUpload(t, "Old Url,New Url,Response Code\n/a/,/b/,301\n/c/,https://example.org/,302\n")
	resp := a.do(http.MethodPost, "/redirects/import", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[struct {
		Data struct {
			Created int `json:"created"`
			Updated int `json:"updated"`
		} `json:"data"`
	}](t, resp)
	assert.Equal(t, 2, result.Data.Created)

	resp = a.do(http.MethodGet, "/redirects/export", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Old Url,New Url,Response Code\n")
	assert.Contains(t, string(data), "/c/,https://example.org/,302\n")
}

func TestRedirects_ImportError(t *testing.T) {
	a := newTestAPI(t)

	body, ct := csvUpload(t, "Old Url,New Url,Response Code\n,/b/,301\n")
	resp := a.do(http.MethodPost, "/redirects/import", body, ct)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := decode[ErrorResponse](t, resp)
	assert.Equal(t, "Missing URL in row 1.", out.Error.Message)
	assert.Equal(t, "1", out.Error.Details["row"])
}

func TestPages_CRUD(t *testing.T) {
	a := newTestAPI(t)

	resp := a.doJSON(http.MethodPost, "/pages", PageRequest{Title: "Contact Us", Status: model.PageStatusPublished})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	page := decode[struct {
		Data store.Page `json:"data"`
	}](t, resp).Data
	assert.Equal(t, "/contact-us/", page.Path)

	path := "/pages/" + strconv.FormatInt(page.ID, 10)
	resp = a.doJSON(http.MethodPut, path, PageRequest{Title: "Contact", Path: "/contact/", Status: model.PageStatusDraft})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(http.MethodGet, "/pages", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data []store.Page `json:"data"`
	}](t, resp)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "/contact/", list.Data[0].Path)

	resp = a.do(http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSites(t *testing.T) {
	a := newTestAPI(t)

	resp := a.doJSON(http.MethodPost, "/sites", service.SiteInput{Domain: "blog.example.com", Name: "Blog"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(http.MethodGet, "/sites", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[struct {
		Data []store.Site `json:"data"`
	}](t, resp)
	assert.Len(t, out.Data, 2)
}

func TestWebhooks(t *testing.T) {
	a := newTestAPI(t)

	resp := a.doJSON(http.MethodPost, "/webhooks", service.WebhookInput{
		Name:     "ci",
		URL:      "https://hooks.example.com/redirects",
		Events:   []string{model.EventRedirectCreated},
		IsActive: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[struct {
		Data WebhookResponse `json:"data"`
	}](t, resp).Data
	assert.NotEmpty(t, created.Secret)

	resp = a.do(http.MethodGet, "/webhooks", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Data []WebhookResponse `json:"data"`
	}](t, resp)
	require.Len(t, list.Data, 1)
	assert.Empty(t, list.Data[0].Secret)

	resp = a.do(http.MethodDelete, "/webhooks/"+strconv.FormatInt(created.ID, 10), nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEvents(t *testing.T) {
	a := newTestAPI(t)

	resp := a.doJSON(http.MethodPost, "/redirects", RedirectRequest{OldPath: "/old/", NewPath: "/new/"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(http.MethodGet, "/events?category="+model.EventCategoryRedirect, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[struct {
		Data []store.Event `json:"data"`
	}](t, resp)
	assert.NotEmpty(t, out.Data)

	resp = a.do(http.MethodGet, "/events?category=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
