// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-redirects/internal/cache"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/transfer"
)

func TestRedirectService_CreateUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	svc := env.Redirects

	r, err := svc.Create(env.Ctx, RedirectInput{
		SiteID:  env.Site.ID,
		OldPath: " /old/ ",
		NewPath: "/new/",
		Active:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/old/", r.OldPath)
	assert.Equal(t, int64(301), r.ResponseCode)

	updated, err := svc.Update(env.Ctx, r.ID, RedirectInput{
		SiteID:       env.Site.ID,
		OldPath:      "/old/",
		NewPath:      "/newer/",
		ResponseCode: 302,
		Active:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/newer/", updated.NewPath)
	assert.Equal(t, int64(302), updated.ResponseCode)

	toggled, err := svc.Toggle(env.Ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	require.NoError(t, svc.Delete(env.Ctx, r.ID))
	_, err = svc.Get(env.Ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{
		model.EventRedirectCreated,
		model.EventRedirectUpdated,
		model.EventRedirectToggled,
		model.EventRedirectDeleted,
	}, env.Publisher.types())

	events, err := env.Events.List(env.Ctx, model.EventCategoryRedirect, 10, 0)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestRedirectService_CreateInvalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Redirects.Create(env.Ctx, RedirectInput{SiteID: env.Site.ID, OldPath: "/", NewPath: "/b/"})
	errs, ok := AsValidationErrors(err)
	require.True(t, ok, "want ValidationErrors, got %v", err)
	assert.Equal(t, MsgHomepage, errs[FieldOldPath])
	assert.Empty(t, env.Publisher.types())
}

func TestRedirectService_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Redirects.Update(env.Ctx, 404, RedirectInput{SiteID: env.Site.ID, OldPath: "/a/"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.Redirects.Delete(env.Ctx, 404), ErrNotFound)
	_, err = env.Redirects.Toggle(env.Ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedirectService_List(t *testing.T) {
	env := newTestEnv(t)
	for _, p := range []string{"/one/", "/two/", "/three/"} {
		_, err := env.Redirects.Create(env.Ctx, RedirectInput{SiteID: env.Site.ID, OldPath: p, NewPath: "https://example.org" + p})
		require.NoError(t, err)
	}

	items, total, err := env.Redirects.List(env.Ctx, ListFilter{SiteID: env.Site.ID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)

	items, total, err = env.Redirects.List(env.Ctx, ListFilter{Search: "tw"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "/two/", items[0].OldPath)
}

func TestRedirectService_WritesInvalidateCache(t *testing.T) {
	env := newTestEnv(t)

	calls := 0
	miss := func() (*cache.RedirectEntry, error) {
		calls++
		return &cache.RedirectEntry{}, nil
	}
	_, err := env.Cache.Lookup(env.Ctx, env.Site.ID, "/old/", miss)
	require.NoError(t, err)

	_, err = env.Redirects.Create(env.Ctx, RedirectInput{SiteID: env.Site.ID, OldPath: "/old/", NewPath: "/new/", Active: true})
	require.NoError(t, err)

	_, err = env.Cache.Lookup(env.Ctx, env.Site.ID, "/old/", miss)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "negative entry should be dropped after a write")
}

func TestRedirectService_ImportCSV(t *testing.T) {
	env := newTestEnv(t)

	input := "Old Url,New Url,Response Code\n/a/,/b/,301\n/c/,/d/,302\n"
	result, err := env.Redirects.ImportCSV(env.Ctx, env.Site.ID, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	assert.Equal(t, []string{model.EventRedirectsImported}, env.Publisher.types())

	var buf bytes.Buffer
	n, err := env.Redirects.ExportCSV(env.Ctx, env.Site.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, input, buf.String())
}

func TestRedirectService_ImportCSVError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Redirects.ImportCSV(env.Ctx, env.Site.ID, strings.NewReader("bad header\n"))
	var importErr *transfer.ImportError
	require.True(t, errors.As(err, &importErr))

	events, err := env.Events.List(env.Ctx, model.EventCategoryImport, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventLevelWarning, events[0].Level)
	assert.Empty(t, env.Publisher.types())
}

func TestRedirectEventData(t *testing.T) {
	r := store.Redirect{ID: 3, SiteID: 1, OldPath: "/a/", ResponseCode: 301, Active: true}
	r.PageID.Int64, r.PageID.Valid = 7, true

	data := RedirectEventData(r)
	require.NotNil(t, data.PageID)
	assert.Equal(t, int64(7), *data.PageID)
	assert.Equal(t, "/a/", data.OldPath)
}
