// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-redirects/internal/model"
)

func TestPageService_CRUD(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPageService(env.DB, env.Cache, env.Events, env.Publisher, nil)

	p, err := svc.Create(env.Ctx, PageInput{SiteID: env.Site.ID, Title: "About", Path: "/about/", Status: model.PageStatusPublished})
	require.NoError(t, err)

	got, err := svc.GetPublished(env.Ctx, env.Site.ID, "/about/")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Create(env.Ctx, PageInput{SiteID: env.Site.ID, Title: "Dup", Path: "/about/"})
	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs["path"], "already exists")

	updated, err := svc.Update(env.Ctx, p.ID, PageInput{Title: "Company", Path: "/company/", Status: model.PageStatusDraft})
	require.NoError(t, err)
	assert.Equal(t, "/company/", updated.Path)
	assert.Equal(t, env.Site.ID, updated.SiteID)

	_, err = svc.GetPublished(env.Ctx, env.Site.ID, "/company/")
	assert.ErrorIs(t, err, ErrNotFound, "drafts are not published")

	require.NoError(t, svc.Delete(env.Ctx, p.ID))
	_, err = svc.Get(env.Ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{model.EventPageCreated, model.EventPageUpdated, model.EventPageDeleted}, env.Publisher.types())
}

func TestPageService_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPageService(env.DB, nil, nil, nil, nil)

	_, err := svc.Create(env.Ctx, PageInput{SiteID: env.Site.ID, Path: "about", Status: "hidden"})
	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, MsgRequired, errs["title"])
	assert.NotEmpty(t, errs["path"])
	assert.NotEmpty(t, errs["status"])
}

func TestPageService_DeleteTurnsRedirectIntoGone(t *testing.T) {
	env := newTestEnv(t)
	pages := NewPageService(env.DB, env.Cache, nil, nil, nil)
	resolver := NewResolver(env.DB, ResolverConfig{Cache: env.Cache})

	p, err := pages.Create(env.Ctx, PageInput{SiteID: env.Site.ID, Title: "About", Path: "/about/", Status: model.PageStatusPublished})
	require.NoError(t, err)
	_, err = env.Redirects.Create(env.Ctx, RedirectInput{SiteID: env.Site.ID, OldPath: "/team/", PageID: int64Ptr(p.ID), Active: true})
	require.NoError(t, err)

	target, err := resolver.Resolve(env.Ctx, env.Site.ID, "/team/")
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "/about/", target.Location)

	require.NoError(t, pages.Delete(env.Ctx, p.ID))

	target, err = resolver.Resolve(env.Ctx, env.Site.ID, "/team/")
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.True(t, target.IsGone())
}

func TestPageService_PathFromTitle(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPageService(env.DB, nil, nil, nil, nil)

	p, err := svc.Create(env.Ctx, PageInput{SiteID: env.Site.ID, Title: "Über Uns & Team"})
	require.NoError(t, err)
	assert.Equal(t, "/uber-uns-team/", p.Path)
}
