// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/testutil"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		uri         string
		appendSlash bool
		want        []string
	}{
		{"/a/", false, []string{"/a/"}},
		{"/a/", true, []string{"/a/", "/a"}},
		{"/a", true, []string{"/a"}},
		{"/a/?x=1", false, []string{"/a/?x=1", "/a/"}},
		{"/a/?x=1", true, []string{"/a/?x=1", "/a?x=1", "/a/", "/a"}},
		{"/a?x=1", true, []string{"/a?x=1", "/a"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Candidates(tt.uri, tt.appendSlash), "Candidates(%q, %v)", tt.uri, tt.appendSlash)
	}
}

func TestResolver_Resolve(t *testing.T) {
	env := newTestEnv(t)
	page := testutil.CreateTestPage(t, env.DB, env.Site.ID, "/about/")

	testutil.CreateTestRedirect(t, env.DB, env.Site.ID, "/perm", "/new/", 301)
	testutil.CreateTestRedirect(t, env.DB, env.Site.ID, "/temp/", "https://example.org/", 302)
	testutil.CreateTestRedirect(t, env.DB, env.Site.ID, "/gone/", "", 301)
	testutil.CreateTestRedirect(t, env.DB, env.Site.ID, "/search/?q=old", "/search/?q=new", 301)
	_, err := env.Queries.CreateRedirect(env.Ctx, store.CreateRedirectParams{
		SiteID:       env.Site.ID,
		OldPath:      "/team/",
		PageID:       nullInt64(page.ID),
		ResponseCode: 302,
		Active:       true,
	})
	require.NoError(t, err)

	m := metrics.New()
	hits := NewHitCounter(env.DB)
	resolver := NewResolver(env.DB, ResolverConfig{
		AppendSlash: true,
		Cache:       env.Cache,
		Hits:        hits,
		Metrics:     m,
		Logger:      testutil.TestLoggerSilent(),
	})

	tests := []struct {
		uri      string
		location string
		status   int
	}{
		{"/perm", "/new/", 301},
		{"/perm/", "/new/", 301},
		{"/perm/?utm=x", "/new/", 301},
		{"/temp/", "https://example.org/", 302},
		{"/temp/?a=b", "https://example.org/", 302},
		{"/gone/", "", 410},
		{"/team/", "/about/", 302},
		{"/search/?q=old", "/search/?q=new", 301},
	}
	for _, tt := range tests {
		target, err := resolver.Resolve(env.Ctx, env.Site.ID, tt.uri)
		require.NoError(t, err, tt.uri)
		require.NotNil(t, target, tt.uri)
		assert.Equal(t, tt.location, target.Location, tt.uri)
		assert.Equal(t, tt.status, target.Status, tt.uri)
	}

	target, err := resolver.Resolve(env.Ctx, env.Site.ID, "/nothing/")
	require.NoError(t, err)
	assert.Nil(t, target)

	assert.Equal(t, int64(len(tests)), hits.Pending())
}

func TestResolver_InactiveAndOtherSite(t *testing.T) {
	env := newTestEnv(t)
	other := testutil.CreateTestSite(t, env.DB, "other.example.com")
	r := testutil.CreateTestRedirect(t, env.DB, env.Site.ID, "/a/", "/b/", 301)
	testutil.CreateTestRedirect(t, env.DB, other.ID, "/x/", "/y/", 301)

	resolver := NewResolver(env.DB, ResolverConfig{})

	target, err := resolver.Resolve(env.Ctx, env.Site.ID, "/x/")
	require.NoError(t, err)
	assert.Nil(t, target)

	_, err = env.Redirects.Toggle(env.Ctx, r.ID)
	require.NoError(t, err)
	target, err = resolver.Resolve(env.Ctx, env.Site.ID, "/a/")
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestResolver_NoAppendSlash(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestRedirect(t, env.DB, env.Site.ID, "/a", "/b/", 301)

	resolver := NewResolver(env.DB, ResolverConfig{AppendSlash: false})
	target, err := resolver.Resolve(env.Ctx, env.Site.ID, "/a/")
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestTargetFor(t *testing.T) {
	row := store.GetActiveRedirectTargetRow{ID: 1, NewPath: "", ResponseCode: 302}
	assert.Equal(t, 410, TargetFor(row).Status)

	row.PagePath.String, row.PagePath.Valid = "/p/", true
	got := TargetFor(row)
	assert.Equal(t, "/p/", got.Location)
	assert.Equal(t, 302, got.Status)
}
