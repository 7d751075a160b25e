// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/ocms-redirects/internal/cache"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/testutil"
)

type publishedEvent struct {
	Type string
	Data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) DispatchEvent(_ context.Context, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Data: data})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	DB        *sql.DB
	Queries   *store.Queries
	Site      store.Site
	Cache     *cache.RedirectCache
	Publisher *recordingPublisher
	Events    *EventService
	Redirects *RedirectService
	Ctx       context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	rc := cache.NewRedirectCache(cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute}), time.Minute)
	pub := &recordingPublisher{}
	events := NewEventService(db, testutil.TestLoggerSilent())

	return &testEnv{
		DB:        db,
		Queries:   store.New(db),
		Site:      testutil.TestSite(t, db),
		Cache:     rc,
		Publisher: pub,
		Events:    events,
		Redirects: NewRedirectService(db, RedirectServiceConfig{
			AdminPrefix: "/admin/",
			Cache:       rc,
			Events:      events,
			Publisher:   pub,
			Logger:      testutil.TestLoggerSilent(),
		}),
		Ctx: context.Background(),
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
