// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/testutil"
)

func TestNew(t *testing.T) {
	logger := slog.Default()

	s := New(logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cron == nil {
		t.Error("New() scheduler has nil cron")
	}
	if s.logger != logger {
		t.Error("New() scheduler has wrong logger")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	require.NoError(t, s.Add(Job{Name: "noop", Schedule: "@hourly", Run: func(context.Context) error { return nil }}))

	s.Start()
	s.Stop()
}

func TestScheduler_Add(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add(Job{Name: "b", Schedule: "@every 1m", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "a", Schedule: "*/5 * * * *", Run: noop}))

	assert.Error(t, s.Add(Job{Name: "a", Schedule: "@hourly", Run: noop}), "duplicate name")
	assert.Error(t, s.Add(Job{Name: "c", Schedule: "not a schedule", Run: noop}), "bad schedule")

	jobs := s.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
}

func TestScheduler_TriggerNow(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	boom := errors.New("boom")
	calls := 0
	require.NoError(t, s.Add(Job{Name: "job", Schedule: "@hourly", Run: func(context.Context) error {
		calls++
		return boom
	}}))

	assert.ErrorIs(t, s.TriggerNow(context.Background(), "job"), boom)
	assert.Equal(t, 1, calls)
	assert.Error(t, s.TriggerNow(context.Background(), "missing"))
}

func TestRegisterMaintenance_FlushHits(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	site := testutil.TestSite(t, db)
	r := testutil.CreateTestRedirect(t, db, site.ID, "/old/", "/new/", 301)

	hits := service.NewHitCounter(db)
	hits.Record(r.ID)
	hits.Record(r.ID)

	s := New(testutil.TestLoggerSilent())
	require.NoError(t, s.RegisterMaintenance(Maintenance{Hits: hits, Metrics: metrics.New()}))
	require.Len(t, s.List(), 1, "jobs without collaborators are skipped")

	require.NoError(t, s.TriggerNow(ctx, JobFlushHits))

	got, err := store.New(db).GetRedirectByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.HitCount)
	assert.True(t, got.LastHitAt.Valid)
	assert.Zero(t, hits.Pending())
}

func TestRegisterMaintenance_PruneEvents(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	events := service.NewEventService(db, testutil.TestLoggerSilent())
	_, err := store.New(db).CreateEvent(ctx, store.CreateEventParams{
		Level:     model.EventLevelInfo,
		Category:  model.EventCategorySystem,
		Message:   "old",
		Metadata:  "{}",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, events.LogInfo(ctx, model.EventCategorySystem, "fresh", nil))

	s := New(testutil.TestLoggerSilent())
	require.NoError(t, s.RegisterMaintenance(Maintenance{Events: events, EventRetention: 24 * time.Hour}))
	require.NoError(t, s.TriggerNow(ctx, JobPruneEvents))

	list, err := events.List(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].Message)
}
