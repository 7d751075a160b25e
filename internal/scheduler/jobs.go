// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"time"

	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/service"
	"github.com/olegiv/ocms-redirects/internal/webhook"
)

// Job names
const (
	JobFlushHits     = "flush_hits"
	JobPruneEvents   = "prune_events"
	JobRetryWebhooks = "retry_webhooks"
)

// Maintenance holds the collaborators of the built-in jobs. A nil field
// disables the job that needs it.
type Maintenance struct {
	Hits           *service.HitCounter
	Events         *service.EventService
	Webhooks       *webhook.Dispatcher
	Metrics        *metrics.Metrics
	EventRetention time.Duration // 0 disables pruning
}

// RegisterMaintenance adds the built-in jobs to s.
func (s *Scheduler) RegisterMaintenance(m Maintenance) error {
	if m.Hits != nil {
		if err := s.Add(Job{
			Name:        JobFlushHits,
			Description: "Write buffered redirect hit counts to the database",
			Schedule:    "@every 30s",
			Run: func(ctx context.Context) error {
				n, err := m.Hits.Flush(ctx)
				m.Metrics.RecordHitsFlushed(n)
				if n > 0 {
					s.logger.Debug("flushed redirect hits", "hits", n)
				}
				return err
			},
		}); err != nil {
			return err
		}
	}

	if m.Events != nil && m.EventRetention > 0 {
		if err := s.Add(Job{
			Name:        JobPruneEvents,
			Description: "Delete event log entries past the retention period",
			Schedule:    "@daily",
			Run: func(ctx context.Context) error {
				n, err := m.Events.DeleteOldEvents(ctx, m.EventRetention)
				if err != nil {
					return err
				}
				if n > 0 {
					s.logger.Info("pruned old events", "deleted", n, "retention", m.EventRetention)
				}
				return nil
			},
		}); err != nil {
			return err
		}
	}

	if m.Webhooks != nil {
		if err := s.Add(Job{
			Name:        JobRetryWebhooks,
			Description: "Re-queue failed webhook deliveries that are due",
			Schedule:    "@every 1m",
			Run: func(ctx context.Context) error {
				n, err := m.Webhooks.RetryDue(ctx)
				if n > 0 {
					s.logger.Info("re-queued webhook deliveries", "count", n)
				}
				return err
			},
		}); err != nil {
			return err
		}
	}

	return nil
}
