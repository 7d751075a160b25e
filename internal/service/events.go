// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the redirect manager's business logic: validation,
// resolution, imports, and the audit trail around them.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"maps"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// EventService provides event logging functionality.
type EventService struct {
	queries *store.Queries
	logger  *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, logger *slog.Logger) *EventService {
	return &EventService{
		queries: store.New(db),
		logger:  logger,
	}
}

// LogEvent creates a new event log entry. The actor in ctx, if any, is added
// to the metadata and supplies the IP address.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error {
	var ip string
	if actor, ok := ActorFromContext(ctx); ok {
		ip = actor.IP
		merged := actor.metadata()
		maps.Copy(merged, metadata)
		metadata = merged
	}

	metadataJSON := "{}"
	if len(metadata) > 0 {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		Metadata:  metadataJSON,
		IpAddress: ip,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to log event", "error", err, "category", category)
		return err
	}

	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, category, message, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, category, message, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelError, category, message, metadata)
}

// LogAuthEvent logs an authentication-related event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, metadata)
}

// LogRedirectEvent logs a redirect change.
func (s *EventService) LogRedirectEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryRedirect, message, metadata)
}

// LogImportEvent logs an import run.
func (s *EventService) LogImportEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryImport, message, metadata)
}

// LogPageEvent logs a page-related event.
func (s *EventService) LogPageEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryPage, message, metadata)
}

// LogSiteEvent logs a site-related event.
func (s *EventService) LogSiteEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySite, message, metadata)
}

// List returns events newest first, optionally filtered by category.
func (s *EventService) List(ctx context.Context, category string, limit, offset int64) ([]store.Event, error) {
	return s.queries.ListEvents(ctx, store.ListEventsParams{
		Category: category,
		Limit:    limit,
		Offset:   offset,
	})
}

// DeleteOldEvents removes events older than the specified duration and
// returns how many were deleted.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.queries.DeleteEventsBefore(ctx, cutoff)
}
