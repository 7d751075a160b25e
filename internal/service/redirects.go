// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-redirects/internal/cache"
	"github.com/olegiv/ocms-redirects/internal/metrics"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/transfer"
	"github.com/olegiv/ocms-redirects/internal/util"
	"github.com/olegiv/ocms-redirects/internal/webhook"
)

// Publisher sends change notifications, usually to webhooks.
type Publisher interface {
	DispatchEvent(ctx context.Context, eventType string, data any) error
}

// RedirectServiceConfig holds the collaborators of a RedirectService. Every
// field except AdminPrefix is optional.
type RedirectServiceConfig struct {
	AdminPrefix string
	Cache       *cache.RedirectCache
	Events      *EventService
	Publisher   Publisher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// RedirectService manages redirect records.
type RedirectService struct {
	db        *sql.DB
	queries   *store.Queries
	validator *Validator
	importer  *transfer.Importer
	exporter  *transfer.Exporter
	cache     *cache.RedirectCache
	events    *EventService
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRedirectService creates a new RedirectService.
func NewRedirectService(db *sql.DB, cfg RedirectServiceConfig) *RedirectService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queries := store.New(db)
	return &RedirectService{
		db:        db,
		queries:   queries,
		validator: NewValidator(queries, cfg.AdminPrefix),
		importer:  transfer.NewImporter(db, logger, cfg.AdminPrefix),
		exporter:  transfer.NewExporter(db),
		cache:     cfg.Cache,
		events:    cfg.Events,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// Validator returns the validator used for writes.
func (s *RedirectService) Validator() *Validator {
	return s.validator
}

// Get returns the redirect with id.
func (s *RedirectService) Get(ctx context.Context, id int64) (store.Redirect, error) {
	r, err := s.queries.GetRedirectByID(ctx, id)
	if err != nil {
		return store.Redirect{}, notFound(err)
	}
	return r, nil
}

// ListFilter selects redirects for listing.
type ListFilter struct {
	SiteID int64
	Search string
	Limit  int64
	Offset int64
}

// List returns a page of redirects and the total matching count.
func (s *RedirectService) List(ctx context.Context, f ListFilter) ([]store.Redirect, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	items, err := s.queries.ListRedirects(ctx, store.ListRedirectsParams{
		SiteID: f.SiteID,
		Search: f.Search,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing redirects: %w", err)
	}
	total, err := s.queries.CountRedirects(ctx, store.CountRedirectsParams{
		SiteID: f.SiteID,
		Search: f.Search,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("counting redirects: %w", err)
	}
	return items, total, nil
}

// Create validates in and stores a new redirect. Validation problems are
// returned as ValidationErrors.
func (s *RedirectService) Create(ctx context.Context, in RedirectInput) (store.Redirect, error) {
	in.Normalize()
	errs, err := s.validator.Validate(ctx, in, 0)
	if err != nil {
		return store.Redirect{}, err
	}
	if errs != nil {
		return store.Redirect{}, errs
	}

	now := time.Now().UTC()
	r, err := s.queries.CreateRedirect(ctx, store.CreateRedirectParams{
		SiteID:       in.SiteID,
		OldPath:      in.OldPath,
		NewPath:      in.NewPath,
		PageID:       util.NullInt64FromPtr(in.PageID),
		ResponseCode: in.ResponseCode,
		Active:       in.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return store.Redirect{}, fmt.Errorf("creating redirect: %w", err)
	}

	s.invalidate(ctx, r.SiteID)
	s.audit(ctx, "Redirect created", r)
	s.publish(ctx, model.EventRedirectCreated, r)
	return r, nil
}

// Update validates in and replaces redirect id.
func (s *RedirectService) Update(ctx context.Context, id int64, in RedirectInput) (store.Redirect, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return store.Redirect{}, err
	}

	in.Normalize()
	errs, err := s.validator.Validate(ctx, in, id)
	if err != nil {
		return store.Redirect{}, err
	}
	if errs != nil {
		return store.Redirect{}, errs
	}

	r, err := s.queries.UpdateRedirect(ctx, store.UpdateRedirectParams{
		SiteID:       in.SiteID,
		OldPath:      in.OldPath,
		NewPath:      in.NewPath,
		PageID:       util.NullInt64FromPtr(in.PageID),
		ResponseCode: in.ResponseCode,
		Active:       in.Active,
		UpdatedAt:    time.Now().UTC(),
		ID:           id,
	})
	if err != nil {
		return store.Redirect{}, fmt.Errorf("updating redirect: %w", err)
	}

	s.invalidate(ctx, existing.SiteID)
	if r.SiteID != existing.SiteID {
		s.invalidate(ctx, r.SiteID)
	}
	s.audit(ctx, "Redirect updated", r)
	s.publish(ctx, model.EventRedirectUpdated, r)
	return r, nil
}

// Delete removes redirect id.
func (s *RedirectService) Delete(ctx context.Context, id int64) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queries.DeleteRedirect(ctx, id); err != nil {
		return fmt.Errorf("deleting redirect: %w", err)
	}

	s.invalidate(ctx, r.SiteID)
	s.audit(ctx, "Redirect deleted", r)
	s.publish(ctx, model.EventRedirectDeleted, r)
	return nil
}

// Toggle flips the active flag of redirect id.
func (s *RedirectService) Toggle(ctx context.Context, id int64) (store.Redirect, error) {
	r, err := s.queries.ToggleRedirectActive(ctx, store.ToggleRedirectActiveParams{
		UpdatedAt: time.Now().UTC(),
		ID:        id,
	})
	if err != nil {
		return store.Redirect{}, notFound(err)
	}

	s.invalidate(ctx, r.SiteID)
	if r.Active {
		s.audit(ctx, "Redirect activated", r)
	} else {
		s.audit(ctx, "Redirect deactivated", r)
	}
	s.publish(ctx, model.EventRedirectToggled, r)
	return r, nil
}

// ImportCSV loads a redirect CSV file into siteID. File problems are
// returned as *transfer.ImportError and leave the database untouched.
func (s *RedirectService) ImportCSV(ctx context.Context, siteID int64, r io.Reader) (*transfer.ImportResult, error) {
	result, err := s.importer.ImportCSV(ctx, siteID, r)
	return s.afterImport(ctx, siteID, transfer.SourceCSV, result, err)
}

// ImportCSVFile loads the CSV file at path into siteID.
func (s *RedirectService) ImportCSVFile(ctx context.Context, siteID int64, path string) (*transfer.ImportResult, error) {
	result, err := s.importer.ImportCSVFile(ctx, siteID, path)
	return s.afterImport(ctx, siteID, transfer.SourceCSV, result, err)
}

// ImportLegacy copies redirects from a legacy CMS database into siteID.
func (s *RedirectService) ImportLegacy(ctx context.Context, siteID int64, src *transfer.LegacyReader, opts transfer.LegacyOptions) (*transfer.ImportResult, error) {
	result, err := s.importer.ImportLegacy(ctx, siteID, src, opts)
	return s.afterImport(ctx, siteID, transfer.SourceLegacy, result, err)
}

// ExportCSV writes every redirect of siteID as CSV.
func (s *RedirectService) ExportCSV(ctx context.Context, siteID int64, w io.Writer) (int, error) {
	return s.exporter.ExportCSV(ctx, siteID, w)
}

// ExportCSVFile writes every redirect of siteID to the CSV file at path.
func (s *RedirectService) ExportCSVFile(ctx context.Context, siteID int64, path string) (int, error) {
	return s.exporter.ExportCSVFile(ctx, siteID, path)
}

func (s *RedirectService) afterImport(ctx context.Context, siteID int64, source string, result *transfer.ImportResult, err error) (*transfer.ImportResult, error) {
	if err != nil {
		s.metrics.RecordImport(source, err, 0, 0)
		if s.events != nil {
			_ = s.events.LogImportEvent(ctx, model.EventLevelWarning, "Redirect import failed", map[string]any{
				"site_id": siteID,
				"source":  source,
				"error":   err.Error(),
			})
		}
		return nil, err
	}

	s.metrics.RecordImport(source, nil, result.Created, result.Updated)
	s.invalidate(ctx, siteID)
	if s.events != nil {
		_ = s.events.LogImportEvent(ctx, model.EventLevelInfo, "Redirects imported", map[string]any{
			"batch_id": result.BatchID,
			"site_id":  siteID,
			"source":   source,
			"created":  result.Created,
			"updated":  result.Updated,
			"skipped":  result.Skipped,
		})
	}
	if s.publisher != nil {
		if err := s.publisher.DispatchEvent(ctx, model.EventRedirectsImported, webhook.ImportEventData{
			BatchID: result.BatchID,
			SiteID:  siteID,
			Source:  source,
			Created: result.Created,
			Updated: result.Updated,
		}); err != nil {
			s.logger.Warn("failed to dispatch import event", "error", err)
		}
	}
	return result, nil
}

func (s *RedirectService) invalidate(ctx context.Context, siteID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSite(ctx, siteID); err != nil {
		s.logger.Warn("failed to invalidate redirect cache", "site_id", siteID, "error", err)
	}
}

func (s *RedirectService) audit(ctx context.Context, message string, r store.Redirect) {
	if s.events == nil {
		return
	}
	_ = s.events.LogRedirectEvent(ctx, model.EventLevelInfo, message, map[string]any{
		"redirect_id": r.ID,
		"site_id":     r.SiteID,
		"old_path":    r.OldPath,
	})
}

func (s *RedirectService) publish(ctx context.Context, eventType string, r store.Redirect) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.DispatchEvent(ctx, eventType, RedirectEventData(r)); err != nil {
		s.logger.Warn("failed to dispatch redirect event", "event", eventType, "error", err)
	}
}

// RedirectEventData converts r to its webhook payload.
func RedirectEventData(r store.Redirect) webhook.RedirectEventData {
	return webhook.RedirectEventData{
		ID:           r.ID,
		SiteID:       r.SiteID,
		OldPath:      r.OldPath,
		NewPath:      r.NewPath,
		PageID:       util.PtrFromNullInt64(r.PageID),
		ResponseCode: r.ResponseCode,
		Active:       r.Active,
	}
}
