// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/ocms-redirects/internal/cache"
	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
	"github.com/olegiv/ocms-redirects/internal/webhook"
)

// PageInput is the editable part of a page.
type PageInput struct {
	SiteID int64  `json:"site_id"`
	Title  string `json:"title"`
	Path   string `json:"path"`
	Body   string `json:"body"`
	Status string `json:"status"`
}

// PageService manages CMS pages. Redirects may point at pages, so every
// write drops the site's cached lookups.
type PageService struct {
	queries   *store.Queries
	cache     *cache.RedirectCache
	events    *EventService
	publisher Publisher
	logger    *slog.Logger
}

// NewPageService creates a new PageService. cache, events and publisher may be nil.
func NewPageService(db *sql.DB, rc *cache.RedirectCache, events *EventService, publisher Publisher, logger *slog.Logger) *PageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageService{
		queries:   store.New(db),
		cache:     rc,
		events:    events,
		publisher: publisher,
		logger:    logger,
	}
}

// Get returns the page with id.
func (s *PageService) Get(ctx context.Context, id int64) (store.Page, error) {
	p, err := s.queries.GetPageByID(ctx, id)
	if err != nil {
		return store.Page{}, notFound(err)
	}
	return p, nil
}

// GetPublished returns the published page at path on siteID.
func (s *PageService) GetPublished(ctx context.Context, siteID int64, path string) (store.Page, error) {
	p, err := s.queries.GetPublishedPageByPath(ctx, store.GetPublishedPageByPathParams{
		SiteID: siteID,
		Path:   path,
	})
	if err != nil {
		return store.Page{}, notFound(err)
	}
	return p, nil
}

// ListBySite returns the pages of siteID ordered by path.
func (s *PageService) ListBySite(ctx context.Context, siteID int64) ([]store.Page, error) {
	return s.queries.ListPagesBySite(ctx, siteID)
}

func (s *PageService) validate(ctx context.Context, in *PageInput, excludeID int64) (ValidationErrors, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Path = strings.TrimSpace(in.Path)
	if in.Path == "" && in.Title != "" {
		if slug := util.Slugify(in.Title); slug != "" {
			in.Path = "/" + slug + "/"
		}
	}
	if in.Status == "" {
		in.Status = model.PageStatusDraft
	}

	errs := ValidationErrors{}
	if in.Title == "" {
		errs.Add("title", MsgRequired)
	}
	switch {
	case in.Path == "":
		errs.Add("path", MsgRequired)
	case !strings.HasPrefix(in.Path, "/"):
		errs.Add("path", "The path should always start with a slash.")
	case len(in.Path) > model.MaxPathLength:
		errs.Add("path", fmt.Sprintf(msgMaxLengthTemplate, model.MaxPathLength, len(in.Path)))
	}
	if !model.IsValidPageStatus(in.Status) {
		errs.Add("status", "Select a valid status.")
	}
	if _, err := s.queries.GetSiteByID(ctx, in.SiteID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loading site: %w", err)
		}
		errs.Add(FieldSiteID, MsgInvalidSite)
	}

	if !errs.Has("path") && !errs.Has(FieldSiteID) {
		pages, err := s.queries.ListPagesBySite(ctx, in.SiteID)
		if err != nil {
			return nil, fmt.Errorf("listing pages: %w", err)
		}
		for _, p := range pages {
			if p.Path == in.Path && p.ID != excludeID {
				errs.Add("path", "A page with this path already exists.")
				break
			}
		}
	}

	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

// Create validates in and stores a new page.
func (s *PageService) Create(ctx context.Context, in PageInput) (store.Page, error) {
	errs, err := s.validate(ctx, &in, 0)
	if err != nil {
		return store.Page{}, err
	}
	if errs != nil {
		return store.Page{}, errs
	}

	now := time.Now().UTC()
	p, err := s.queries.CreatePage(ctx, store.CreatePageParams{
		SiteID:    in.SiteID,
		Title:     in.Title,
		Path:      in.Path,
		Body:      in.Body,
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return store.Page{}, fmt.Errorf("creating page: %w", err)
	}

	s.changed(ctx, "Page created", model.EventPageCreated, p)
	return p, nil
}

// Update validates in and replaces page id. The site of a page is fixed.
func (s *PageService) Update(ctx context.Context, id int64, in PageInput) (store.Page, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return store.Page{}, err
	}
	in.SiteID = existing.SiteID

	errs, err := s.validate(ctx, &in, id)
	if err != nil {
		return store.Page{}, err
	}
	if errs != nil {
		return store.Page{}, errs
	}

	p, err := s.queries.UpdatePage(ctx, store.UpdatePageParams{
		Title:     in.Title,
		Path:      in.Path,
		Body:      in.Body,
		Status:    in.Status,
		UpdatedAt: time.Now().UTC(),
		ID:        id,
	})
	if err != nil {
		return store.Page{}, fmt.Errorf("updating page: %w", err)
	}

	s.changed(ctx, "Page updated", model.EventPageUpdated, p)
	return p, nil
}

// Delete removes page id. Redirects that pointed at it lose their
// destination and answer 410 until edited.
func (s *PageService) Delete(ctx context.Context, id int64) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queries.DeletePage(ctx, id); err != nil {
		return fmt.Errorf("deleting page: %w", err)
	}

	s.changed(ctx, "Page deleted", model.EventPageDeleted, p)
	return nil
}

func (s *PageService) changed(ctx context.Context, message, eventType string, p store.Page) {
	if s.cache != nil {
		if err := s.cache.InvalidateSite(ctx, p.SiteID); err != nil {
			s.logger.Warn("failed to invalidate redirect cache", "site_id", p.SiteID, "error", err)
		}
	}
	if s.events != nil {
		_ = s.events.LogPageEvent(ctx, model.EventLevelInfo, message, map[string]any{
			"page_id": p.ID,
			"site_id": p.SiteID,
			"path":    p.Path,
		})
	}
	if s.publisher != nil {
		data := webhook.PageEventData{ID: p.ID, SiteID: p.SiteID, Title: p.Title, Path: p.Path, Status: p.Status}
		if err := s.publisher.DispatchEvent(ctx, eventType, data); err != nil {
			s.logger.Warn("failed to dispatch page event", "event", eventType, "error", err)
		}
	}
}
