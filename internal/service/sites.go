// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// SiteInput is the editable part of a site.
type SiteInput struct {
	Domain    string `json:"domain"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// SiteService manages sites and maps request hosts to them.
type SiteService struct {
	db      *sql.DB
	queries *store.Queries
	events  *EventService
}

// NewSiteService creates a new SiteService. events may be nil.
func NewSiteService(db *sql.DB, events *EventService) *SiteService {
	return &SiteService{db: db, queries: store.New(db), events: events}
}

// NormalizeHost lowercases host and drops any port.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// ResolveByHost returns the site whose domain matches host, or the default
// site when none does.
func (s *SiteService) ResolveByHost(ctx context.Context, host string) (store.Site, error) {
	if host = NormalizeHost(host); host != "" {
		site, err := s.queries.GetSiteByDomain(ctx, host)
		if err == nil {
			return site, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.Site{}, fmt.Errorf("looking up site %q: %w", host, err)
		}
	}
	return s.Default(ctx)
}

// Default returns the default site.
func (s *SiteService) Default(ctx context.Context) (store.Site, error) {
	site, err := s.queries.GetDefaultSite(ctx)
	if err != nil {
		return store.Site{}, notFound(err)
	}
	return site, nil
}

// Get returns the site with id.
func (s *SiteService) Get(ctx context.Context, id int64) (store.Site, error) {
	site, err := s.queries.GetSiteByID(ctx, id)
	if err != nil {
		return store.Site{}, notFound(err)
	}
	return site, nil
}

// GetByDomain returns the site registered for domain.
func (s *SiteService) GetByDomain(ctx context.Context, domain string) (store.Site, error) {
	site, err := s.queries.GetSiteByDomain(ctx, NormalizeHost(domain))
	if err != nil {
		return store.Site{}, notFound(err)
	}
	return site, nil
}

// List returns every site.
func (s *SiteService) List(ctx context.Context) ([]store.Site, error) {
	return s.queries.ListSites(ctx)
}

// Create adds a site. A new default site replaces the previous one.
func (s *SiteService) Create(ctx context.Context, in SiteInput) (store.Site, error) {
	in.Domain = NormalizeHost(in.Domain)
	in.Name = strings.TrimSpace(in.Name)

	errs := ValidationErrors{}
	if in.Domain == "" {
		errs.Add("domain", MsgRequired)
	} else if strings.ContainsAny(in.Domain, "/ ?#") {
		errs.Add("domain", "Enter a bare domain name.")
	}
	if in.Name == "" {
		in.Name = in.Domain
	}
	if len(errs) == 0 {
		if _, err := s.queries.GetSiteByDomain(ctx, in.Domain); err == nil {
			errs.Add("domain", "A site with this domain already exists.")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return store.Site{}, fmt.Errorf("checking domain: %w", err)
		}
	}
	if len(errs) > 0 {
		return store.Site{}, errs
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Site{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	qtx := s.queries.WithTx(tx)
	now := time.Now().UTC()
	if in.IsDefault {
		if err := qtx.ClearDefaultSite(ctx, now); err != nil {
			return store.Site{}, fmt.Errorf("clearing default site: %w", err)
		}
	}
	site, err := qtx.CreateSite(ctx, store.CreateSiteParams{
		Domain:    in.Domain,
		Name:      in.Name,
		IsDefault: in.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return store.Site{}, fmt.Errorf("creating site: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return store.Site{}, fmt.Errorf("committing site: %w", err)
	}

	if s.events != nil {
		_ = s.events.LogSiteEvent(ctx, model.EventLevelInfo, "Site created", map[string]any{
			"site_id": site.ID,
			"domain":  site.Domain,
		})
	}
	return site, nil
}
