// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// WebhookInput is the editable part of a webhook.
type WebhookInput struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	IsActive bool     `json:"is_active"`
}

// WebhookService manages webhook subscriptions.
type WebhookService struct {
	queries      *store.Queries
	allowPrivate bool
}

// NewWebhookService creates a new WebhookService. allowPrivate skips the
// public-address check on URLs and is meant for development.
func NewWebhookService(db *sql.DB, allowPrivate bool) *WebhookService {
	return &WebhookService{queries: store.New(db), allowPrivate: allowPrivate}
}

// List returns every webhook.
func (s *WebhookService) List(ctx context.Context) ([]store.Webhook, error) {
	return s.queries.ListWebhooks(ctx)
}

// Get returns the webhook with id.
func (s *WebhookService) Get(ctx context.Context, id int64) (store.Webhook, error) {
	w, err := s.queries.GetWebhookByID(ctx, id)
	if err != nil {
		return store.Webhook{}, notFound(err)
	}
	return w, nil
}

// Create validates in and stores a webhook with a fresh signing secret.
func (s *WebhookService) Create(ctx context.Context, in WebhookInput) (store.Webhook, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)

	errs := ValidationErrors{}
	if in.Name == "" {
		errs.Add("name", MsgRequired)
	}
	switch {
	case in.URL == "":
		errs.Add("url", MsgRequired)
	case len(in.URL) > util.MaxWebhookURLLength:
		errs.Add("url", "URL is too long.")
	case !util.IsAbsoluteURL(in.URL):
		errs.Add("url", "Enter a full http:// or https:// URL.")
	case !s.allowPrivate:
		if err := util.ValidateWebhookURL(ctx, in.URL); err != nil {
			errs.Add("url", err.Error())
		}
	}
	if len(in.Events) == 0 {
		errs.Add("events", "Select at least one event.")
	}
	for _, e := range in.Events {
		if !model.IsValidWebhookEvent(e) {
			errs.Add("events", fmt.Sprintf("Unknown event %q.", e))
		}
	}
	if len(errs) > 0 {
		return store.Webhook{}, errs
	}

	secret, err := model.GenerateWebhookSecret()
	if err != nil {
		return store.Webhook{}, fmt.Errorf("generating secret: %w", err)
	}

	now := time.Now().UTC()
	w, err := s.queries.CreateWebhook(ctx, store.CreateWebhookParams{
		Name:      in.Name,
		Url:       in.URL,
		Secret:    secret,
		Events:    model.EventsToJSON(in.Events),
		IsActive:  in.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return store.Webhook{}, fmt.Errorf("creating webhook: %w", err)
	}
	return w, nil
}

// Delete removes webhook id and its deliveries.
func (s *WebhookService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.queries.DeleteWebhook(ctx, id)
}
