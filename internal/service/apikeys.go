// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// API key errors
var (
	ErrAPIKeyInvalid  = errors.New("invalid API key")
	ErrAPIKeyInactive = errors.New("API key is inactive")
	ErrAPIKeyExpired  = errors.New("API key has expired")
)

// APIKeyService issues and checks API keys.
type APIKeyService struct {
	queries *store.Queries
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(db *sql.DB) *APIKeyService {
	return &APIKeyService{queries: store.New(db)}
}

// Create issues a key named name with perms. A zero expiresIn never
// expires. The raw key is returned once and only its hash is stored.
func (s *APIKeyService) Create(ctx context.Context, name string, perms []string, expiresIn time.Duration) (string, store.ApiKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", store.ApiKey{}, ValidationErrors{"name": MsgRequired}
	}
	if len(perms) == 0 {
		perms = []string{model.PermissionRedirectsRead}
	}
	for _, p := range perms {
		if !model.IsValidPermission(p) {
			return "", store.ApiKey{}, ValidationErrors{"permissions": fmt.Sprintf("Unknown permission %q.", p)}
		}
	}

	raw, prefix, err := model.GenerateAPIKey()
	if err != nil {
		return "", store.ApiKey{}, fmt.Errorf("generating key: %w", err)
	}

	now := time.Now().UTC()
	var expires sql.NullTime
	if expiresIn > 0 {
		expires = util.NullTimeFrom(now.Add(expiresIn))
	}

	key, err := s.queries.CreateAPIKey(ctx, store.CreateAPIKeyParams{
		Name:        name,
		KeyHash:     model.HashAPIKey(raw),
		KeyPrefix:   prefix,
		Permissions: model.PermissionsToJSON(perms),
		ExpiresAt:   expires,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return "", store.ApiKey{}, fmt.Errorf("creating api key: %w", err)
	}
	return raw, key, nil
}

// Authenticate returns the active, unexpired key matching raw and records
// its use.
func (s *APIKeyService) Authenticate(ctx context.Context, raw string) (store.ApiKey, error) {
	key, err := s.queries.GetAPIKeyByHash(ctx, model.HashAPIKey(raw))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ApiKey{}, ErrAPIKeyInvalid
	}
	if err != nil {
		return store.ApiKey{}, fmt.Errorf("looking up api key: %w", err)
	}
	if !key.IsActive {
		return store.ApiKey{}, ErrAPIKeyInactive
	}
	now := time.Now().UTC()
	if key.ExpiresAt.Valid && key.ExpiresAt.Time.Before(now) {
		return store.ApiKey{}, ErrAPIKeyExpired
	}

	_ = s.queries.UpdateAPIKeyLastUsed(ctx, store.UpdateAPIKeyLastUsedParams{
		LastUsedAt: util.NullTimeFrom(now),
		ID:         key.ID,
	})
	return key, nil
}
