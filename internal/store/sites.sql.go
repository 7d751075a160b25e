// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const siteColumns = `id, domain, name, is_default, created_at, updated_at`

func scanSite(row interface{ Scan(...any) error }) (Site, error) {
	var i Site
	err := row.Scan(&i.ID, &i.Domain, &i.Name, &i.IsDefault, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createSite = `INSERT INTO sites (domain, name, is_default, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + siteColumns

type CreateSiteParams struct {
	Domain    string
	Name      string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreateSite(ctx context.Context, arg CreateSiteParams) (Site, error) {
	row := q.db.QueryRowContext(ctx, createSite, arg.Domain, arg.Name, arg.IsDefault, arg.CreatedAt, arg.UpdatedAt)
	return scanSite(row)
}

const getSiteByID = `SELECT ` + siteColumns + ` FROM sites WHERE id = ?`

func (q *Queries) GetSiteByID(ctx context.Context, id int64) (Site, error) {
	return scanSite(q.db.QueryRowContext(ctx, getSiteByID, id))
}

const getSiteByDomain = `SELECT ` + siteColumns + ` FROM sites WHERE domain = ?`

func (q *Queries) GetSiteByDomain(ctx context.Context, domain string) (Site, error) {
	return scanSite(q.db.QueryRowContext(ctx, getSiteByDomain, domain))
}

const getDefaultSite = `SELECT ` + siteColumns + ` FROM sites WHERE is_default = 1 ORDER BY id LIMIT 1`

func (q *Queries) GetDefaultSite(ctx context.Context) (Site, error) {
	return scanSite(q.db.QueryRowContext(ctx, getDefaultSite))
}

const clearDefaultSite = `UPDATE sites SET is_default = 0, updated_at = ? WHERE is_default = 1`

func (q *Queries) ClearDefaultSite(ctx context.Context, updatedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, clearDefaultSite, updatedAt)
	return err
}

const listSites = `SELECT ` + siteColumns + ` FROM sites ORDER BY domain`

func (q *Queries) ListSites(ctx context.Context) ([]Site, error) {
	rows, err := q.db.QueryContext(ctx, listSites)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Site
	for rows.Next() {
		i, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
