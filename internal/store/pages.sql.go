// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const pageColumns = `id, site_id, title, path, body, status, created_at, updated_at`

func scanPage(row interface{ Scan(...any) error }) (Page, error) {
	var i Page
	err := row.Scan(&i.ID, &i.SiteID, &i.Title, &i.Path, &i.Body, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createPage = `INSERT INTO pages (site_id, title, path, body, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + pageColumns

type CreatePageParams struct {
	SiteID    int64
	Title     string
	Path      string
	Body      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreatePage(ctx context.Context, arg CreatePageParams) (Page, error) {
	row := q.db.QueryRowContext(ctx, createPage,
		arg.SiteID, arg.Title, arg.Path, arg.Body, arg.Status, arg.CreatedAt, arg.UpdatedAt)
	return scanPage(row)
}

const updatePage = `UPDATE pages SET title = ?, path = ?, body = ?, status = ?, updated_at = ?
WHERE id = ?
RETURNING ` + pageColumns

type UpdatePageParams struct {
	Title     string
	Path      string
	Body      string
	Status    string
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) UpdatePage(ctx context.Context, arg UpdatePageParams) (Page, error) {
	row := q.db.QueryRowContext(ctx, updatePage,
		arg.Title, arg.Path, arg.Body, arg.Status, arg.UpdatedAt, arg.ID)
	return scanPage(row)
}

const deletePage = `DELETE FROM pages WHERE id = ?`

func (q *Queries) DeletePage(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deletePage, id)
	return err
}

const getPageByID = `SELECT ` + pageColumns + ` FROM pages WHERE id = ?`

func (q *Queries) GetPageByID(ctx context.Context, id int64) (Page, error) {
	return scanPage(q.db.QueryRowContext(ctx, getPageByID, id))
}

const getPublishedPageByPath = `SELECT ` + pageColumns + ` FROM pages
WHERE site_id = ? AND path = ? AND status = 'published'`

type GetPublishedPageByPathParams struct {
	SiteID int64
	Path   string
}

func (q *Queries) GetPublishedPageByPath(ctx context.Context, arg GetPublishedPageByPathParams) (Page, error) {
	return scanPage(q.db.QueryRowContext(ctx, getPublishedPageByPath, arg.SiteID, arg.Path))
}

const listPagesBySite = `SELECT ` + pageColumns + ` FROM pages WHERE site_id = ? ORDER BY path`

func (q *Queries) ListPagesBySite(ctx context.Context, siteID int64) ([]Page, error) {
	rows, err := q.db.QueryContext(ctx, listPagesBySite, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Page
	for rows.Next() {
		i, err := scanPage(rows)
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
