// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const redirectColumns = `id, site_id, old_path, new_path, page_id, response_code, active, hit_count, last_hit_at, created_at, updated_at`

func scanRedirect(row interface{ Scan(...any) error }) (Redirect, error) {
	var i Redirect
	err := row.Scan(
		&i.ID, &i.SiteID, &i.OldPath, &i.NewPath, &i.PageID, &i.ResponseCode,
		&i.Active, &i.HitCount, &i.LastHitAt, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

func collectRedirects(rows *sql.Rows, err error) ([]Redirect, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Redirect
	for rows.Next() {
		i, err := scanRedirect(rows)
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

const createRedirect = `INSERT INTO redirects (site_id, old_path, new_path, page_id, response_code, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + redirectColumns

type CreateRedirectParams struct {
	SiteID       int64
	OldPath      string
	NewPath      string
	PageID       sql.NullInt64
	ResponseCode int64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) CreateRedirect(ctx context.Context, arg CreateRedirectParams) (Redirect, error) {
	row := q.db.QueryRowContext(ctx, createRedirect,
		arg.SiteID, arg.OldPath, arg.NewPath, arg.PageID, arg.ResponseCode, arg.Active, arg.CreatedAt, arg.UpdatedAt)
	return scanRedirect(row)
}

const updateRedirect = `UPDATE redirects
SET site_id = ?, old_path = ?, new_path = ?, page_id = ?, response_code = ?, active = ?, updated_at = ?
WHERE id = ?
RETURNING ` + redirectColumns

type UpdateRedirectParams struct {
	SiteID       int64
	OldPath      string
	NewPath      string
	PageID       sql.NullInt64
	ResponseCode int64
	Active       bool
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) UpdateRedirect(ctx context.Context, arg UpdateRedirectParams) (Redirect, error) {
	row := q.db.QueryRowContext(ctx, updateRedirect,
		arg.SiteID, arg.OldPath, arg.NewPath, arg.PageID, arg.ResponseCode, arg.Active, arg.UpdatedAt, arg.ID)
	return scanRedirect(row)
}

const updateRedirectDestination = `UPDATE redirects
SET new_path = ?, page_id = NULL, response_code = ?, updated_at = ?
WHERE id = ?`

type UpdateRedirectDestinationParams struct {
	NewPath      string
	ResponseCode int64
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) UpdateRedirectDestination(ctx context.Context, arg UpdateRedirectDestinationParams) error {
	_, err := q.db.ExecContext(ctx, updateRedirectDestination, arg.NewPath, arg.ResponseCode, arg.UpdatedAt, arg.ID)
	return err
}

const deleteRedirect = `DELETE FROM redirects WHERE id = ?`

func (q *Queries) DeleteRedirect(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteRedirect, id)
	return err
}

const toggleRedirectActive = `UPDATE redirects SET active = NOT active, updated_at = ? WHERE id = ?
RETURNING ` + redirectColumns

type ToggleRedirectActiveParams struct {
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) ToggleRedirectActive(ctx context.Context, arg ToggleRedirectActiveParams) (Redirect, error) {
	return scanRedirect(q.db.QueryRowContext(ctx, toggleRedirectActive, arg.UpdatedAt, arg.ID))
}

const getRedirectByID = `SELECT ` + redirectColumns + ` FROM redirects WHERE id = ?`

func (q *Queries) GetRedirectByID(ctx context.Context, id int64) (Redirect, error) {
	return scanRedirect(q.db.QueryRowContext(ctx, getRedirectByID, id))
}

const getRedirectByOldPath = `SELECT ` + redirectColumns + ` FROM redirects WHERE site_id = ? AND old_path = ?`

type GetRedirectByOldPathParams struct {
	SiteID  int64
	OldPath string
}

func (q *Queries) GetRedirectByOldPath(ctx context.Context, arg GetRedirectByOldPathParams) (Redirect, error) {
	return scanRedirect(q.db.QueryRowContext(ctx, getRedirectByOldPath, arg.SiteID, arg.OldPath))
}

const findRedirectFrom = `SELECT ` + redirectColumns + ` FROM redirects
WHERE site_id = ? AND old_path = ? AND id != ?
LIMIT 1`

type FindRedirectFromParams struct {
	SiteID    int64
	OldPath   string
	ExcludeID int64
}

// FindRedirectFrom returns another redirect whose source is OldPath.
func (q *Queries) FindRedirectFrom(ctx context.Context, arg FindRedirectFromParams) (Redirect, error) {
	return scanRedirect(q.db.QueryRowContext(ctx, findRedirectFrom, arg.SiteID, arg.OldPath, arg.ExcludeID))
}

const findRedirectTo = `SELECT r.id, r.site_id, r.old_path, r.new_path, r.page_id, r.response_code, r.active,
       r.hit_count, r.last_hit_at, r.created_at, r.updated_at
FROM redirects r
LEFT JOIN pages p ON p.id = r.page_id
WHERE r.site_id = ? AND r.id != ? AND (r.new_path = ? OR p.path = ?)
LIMIT 1`

type FindRedirectToParams struct {
	SiteID    int64
	Path      string
	ExcludeID int64
}

// FindRedirectTo returns another redirect whose destination, either its new
// path or its page's path, equals Path.
func (q *Queries) FindRedirectTo(ctx context.Context, arg FindRedirectToParams) (Redirect, error) {
	return scanRedirect(q.db.QueryRowContext(ctx, findRedirectTo, arg.SiteID, arg.ExcludeID, arg.Path, arg.Path))
}

const getActiveRedirectTarget = `SELECT r.id, r.old_path, r.new_path, r.response_code, p.path
FROM redirects r
LEFT JOIN pages p ON p.id = r.page_id
WHERE r.site_id = ? AND r.old_path = ? AND r.active = 1`

type GetActiveRedirectTargetParams struct {
	SiteID  int64
	OldPath string
}

type GetActiveRedirectTargetRow struct {
	ID           int64
	OldPath      string
	NewPath      string
	ResponseCode int64
	PagePath     sql.NullString
}

// GetActiveRedirectTarget loads an active redirect together with its page path.
func (q *Queries) GetActiveRedirectTarget(ctx context.Context, arg GetActiveRedirectTargetParams) (GetActiveRedirectTargetRow, error) {
	var i GetActiveRedirectTargetRow
	err := q.db.QueryRowContext(ctx, getActiveRedirectTarget, arg.SiteID, arg.OldPath).Scan(
		&i.ID, &i.OldPath, &i.NewPath, &i.ResponseCode, &i.PagePath,
	)
	return i, err
}

const listRedirects = `SELECT ` + redirectColumns + ` FROM redirects
WHERE (? = 0 OR site_id = ?)
  AND (? = '' OR old_path LIKE '%' || ? || '%' OR new_path LIKE '%' || ? || '%')
ORDER BY old_path
LIMIT ? OFFSET ?`

type ListRedirectsParams struct {
	SiteID int64
	Search string
	Limit  int64
	Offset int64
}

func (q *Queries) ListRedirects(ctx context.Context, arg ListRedirectsParams) ([]Redirect, error) {
	return collectRedirects(q.db.QueryContext(ctx, listRedirects,
		arg.SiteID, arg.SiteID, arg.Search, arg.Search, arg.Search, arg.Limit, arg.Offset))
}

const countRedirects = `SELECT COUNT(*) FROM redirects
WHERE (? = 0 OR site_id = ?)
  AND (? = '' OR old_path LIKE '%' || ? || '%' OR new_path LIKE '%' || ? || '%')`

type CountRedirectsParams struct {
	SiteID int64
	Search string
}

func (q *Queries) CountRedirects(ctx context.Context, arg CountRedirectsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countRedirects,
		arg.SiteID, arg.SiteID, arg.Search, arg.Search, arg.Search).Scan(&count)
	return count, err
}

const listRedirectsForExport = `SELECT r.old_path, COALESCE(p.path, r.new_path), r.response_code
FROM redirects r
LEFT JOIN pages p ON p.id = r.page_id
WHERE r.site_id = ?
ORDER BY r.old_path`

type ListRedirectsForExportRow struct {
	OldPath      string
	Destination  string
	ResponseCode int64
}

func (q *Queries) ListRedirectsForExport(ctx context.Context, siteID int64) ([]ListRedirectsForExportRow, error) {
	rows, err := q.db.QueryContext(ctx, listRedirectsForExport, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListRedirectsForExportRow
	for rows.Next() {
		var i ListRedirectsForExportRow
		if err := rows.Scan(&i.OldPath, &i.Destination, &i.ResponseCode); err != nil {
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

const addRedirectHits = `UPDATE redirects SET hit_count = hit_count + ?, last_hit_at = ? WHERE id = ?`

type AddRedirectHitsParams struct {
	Hits      int64
	LastHitAt sql.NullTime
	ID        int64
}

func (q *Queries) AddRedirectHits(ctx context.Context, arg AddRedirectHitsParams) error {
	_, err := q.db.ExecContext(ctx, addRedirectHits, arg.Hits, arg.LastHitAt, arg.ID)
	return err
}
