// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	_ "github.com/go-sql-driver/mysql" // MySQL legacy source
	_ "github.com/lib/pq"              // PostgreSQL legacy source
	_ "modernc.org/sqlite"             // SQLite legacy source
)

// Legacy source drivers accepted by OpenLegacy.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// LegacyTable is the redirect table of the legacy CMS add-on.
const LegacyTable = "cms_redirects_cmsredirect"

var tablePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// LegacyOptions selects what to read from a legacy database.
type LegacyOptions struct {
	// TablePrefix is prepended to LegacyTable.
	TablePrefix string
	// SiteID limits the rows to one legacy site when positive.
	SiteID int64
}

// LegacyRow is one redirect as stored by the legacy CMS.
type LegacyRow struct {
	OldPath      string
	NewPath      string
	ResponseCode string
	PageID       sql.NullInt64
	SiteID       int64
}

// LegacyReader reads redirects from a legacy CMS database.
type LegacyReader struct {
	db      *sql.DB
	dialect string
}

// OpenLegacy connects to a legacy database. The sqlite3 driver name is
// served by the pure Go SQLite driver.
func OpenLegacy(driver, dsn string) (*LegacyReader, error) {
	sqlDriver := driver
	switch driver {
	case DriverMySQL, DriverPostgres:
	case DriverSQLite:
		sqlDriver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported legacy driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening legacy database: %w", err)
	}
	return NewLegacyReader(db, driver), nil
}

// NewLegacyReader wraps an open database. dialect is one of the Driver
// constants and decides the placeholder style.
func NewLegacyReader(db *sql.DB, dialect string) *LegacyReader {
	return &LegacyReader{db: db, dialect: dialect}
}

// Close closes the underlying database.
func (l *LegacyReader) Close() error {
	return l.db.Close()
}

func (l *LegacyReader) query(opts LegacyOptions) (string, []any, error) {
	if !tablePrefixPattern.MatchString(opts.TablePrefix) {
		return "", nil, fmt.Errorf("invalid table prefix %q", opts.TablePrefix)
	}

	q := "SELECT old_path, new_path, response_code, page_id, site_id FROM " + opts.TablePrefix + LegacyTable
	var args []any
	if opts.SiteID > 0 {
		placeholder := "?"
		if l.dialect == DriverPostgres {
			placeholder = "$1"
		}
		q += " WHERE site_id = " + placeholder
		args = append(args, opts.SiteID)
	}
	q += " ORDER BY old_path"
	return q, args, nil
}

// ReadRows returns every legacy redirect matching opts.
func (l *LegacyReader) ReadRows(ctx context.Context, opts LegacyOptions) ([]LegacyRow, error) {
	q, args, err := l.query(opts)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", LegacyTable, err)
	}
	defer func() { _ = rows.Close() }()

	var items []LegacyRow
	for rows.Next() {
		var (
			item    LegacyRow
			newPath sql.NullString
			code    sql.NullString
		)
		if err := rows.Scan(&item.OldPath, &newPath, &code, &item.PageID, &item.SiteID); err != nil {
			return nil, fmt.Errorf("scanning legacy redirect: %w", err)
		}
		item.NewPath = newPath.String
		item.ResponseCode = code.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading legacy redirects: %w", err)
	}

	return items, nil
}

// ConvertLegacyRows maps legacy rows to import rows. Rows pointing at a
// legacy page with no path of their own cannot be carried over and are
// counted as skipped.
func ConvertLegacyRows(legacy []LegacyRow) (rows []Row, skipped int) {
	for i, lr := range legacy {
		if lr.OldPath == "" || (lr.PageID.Valid && lr.NewPath == "") {
			skipped++
			continue
		}
		rows = append(rows, Row{
			Line:         i + 1,
			OldPath:      lr.OldPath,
			NewPath:      lr.NewPath,
			ResponseCode: ParseResponseCode(lr.ResponseCode),
		})
	}
	return rows, skipped
}

// ImportLegacy reads the legacy table and applies it to siteID.
func (i *Importer) ImportLegacy(ctx context.Context, siteID int64, src *LegacyReader, opts LegacyOptions) (*ImportResult, error) {
	legacy, err := src.ReadRows(ctx, opts)
	if err != nil {
		return nil, err
	}

	converted, skipped := ConvertLegacyRows(legacy)
	rows := converted[:0]
	for _, row := range converted {
		if err := i.CheckRow(row); err != nil {
			i.logger.Warn("legacy redirect skipped", "category", "import", "row", row.Line, "old_path", row.OldPath, "reason", err.Message)
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	result, err := i.Apply(ctx, siteID, SourceLegacy, rows)
	if err != nil {
		return nil, err
	}
	result.Skipped = skipped
	if skipped > 0 {
		i.logger.Warn("legacy redirects skipped",
			"category", "import",
			"skipped", skipped,
			"batch_id", result.BatchID,
			"legacy_site_id", strconv.FormatInt(opts.SiteID, 10))
	}
	return result, nil
}
