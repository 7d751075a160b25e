// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transfer imports and exports redirects as CSV files and from the
// tables of a legacy CMS database.
package transfer

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// Column names of the redirect CSV format.
const (
	ColumnOldURL       = "Old Url"
	ColumnNewURL       = "New Url"
	ColumnResponseCode = "Response Code"
)

// Import sources
const (
	SourceCSV    = "csv"
	SourceLegacy = "legacy"
)

// Header is the required first row of a redirect CSV file.
var Header = []string{ColumnOldURL, ColumnNewURL, ColumnResponseCode}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ImportError is a user-facing problem with the import data. Nothing has
// been written when it is returned.
type ImportError struct {
	Message string
	Row     int
}

func (e *ImportError) Error() string {
	return e.Message
}

func headerError() *ImportError {
	return &ImportError{Message: `CSV file is missing the correct header row. Should be "Old Url", "New Url", "Response Code".`}
}

func missingURLError(row int) *ImportError {
	return &ImportError{Message: fmt.Sprintf("Missing URL in row %d.", row), Row: row}
}

func rowError(row int, format string) *ImportError {
	return &ImportError{Message: fmt.Sprintf(format, row), Row: row}
}

// Row is one redirect read from an import source.
type Row struct {
	Line         int
	OldPath      string
	NewPath      string
	ResponseCode int64
}

// ImportResult summarizes an applied import.
type ImportResult struct {
	BatchID string `json:"batch_id"`
	SiteID  int64  `json:"site_id"`
	Source  string `json:"source"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped,omitempty"`
}

// Total returns the number of rows written.
func (r *ImportResult) Total() int {
	return r.Created + r.Updated
}

// ParseCSV reads every row of a redirect CSV file. Rows are numbered from 1,
// not counting the header.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, headerError()
	}
	if err != nil {
		return nil, &ImportError{Message: fmt.Sprintf("Could not read CSV file: %v", err)}
	}
	if len(header) > 0 {
		header[0] = string(bytes.TrimPrefix([]byte(header[0]), utf8BOM))
	}
	if !isHeader(header) {
		return nil, headerError()
	}

	var rows []Row
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ImportError{Message: fmt.Sprintf("Could not read row %d: %v", line, err), Row: line}
		}

		row := Row{Line: line, ResponseCode: model.ResponseCodePermanent}
		if len(record) > 0 {
			row.OldPath = record[0]
		}
		if len(record) > 1 {
			row.NewPath = record[1]
		}
		if len(record) > 2 {
			row.ResponseCode = ParseResponseCode(record[2])
		}
		if row.OldPath == "" || row.NewPath == "" {
			return nil, missingURLError(line)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func isHeader(record []string) bool {
	if len(record) != len(Header) {
		return false
	}
	for i := range Header {
		if record[i] != Header[i] {
			return false
		}
	}
	return true
}

// ParseResponseCode maps anything other than 302 to 301.
func ParseResponseCode(s string) int64 {
	code, err := strconv.ParseInt(s, 10, 64)
	if err != nil || !model.IsValidResponseCode(code) {
		return model.ResponseCodePermanent
	}
	return code
}

// Importer writes parsed rows into the redirects table.
type Importer struct {
	db          *sql.DB
	logger      *slog.Logger
	adminPrefix string
}

// NewImporter creates a new Importer. Rows redirecting to or from
// adminPrefix are refused.
func NewImporter(db *sql.DB, logger *slog.Logger, adminPrefix string) *Importer {
	return &Importer{db: db, logger: logger, adminPrefix: adminPrefix}
}

// CheckRow returns the problem with a row that can never be stored, or nil.
// An empty new URL is allowed; legacy rows use it for gone redirects.
func (i *Importer) CheckRow(row Row) *ImportError {
	switch {
	case row.OldPath == "":
		return missingURLError(row.Line)
	case row.OldPath == "/":
		return rowError(row.Line, "Cannot redirect the site's homepage in row %d.")
	case !strings.HasPrefix(row.OldPath, "/"):
		return rowError(row.Line, "Old URL must start with a slash in row %d.")
	case i.adminPrefix != "" &&
		(util.HasPathPrefix(row.OldPath, i.adminPrefix) || util.HasPathPrefix(row.NewPath, i.adminPrefix)):
		return rowError(row.Line, "Cannot redirect to or from the admin site in row %d.")
	}
	return nil
}

// ImportCSV parses r and applies it to siteID.
func (i *Importer) ImportCSV(ctx context.Context, siteID int64, r io.Reader) (*ImportResult, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return i.Apply(ctx, siteID, SourceCSV, rows)
}

// ImportCSVFile opens path and imports it into siteID.
func (i *Importer) ImportCSVFile(ctx context.Context, siteID int64, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return i.ImportCSV(ctx, siteID, f)
}

// Apply upserts rows by (site, old path) in a single transaction. Existing
// redirects get the new destination and lose any page link; their active
// flag is kept. Any failure rolls back the whole batch, and a row failing
// CheckRow fails it before anything is written.
func (i *Importer) Apply(ctx context.Context, siteID int64, source string, rows []Row) (*ImportResult, error) {
	for _, row := range rows {
		if err := i.CheckRow(row); err != nil {
			return nil, err
		}
	}

	result := &ImportResult{
		BatchID: uuid.NewString(),
		SiteID:  siteID,
		Source:  source,
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	queries := store.New(tx)
	now := time.Now().UTC()

	for _, row := range rows {
		existing, err := queries.GetRedirectByOldPath(ctx, store.GetRedirectByOldPathParams{
			SiteID:  siteID,
			OldPath: row.OldPath,
		})
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := queries.CreateRedirect(ctx, store.CreateRedirectParams{
				SiteID:       siteID,
				OldPath:      row.OldPath,
				NewPath:      row.NewPath,
				ResponseCode: row.ResponseCode,
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}); err != nil {
				return nil, fmt.Errorf("creating redirect for row %d: %w", row.Line, err)
			}
			result.Created++
		case err != nil:
			return nil, fmt.Errorf("looking up redirect for row %d: %w", row.Line, err)
		default:
			if err := queries.UpdateRedirectDestination(ctx, store.UpdateRedirectDestinationParams{
				NewPath:      row.NewPath,
				ResponseCode: row.ResponseCode,
				UpdatedAt:    now,
				ID:           existing.ID,
			}); err != nil {
				return nil, fmt.Errorf("updating redirect for row %d: %w", row.Line, err)
			}
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}

	i.logger.Info("redirects imported",
		"category", model.EventCategoryImport,
		"batch_id", result.BatchID,
		"site_id", siteID,
		"source", source,
		"created", result.Created,
		"updated", result.Updated)

	return result, nil
}

// Exporter writes redirects as CSV.
type Exporter struct {
	queries *store.Queries
}

// NewExporter creates a new Exporter.
func NewExporter(db *sql.DB) *Exporter {
	return &Exporter{queries: store.New(db)}
}

// ExportCSV writes the header and one row per redirect of siteID. Page
// redirects are written with the page path as their new URL. It returns the
// number of data rows written.
func (e *Exporter) ExportCSV(ctx context.Context, siteID int64, w io.Writer) (int, error) {
	rows, err := e.queries.ListRedirectsForExport(ctx, siteID)
	if err != nil {
		return 0, fmt.Errorf("listing redirects: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	for _, row := range rows {
		record := []string{row.OldPath, row.Destination, strconv.FormatInt(row.ResponseCode, 10)}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("writing row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}

	return len(rows), nil
}

// ExportCSVFile writes the export of siteID to path.
func (e *Exporter) ExportCSVFile(ctx context.Context, siteID int64, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating csv file: %w", err)
	}

	n, err := e.ExportCSV(ctx, siteID, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing csv file: %w", closeErr)
	}
	return n, err
}
