// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/olegiv/ocms-redirects/internal/transfer"
)

var (
	importSite string
	exportSite string

	legacyDriver      string
	legacyDSN         string
	legacyTablePrefix string
	legacySiteID      int64
	legacyTargetSite  string

	keyName        string
	keyPermissions string
	keyExpires     time.Duration
)

var importCSVCmd = &cobra.Command{
	Use:   "import_redirect_csv <csv_path>",
	Short: "Import redirects from a CSV file",
	Long: `Import redirects from a CSV file with the header "Old Url","New Url","Response Code".
Rows are upserted by old URL; the whole file is applied or nothing is.`,
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("Must pass in the absolute path to the csv import file") //nolint:staticcheck // printed as is
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return importCSV(ctx, a, args[0], importSite, cmd.OutOrStdout())
		})
	},
}

var exportCSVCmd = &cobra.Command{
	Use:   "export_redirect_csv <csv_path>",
	Short: "Export the redirects of a site to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return exportCSV(ctx, a, args[0], exportSite, cmd.OutOrStdout())
		})
	},
}

var importDBCmd = &cobra.Command{
	Use:   "import_redirect_db",
	Short: "Import redirects from a legacy cms_redirects database table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return importLegacy(ctx, a, legacyImport{
				Driver:       legacyDriver,
				DSN:          legacyDSN,
				TablePrefix:  legacyTablePrefix,
				LegacySiteID: legacySiteID,
				Site:         legacyTargetSite,
			}, cmd.OutOrStdout())
		})
	},
}

var createAPIKeyCmd = &cobra.Command{
	Use:   "create_api_key",
	Short: "Create an API key and print it once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return createAPIKey(ctx, a, keyName, splitList(keyPermissions), keyExpires, cmd.OutOrStdout())
		})
	},
}

func init() {
	importCSVCmd.Flags().StringVar(&importSite, "site", "",
		"domain of the site to import into (default: the default site)")
	exportCSVCmd.Flags().StringVar(&exportSite, "site", "",
		"domain of the site to export (default: the default site)")

	importDBCmd.Flags().StringVar(&legacyDriver, "driver", transfer.DriverMySQL,
		"legacy database driver: mysql, postgres or sqlite3")
	importDBCmd.Flags().StringVar(&legacyDSN, "dsn", "", "legacy database DSN")
	importDBCmd.Flags().StringVar(&legacyTablePrefix, "table-prefix", "",
		"prefix of the legacy redirect table name")
	importDBCmd.Flags().Int64Var(&legacySiteID, "legacy-site-id", 0,
		"only import rows of this legacy site ID")
	importDBCmd.Flags().StringVar(&legacyTargetSite, "site", "",
		"domain of the site to import into (default: the default site)")
	_ = importDBCmd.MarkFlagRequired("dsn")

	createAPIKeyCmd.Flags().StringVar(&keyName, "name", "", "key name")
	createAPIKeyCmd.Flags().StringVar(&keyPermissions, "permissions", "",
		"comma-separated permissions (default: redirects:read)")
	createAPIKeyCmd.Flags().DurationVar(&keyExpires, "expires", 0,
		"key lifetime, e.g. 720h (default: never expires)")
	_ = createAPIKeyCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(importCSVCmd, exportCSVCmd, importDBCmd, createAPIKeyCmd)
}

// withApp opens the application, runs fn and closes it again.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func importCSV(ctx context.Context, a *app, path, domain string, out io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("File not found, invalid path: %s", path) //nolint:staticcheck // printed as is
	}

	site, err := a.siteByDomain(ctx, domain)
	if err != nil {
		return err
	}

	result, err := a.redirects.ImportCSVFile(ctx, site.ID, path)
	if err != nil {
		var importErr *transfer.ImportError
		if errors.As(err, &importErr) {
			return errors.New(importErr.Message)
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "Imported %d redirects into %s (%d created, %d updated)\n",
		result.Total(), site.Domain, result.Created, result.Updated)
	return nil
}

func exportCSV(ctx context.Context, a *app, path, domain string, out io.Writer) error {
	site, err := a.siteByDomain(ctx, domain)
	if err != nil {
		return err
	}

	n, err := a.redirects.ExportCSVFile(ctx, site.ID, path)
	if err != nil {
		return fmt.Errorf("exporting redirects: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Exported %d redirects of %s to %s\n", n, site.Domain, path)
	return nil
}

// legacyImport describes a legacy table import.
type legacyImport struct {
	Driver       string
	DSN          string
	TablePrefix  string
	LegacySiteID int64
	Site         string
}

func importLegacy(ctx context.Context, a *app, li legacyImport, out io.Writer) error {
	site, err := a.siteByDomain(ctx, li.Site)
	if err != nil {
		return err
	}

	src, err := transfer.OpenLegacy(li.Driver, li.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	result, err := a.redirects.ImportLegacy(ctx, site.ID, src, transfer.LegacyOptions{
		TablePrefix: li.TablePrefix,
		SiteID:      li.LegacySiteID,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Imported %d redirects into %s (%d created, %d updated, %d skipped)\n",
		result.Total(), site.Domain, result.Created, result.Updated, result.Skipped)
	return nil
}

func createAPIKey(ctx context.Context, a *app, name string, perms []string, expires time.Duration, out io.Writer) error {
	raw, key, err := a.apiKeys.Create(ctx, name, perms, expires)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "API key %q created (prefix %s)\n", key.Name, key.KeyPrefix)
	if key.ExpiresAt.Valid {
		_, _ = fmt.Fprintf(out, "Expires: %s\n", key.ExpiresAt.Time.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(out, "\n%s\n\nStore it now, it cannot be shown again.\n", raw)
	return nil
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
