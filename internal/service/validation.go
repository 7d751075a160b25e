// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// Validation messages
const (
	MsgRequired          = "This field is required."
	MsgOldPathSlash      = "The old path should always start with a slash."
	MsgHomepage          = "You cannot redirect the site's homepage."
	MsgAdminSite         = "You cannot redirect to or from the admin site."
	MsgPageAndPath       = "You can redirect to either a CMS page, or to a path, but not both."
	MsgSamePath          = "You cannot redirect back to same path."
	MsgInvalidNewPath    = "Enter a path starting with a slash or a full http:// or https:// URL."
	MsgInvalidCode       = "Select a valid response code."
	MsgInvalidPage       = "Select a valid page."
	MsgInvalidSite       = "Select a valid site."
	MsgDuplicateOldPath  = "A redirect for this path already exists."
	msgPointedAtFormat   = "Another redirect already points to %s"
	msgPointsToFormat    = "%s would point to another redirect."
	msgMaxLengthTemplate = "Ensure this value has at most %d characters (it has %d)."
)

// Form field names
const (
	FieldSiteID       = "site_id"
	FieldOldPath      = "old_path"
	FieldNewPath      = "new_path"
	FieldPageID       = "page_id"
	FieldResponseCode = "response_code"
)

// RedirectInput is the editable part of a redirect.
type RedirectInput struct {
	SiteID       int64  `json:"site_id"`
	OldPath      string `json:"old_path"`
	NewPath      string `json:"new_path"`
	PageID       *int64 `json:"page_id"`
	ResponseCode int64  `json:"response_code"`
	Active       bool   `json:"active"`
}

// Normalize trims whitespace and fills the default response code.
func (in *RedirectInput) Normalize() {
	in.OldPath = strings.TrimSpace(in.OldPath)
	in.NewPath = strings.TrimSpace(in.NewPath)
	if in.ResponseCode == 0 {
		in.ResponseCode = model.ResponseCodePermanent
	}
	if in.PageID != nil && *in.PageID <= 0 {
		in.PageID = nil
	}
}

// Validator checks redirects against the rules that keep the redirect graph
// free of loops and away from the homepage and the admin site.
type Validator struct {
	queries     *store.Queries
	adminPrefix string
}

// NewValidator creates a Validator. adminPrefix is the path the admin site
// is mounted at, such as "/admin/".
func NewValidator(queries *store.Queries, adminPrefix string) *Validator {
	return &Validator{queries: queries, adminPrefix: adminPrefix}
}

// Validate returns the problems with in, or nil. excludeID is the redirect
// being edited, or 0 for a new one. A non-nil error means a lookup failed.
func (v *Validator) Validate(ctx context.Context, in RedirectInput, excludeID int64) (ValidationErrors, error) {
	errs := ValidationErrors{}

	v.checkFields(in, errs)

	site, err := v.queries.GetSiteByID(ctx, in.SiteID)
	if errors.Is(err, sql.ErrNoRows) {
		errs.Add(FieldSiteID, MsgInvalidSite)
		return errs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading site: %w", err)
	}

	var page *store.Page
	if in.PageID != nil {
		p, err := v.queries.GetPageByID(ctx, *in.PageID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			errs.Add(FieldPageID, MsgInvalidPage)
		case err != nil:
			return nil, fmt.Errorf("loading page: %w", err)
		case p.SiteID != site.ID:
			errs.Add(FieldPageID, MsgInvalidPage)
		default:
			page = &p
		}
	}

	if in.NewPath != "" && in.PageID != nil {
		errs.Add(FormErrorKey, MsgPageAndPath)
	}

	if errs.Has(FieldOldPath) {
		return errs, nil
	}

	destination := in.NewPath
	if page != nil && destination == "" {
		destination = page.Path
	}

	if in.OldPath == in.NewPath || (page != nil && page.Path == in.OldPath) {
		errs.Add(FormErrorKey, MsgSamePath)
		return errs, nil
	}

	if err := v.checkChains(ctx, site.ID, in.OldPath, destination, excludeID, errs); err != nil {
		return nil, err
	}

	_, err = v.queries.FindRedirectFrom(ctx, store.FindRedirectFromParams{
		SiteID:    site.ID,
		OldPath:   in.OldPath,
		ExcludeID: excludeID,
	})
	switch {
	case err == nil:
		errs.Add(FieldOldPath, MsgDuplicateOldPath)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("checking duplicate: %w", err)
	}

	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

// checkFields runs the checks that need no database access.
func (v *Validator) checkFields(in RedirectInput, errs ValidationErrors) {
	switch {
	case in.OldPath == "":
		errs.Add(FieldOldPath, MsgRequired)
	case len(in.OldPath) > model.MaxPathLength:
		errs.Add(FieldOldPath, fmt.Sprintf(msgMaxLengthTemplate, model.MaxPathLength, len(in.OldPath)))
	case in.OldPath == "/":
		errs.Add(FieldOldPath, MsgHomepage)
	case util.HasPathPrefix(in.OldPath, v.adminPrefix):
		errs.Add(FieldOldPath, MsgAdminSite)
	case !strings.HasPrefix(in.OldPath, "/"):
		errs.Add(FieldOldPath, MsgOldPathSlash)
	}

	if in.NewPath != "" {
		switch {
		case len(in.NewPath) > model.MaxPathLength:
			errs.Add(FieldNewPath, fmt.Sprintf(msgMaxLengthTemplate, model.MaxPathLength, len(in.NewPath)))
		case util.HasPathPrefix(in.NewPath, v.adminPrefix):
			errs.Add(FieldNewPath, MsgAdminSite)
		case !strings.HasPrefix(in.NewPath, "/") && !util.IsAbsoluteURL(in.NewPath):
			errs.Add(FieldNewPath, MsgInvalidNewPath)
		}
	}

	if !model.IsValidResponseCode(in.ResponseCode) {
		errs.Add(FieldResponseCode, MsgInvalidCode)
	}
}

// checkChains rejects a redirect that would form a chain with another one in
// either direction.
func (v *Validator) checkChains(ctx context.Context, siteID int64, oldPath, destination string, excludeID int64, errs ValidationErrors) error {
	_, err := v.queries.FindRedirectTo(ctx, store.FindRedirectToParams{
		SiteID:    siteID,
		Path:      oldPath,
		ExcludeID: excludeID,
	})
	switch {
	case err == nil:
		errs.Add(FieldOldPath, fmt.Sprintf(msgPointedAtFormat, oldPath))
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("checking inbound chain: %w", err)
	}

	if destination == "" || !strings.HasPrefix(destination, "/") {
		return nil
	}

	_, err = v.queries.FindRedirectFrom(ctx, store.FindRedirectFromParams{
		SiteID:    siteID,
		OldPath:   destination,
		ExcludeID: excludeID,
	})
	switch {
	case err == nil:
		errs.Add(FormErrorKey, fmt.Sprintf(msgPointsToFormat, destination))
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("checking outbound chain: %w", err)
	}

	return nil
}
