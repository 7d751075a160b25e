// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain constants and small value helpers shared by
// the store, service, and HTTP layers.
package model

import "net/http"

// Redirect response codes
const (
	ResponseCodePermanent = http.StatusMovedPermanently // 301
	ResponseCodeTemporary = http.StatusFound            // 302
	ResponseCodeGone      = http.StatusGone             // 410
)

// MaxPathLength bounds old_path and new_path.
const MaxPathLength = 200

// ResponseCodeChoice is a selectable response code for forms.
type ResponseCodeChoice struct {
	Code  int64
	Label string
}

// ResponseCodeChoices returns the codes an administrator may choose.
func ResponseCodeChoices() []ResponseCodeChoice {
	return []ResponseCodeChoice{
		{ResponseCodePermanent, "301 - Permanent"},
		{ResponseCodeTemporary, "302 - Temporary"},
	}
}

// IsValidResponseCode reports whether code can be stored on a redirect.
func IsValidResponseCode(code int64) bool {
	return code == ResponseCodePermanent || code == ResponseCodeTemporary
}

// EffectiveStatus returns the HTTP status served for a redirect: 410 when it
// has no destination, 302 for temporary redirects, otherwise 301.
func EffectiveStatus(responseCode int64, hasDestination bool) int {
	if !hasDestination {
		return ResponseCodeGone
	}
	if responseCode == ResponseCodeTemporary {
		return ResponseCodeTemporary
	}
	return ResponseCodePermanent
}

// Target is a resolved redirect ready to be served.
type Target struct {
	RedirectID int64  `json:"redirect_id"`
	Location   string `json:"location,omitempty"`
	Status     int    `json:"status"`
}

// IsGone reports whether the target should be answered with 410.
func (t Target) IsGone() bool {
	return t.Status == ResponseCodeGone
}
