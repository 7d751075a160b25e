// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Page statuses
const (
	PageStatusDraft     = "draft"
	PageStatusPublished = "published"
)

// IsValidPageStatus reports whether status is a known page status.
func IsValidPageStatus(status string) bool {
	return status == PageStatusDraft || status == PageStatusPublished
}
