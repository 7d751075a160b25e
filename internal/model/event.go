// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth     = "auth"
	EventCategoryRedirect = "redirect"
	EventCategoryImport   = "import"
	EventCategoryPage     = "page"
	EventCategorySite     = "site"
	EventCategoryWebhook  = "webhook"
	EventCategorySystem   = "system"
)

// EventCategories lists every category, used by list filters.
func EventCategories() []string {
	return []string{
		EventCategoryAuth,
		EventCategoryRedirect,
		EventCategoryImport,
		EventCategoryPage,
		EventCategorySite,
		EventCategoryWebhook,
		EventCategorySystem,
	}
}
