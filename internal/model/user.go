// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// User roles
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// CanManageRedirects reports whether role may edit redirects.
func CanManageRedirects(role string) bool {
	return role == RoleAdmin || role == RoleEditor
}
