// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"slices"
)

// API permissions
const (
	PermissionRedirectsRead  = "redirects:read"
	PermissionRedirectsWrite = "redirects:write"
	PermissionPagesRead      = "pages:read"
	PermissionPagesWrite     = "pages:write"
	PermissionSitesRead      = "sites:read"
	PermissionSitesWrite     = "sites:write"
	PermissionWebhooksWrite  = "webhooks:write"
	PermissionEventsRead     = "events:read"
)

// APIKeyPrefixLength is the number of leading characters kept in clear text.
const APIKeyPrefixLength = 8

// AllPermissions returns all available API permissions.
func AllPermissions() []string {
	return []string{
		PermissionRedirectsRead,
		PermissionRedirectsWrite,
		PermissionPagesRead,
		PermissionPagesWrite,
		PermissionSitesRead,
		PermissionSitesWrite,
		PermissionWebhooksWrite,
		PermissionEventsRead,
	}
}

// IsValidPermission reports whether perm is a known permission.
func IsValidPermission(perm string) bool {
	return slices.Contains(AllPermissions(), perm)
}

// GenerateAPIKey generates a new random API key.
// Returns the raw key (to show once) and its prefix.
func GenerateAPIKey() (rawKey string, prefix string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	rawKey = base64.RawURLEncoding.EncodeToString(buf)
	return rawKey, rawKey[:APIKeyPrefixLength], nil
}

// HashAPIKey creates a SHA-256 hash of the API key for storage.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ParsePermissions decodes a JSON permissions array. Invalid input yields nil.
func ParsePermissions(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil
	}
	return perms
}

// HasPermission reports whether the JSON permissions array grants perm.
func HasPermission(raw, perm string) bool {
	return slices.Contains(ParsePermissions(raw), perm)
}

// PermissionsToJSON converts a slice of permissions to a JSON string.
func PermissionsToJSON(perms []string) string {
	if len(perms) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(perms)
	return string(data)
}
