// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SplitQuery splits a request URI into path and raw query at the first '?'.
func SplitQuery(uri string) (path, query string) {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i], uri[i+1:]
	}
	return uri, ""
}

// JoinQuery is the inverse of SplitQuery.
func JoinQuery(path, query string) string {
	if query == "" {
		return path
	}
	return path + "?" + query
}

// StripTrailingSlash removes one trailing slash from the path component of
// uri, keeping any query string. The root path "/" is returned unchanged.
func StripTrailingSlash(uri string) string {
	path, query := SplitQuery(uri)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return JoinQuery(path, query)
}

// StripQuery drops the query string from uri.
func StripQuery(uri string) string {
	path, _ := SplitQuery(uri)
	return path
}

// IsAbsoluteURL reports whether s is an http or https URL with a host.
func IsAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	rest := s[strings.Index(s, "://")+3:]
	return rest != "" && rest[0] != '/'
}

// HasPathPrefix reports whether uri's path lies under prefix. A prefix with
// a trailing slash also matches the bare directory ("/admin" for "/admin/").
func HasPathPrefix(uri, prefix string) bool {
	path := StripQuery(uri)
	if strings.HasPrefix(path, prefix) {
		return true
	}
	return strings.HasSuffix(prefix, "/") && path == strings.TrimSuffix(prefix, "/")
}

// SanitizeFilename extracts only the base filename, removing any directory
// components. Returns an error if nothing usable is left.
func SanitizeFilename(filename string) (string, error) {
	safe := filepath.Base(filename)
	if safe == "." || safe == ".." || safe == "" || safe == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return safe, nil
}
