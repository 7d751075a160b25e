// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
)

// FormErrorKey holds errors that belong to the whole form rather than one field.
const FormErrorKey = "__all__"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationErrors maps field names to a user-facing message.
type ValidationErrors map[string]string

// Add records msg for field unless the field already has an error.
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Has reports whether field has an error.
func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// Error joins all messages in field order.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return strings.Join(parts, "; ")
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
