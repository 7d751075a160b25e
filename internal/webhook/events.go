// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook queues and delivers signed HTTP notifications for redirect,
// import, and page changes.
package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a webhook event to be dispatched.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new webhook event with a random ID.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// RedirectEventData contains data for redirect events.
type RedirectEventData struct {
	ID           int64  `json:"id"`
	SiteID       int64  `json:"site_id"`
	OldPath      string `json:"old_path"`
	NewPath      string `json:"new_path,omitempty"`
	PageID       *int64 `json:"page_id,omitempty"`
	ResponseCode int64  `json:"response_code"`
	Active       bool   `json:"active"`
}

// ImportEventData contains data for completed imports.
type ImportEventData struct {
	BatchID string `json:"batch_id"`
	SiteID  int64  `json:"site_id"`
	Source  string `json:"source"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
}

// PageEventData contains data for page events.
type PageEventData struct {
	ID     int64  `json:"id"`
	SiteID int64  `json:"site_id"`
	Title  string `json:"title"`
	Path   string `json:"path"`
	Status string `json:"status"`
}
