// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"slices"
)

// Webhook event types
const (
	EventRedirectCreated   = "redirect.created"
	EventRedirectUpdated   = "redirect.updated"
	EventRedirectDeleted   = "redirect.deleted"
	EventRedirectToggled   = "redirect.toggled"
	EventRedirectsImported = "redirects.imported"
	EventPageCreated       = "page.created"
	EventPageUpdated       = "page.updated"
	EventPageDeleted       = "page.deleted"
)

// Webhook delivery statuses
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
	DeliveryStatusDead      = "dead"
)

// WebhookEventInfo contains event type and description.
type WebhookEventInfo struct {
	Type        string
	Description string
}

// AllWebhookEvents returns all available webhook event types with descriptions.
func AllWebhookEvents() []WebhookEventInfo {
	return []WebhookEventInfo{
		{EventRedirectCreated, "When a redirect is created"},
		{EventRedirectUpdated, "When a redirect is updated"},
		{EventRedirectDeleted, "When a redirect is deleted"},
		{EventRedirectToggled, "When a redirect is activated or deactivated"},
		{EventRedirectsImported, "When a CSV or legacy import completes"},
		{EventPageCreated, "When a page is created"},
		{EventPageUpdated, "When a page is updated"},
		{EventPageDeleted, "When a page is deleted"},
	}
}

// IsValidWebhookEvent reports whether event is a known webhook event type.
func IsValidWebhookEvent(event string) bool {
	for _, info := range AllWebhookEvents() {
		if info.Type == event {
			return true
		}
	}
	return false
}

// GenerateWebhookSecret generates a random secret for webhook signing.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ParseEvents decodes a JSON events array.
func ParseEvents(raw string) []string {
	events := []string{}
	if raw == "" || raw == "[]" {
		return events
	}
	_ = json.Unmarshal([]byte(raw), &events)
	return events
}

// SubscribesTo reports whether the JSON events array contains event.
func SubscribesTo(raw, event string) bool {
	return slices.Contains(ParseEvents(raw), event)
}

// EventsToJSON converts a slice of events to a JSON string.
func EventsToJSON(events []string) string {
	if len(events) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(events)
	return string(data)
}
