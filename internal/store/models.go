// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

type Site struct {
	ID        int64     `json:"id"`
	Domain    string    `json:"domain"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Page struct {
	ID        int64     `json:"id"`
	SiteID    int64     `json:"site_id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Redirect struct {
	ID           int64         `json:"id"`
	SiteID       int64         `json:"site_id"`
	OldPath      string        `json:"old_path"`
	NewPath      string        `json:"new_path"`
	PageID       sql.NullInt64 `json:"page_id"`
	ResponseCode int64         `json:"response_code"`
	Active       bool          `json:"active"`
	HitCount     int64         `json:"hit_count"`
	LastHitAt    sql.NullTime  `json:"last_hit_at"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type User struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Name         string       `json:"name"`
	Role         string       `json:"role"`
	LastLoginAt  sql.NullTime `json:"last_login_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type ApiKey struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	KeyHash     string       `json:"-"`
	KeyPrefix   string       `json:"key_prefix"`
	Permissions string       `json:"permissions"`
	LastUsedAt  sql.NullTime `json:"last_used_at"`
	ExpiresAt   sql.NullTime `json:"expires_at"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"`
	IpAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

type Webhook struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Url       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    string    `json:"events"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WebhookDelivery struct {
	ID           int64        `json:"id"`
	WebhookID    int64        `json:"webhook_id"`
	Event        string       `json:"event"`
	Payload      string       `json:"payload"`
	Status       string       `json:"status"`
	Attempts     int64        `json:"attempts"`
	NextRetryAt  sql.NullTime `json:"next_retry_at"`
	ResponseCode int64        `json:"response_code"`
	ResponseBody string       `json:"response_body"`
	ErrorMessage string       `json:"error_message"`
	DeliveredAt  sql.NullTime `json:"delivered_at"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
