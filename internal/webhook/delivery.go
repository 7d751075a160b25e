// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

// Delivery configuration constants
const (
	MaxAttempts    = 5
	InitialBackoff = 1 * time.Minute
	MaxBackoff     = 24 * time.Hour
	RequestTimeout = 30 * time.Second
	MaxResponseLen = 10 * 1024
	UserAgent      = "ocms-redirects/1.0"
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

func newHTTPClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext:         util.SSRFSafeDialContext(dialer),
	}
	if allowPrivate {
		transport.DialContext = dialer.DialContext
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (d *Dispatcher) processDelivery(ctx context.Context, delivery *QueuedDelivery) {
	record, err := d.queries.GetWebhookDelivery(ctx, delivery.DeliveryID)
	if err != nil {
		d.logger.Error("failed to load webhook delivery", "error", err, "delivery_id", delivery.DeliveryID)
		return
	}
	if record.Status == model.DeliveryStatusDelivered || record.Status == model.DeliveryStatusDead {
		return
	}

	result := d.attemptDelivery(ctx, delivery)
	now := time.Now().UTC()

	if result.Success {
		err = d.queries.MarkDeliverySuccess(ctx, markSuccessParams(delivery.DeliveryID, result, now))
		if err != nil {
			d.logger.Error("failed to record webhook success", "error", err, "delivery_id", delivery.DeliveryID)
		}
		return
	}

	attempts := record.Attempts + 1
	params := markFailedParams(delivery.DeliveryID, result, now)

	if !result.ShouldRetry || attempts >= MaxAttempts {
		params.Status = model.DeliveryStatusDead
		d.logger.Warn("webhook delivery gave up",
			"category", model.EventCategoryWebhook,
			"delivery_id", delivery.DeliveryID,
			"webhook_id", delivery.WebhookID,
			"attempts", attempts,
			"reason", params.ErrorMessage)
	} else {
		params.NextRetryAt = sql.NullTime{Time: now.Add(calculateBackoff(attempts)), Valid: true}
	}

	if err := d.queries.MarkDeliveryFailed(ctx, params); err != nil {
		d.logger.Error("failed to record webhook failure", "error", err, "delivery_id", delivery.DeliveryID)
	}
}

func markSuccessParams(id int64, r DeliveryResult, now time.Time) store.MarkDeliverySuccessParams {
	return store.MarkDeliverySuccessParams{
		ResponseCode: int64(r.StatusCode),
		ResponseBody: r.ResponseBody,
		DeliveredAt:  sql.NullTime{Time: now, Valid: true},
		UpdatedAt:    now,
		ID:           id,
	}
}

func markFailedParams(id int64, r DeliveryResult, now time.Time) store.MarkDeliveryFailedParams {
	msg := ""
	if r.Error != nil {
		msg = r.Error.Error()
	}
	return store.MarkDeliveryFailedParams{
		Status:       model.DeliveryStatusFailed,
		ResponseCode: int64(r.StatusCode),
		ResponseBody: r.ResponseBody,
		ErrorMessage: msg,
		UpdatedAt:    now,
		ID:           id,
	}
}

func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Webhook-Signature", GenerateSignature(delivery.Payload, delivery.Secret))
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery-ID", strconv.FormatInt(delivery.DeliveryID, 10))
	if delivery.EventID != "" {
		req.Header.Set("X-Webhook-Event-ID", delivery.EventID)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("request failed: %w", err), ShouldRetry: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	result := DeliveryResult{StatusCode: resp.StatusCode, ResponseBody: string(body)}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		result.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		result.ShouldRetry = resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests
	default:
		result.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		result.ShouldRetry = true
	}
	return result
}

// calculateBackoff doubles from InitialBackoff per attempt, capped at MaxBackoff.
func calculateBackoff(attempt int64) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := InitialBackoff
	for i := int64(1); i < attempt; i++ {
		backoff *= 2
		if backoff >= MaxBackoff {
			return MaxBackoff
		}
	}
	return backoff
}
