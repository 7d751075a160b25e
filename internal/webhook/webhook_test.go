// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "webhook-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGenerateAndVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"redirect.created"}`)
	sig := GenerateSignature(payload, "secret")
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64", len(sig))
	}
	if !VerifySignature(payload, sig, "secret") {
		t.Error("valid signature rejected")
	}
	if VerifySignature(payload, sig, "other") {
		t.Error("signature with wrong secret accepted")
	}
	if VerifySignature([]byte("tampered"), sig, "secret") {
		t.Error("signature for tampered payload accepted")
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int64
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{30, MaxBackoff},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNewEvent(t *testing.T) {
	e1 := NewEvent(model.EventRedirectCreated, RedirectEventData{ID: 1})
	e2 := NewEvent(model.EventRedirectCreated, RedirectEventData{ID: 1})
	if e1.ID == "" || e1.ID == e2.ID {
		t.Errorf("event IDs should be unique, got %q and %q", e1.ID, e2.ID)
	}
	if e1.Timestamp.Location() != time.UTC {
		t.Error("timestamp should be UTC")
	}
}

func TestDispatcher_DeliversSignedPayload(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []*http.Request
		bodies   [][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, r)
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Now().UTC()
	q := store.New(db)
	wh, err := q.CreateWebhook(ctx, store.CreateWebhookParams{
		Name: "test", Url: srv.URL, Secret: "s3cret",
		Events:   model.EventsToJSON([]string{model.EventRedirectCreated}),
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}

	d := NewDispatcher(db, nil, Config{Workers: 1, AllowPrivate: true})
	d.Start(ctx)
	defer d.Stop()

	if err := d.DispatchEvent(ctx, model.EventRedirectDeleted, RedirectEventData{ID: 9}); err != nil {
		t.Fatalf("DispatchEvent: %v", err)
	}
	if err := d.DispatchEvent(ctx, model.EventRedirectCreated, RedirectEventData{ID: 9, OldPath: "/a"}); err != nil {
		t.Fatalf("DispatchEvent: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d requests, want 1", len(received))
	}
	r := received[0]
	if r.Header.Get("X-Webhook-Event") != model.EventRedirectCreated {
		t.Errorf("X-Webhook-Event = %q", r.Header.Get("X-Webhook-Event"))
	}
	if !VerifySignature(bodies[0], r.Header.Get("X-Webhook-Signature"), wh.Secret) {
		t.Error("signature does not verify")
	}

	var ev Event
	if err := json.Unmarshal(bodies[0], &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if ev.ID == "" || r.Header.Get("X-Webhook-Event-ID") != ev.ID {
		t.Errorf("event ID header mismatch: %q vs %q", r.Header.Get("X-Webhook-Event-ID"), ev.ID)
	}
}

func TestDispatcher_FailureSchedulesRetry(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	now := time.Now().UTC()
	q := store.New(db)
	wh, _ := q.CreateWebhook(ctx, store.CreateWebhookParams{
		Name: "flaky", Url: srv.URL, Secret: "x", Events: `["redirect.created"]`,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	del, err := q.CreateWebhookDelivery(ctx, store.CreateWebhookDeliveryParams{
		WebhookID: wh.ID, Event: model.EventRedirectCreated, Payload: `{}`, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateWebhookDelivery: %v", err)
	}

	d := NewDispatcher(db, nil, Config{AllowPrivate: true})
	d.processDelivery(ctx, &QueuedDelivery{DeliveryID: del.ID, WebhookID: wh.ID, Event: del.Event, Payload: []byte(`{}`), URL: srv.URL, Secret: "x"})

	got, err := q.GetWebhookDelivery(ctx, del.ID)
	if err != nil {
		t.Fatalf("GetWebhookDelivery: %v", err)
	}
	if got.Status != model.DeliveryStatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Attempts != 1 || !got.NextRetryAt.Valid {
		t.Errorf("unexpected retry state: attempts=%d next=%v", got.Attempts, got.NextRetryAt)
	}
	if got.ResponseCode != http.StatusServiceUnavailable {
		t.Errorf("ResponseCode = %d", got.ResponseCode)
	}
}

func TestDispatcher_ClientErrorIsDead(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	now := time.Now().UTC()
	q := store.New(db)
	wh, _ := q.CreateWebhook(ctx, store.CreateWebhookParams{
		Name: "gone", Url: srv.URL, Secret: "x", Events: `[]`, IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	del, _ := q.CreateWebhookDelivery(ctx, store.CreateWebhookDeliveryParams{
		WebhookID: wh.ID, Event: model.EventRedirectCreated, Payload: `{}`, CreatedAt: now, UpdatedAt: now,
	})

	d := NewDispatcher(db, nil, Config{AllowPrivate: true})
	d.processDelivery(ctx, &QueuedDelivery{DeliveryID: del.ID, WebhookID: wh.ID, Payload: []byte(`{}`), URL: srv.URL})

	got, _ := q.GetWebhookDelivery(ctx, del.ID)
	if got.Status != model.DeliveryStatusDead {
		t.Errorf("Status = %q, want dead", got.Status)
	}
}

func TestDispatcher_BlocksPrivateDestinations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request to loopback should have been blocked")
	}))
	defer srv.Close()

	d := NewDispatcher(testDB(t), nil, Config{})
	result := d.attemptDelivery(context.Background(), &QueuedDelivery{URL: srv.URL, Payload: []byte(`{}`)})
	if result.Success || result.Error == nil {
		t.Errorf("expected blocked delivery, got %+v", result)
	}
}
