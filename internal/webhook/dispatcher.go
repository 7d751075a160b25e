// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/ocms-redirects/internal/model"
	"github.com/olegiv/ocms-redirects/internal/store"
)

// Dispatcher records deliveries for subscribed webhooks and sends them from
// a pool of workers.
type Dispatcher struct {
	queries *store.Queries
	logger  *slog.Logger
	client  *http.Client
	queue   chan *QueuedDelivery
	workers int
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// QueuedDelivery represents a delivery queued for processing.
type QueuedDelivery struct {
	DeliveryID int64
	WebhookID  int64
	Event      string
	EventID    string
	Payload    []byte
	URL        string
	Secret     string
}

// Config holds dispatcher configuration.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// AllowPrivate disables the private-address dial guard. Tests only.
	AllowPrivate bool
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   3,
		QueueSize: 100,
		Timeout:   RequestTimeout,
	}
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(db *sql.DB, logger *slog.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		queries: store.New(db),
		logger:  logger,
		client:  newHTTPClient(cfg.Timeout, cfg.AllowPrivate),
		queue:   make(chan *QueuedDelivery, cfg.QueueSize),
		workers: cfg.Workers,
		done:    make(chan struct{}),
	}
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.workers)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the dispatcher and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case delivery := <-d.queue:
			d.logger.Debug("processing webhook delivery", "worker_id", id, "delivery_id", delivery.DeliveryID)
			d.processDelivery(ctx, delivery)
		}
	}
}

// Dispatch stores a delivery for each active webhook subscribed to the
// event and queues it. Deliveries that do not fit in the queue stay pending
// and are picked up by RetryDue.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	webhooks, err := d.queries.ListActiveWebhooks(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, wh := range webhooks {
		if !model.SubscribesTo(wh.Events, event.Type) {
			continue
		}

		delivery, err := d.queries.CreateWebhookDelivery(ctx, store.CreateWebhookDeliveryParams{
			WebhookID: wh.ID,
			Event:     event.Type,
			Payload:   string(payload),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			d.logger.Error("failed to create webhook delivery", "error", err, "webhook_id", wh.ID, "event", event.Type)
			continue
		}

		d.enqueue(&QueuedDelivery{
			DeliveryID: delivery.ID,
			WebhookID:  wh.ID,
			Event:      event.Type,
			EventID:    event.ID,
			Payload:    payload,
			URL:        wh.Url,
			Secret:     wh.Secret,
		})
	}
	return nil
}

// DispatchEvent dispatches an event with the given type and data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

func (d *Dispatcher) enqueue(qd *QueuedDelivery) {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		return
	}

	select {
	case d.queue <- qd:
	default:
		d.logger.Warn("webhook queue full, delivery deferred", "delivery_id", qd.DeliveryID)
	}
}

// RetryDue re-queues failed deliveries whose retry time has passed.
func (d *Dispatcher) RetryDue(ctx context.Context) (int, error) {
	due, err := d.queries.ListDueDeliveries(ctx, store.ListDueDeliveriesParams{
		Now:   time.Now().UTC(),
		Limit: 50,
	})
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, del := range due {
		wh, err := d.queries.GetWebhookByID(ctx, del.WebhookID)
		if err != nil || !wh.IsActive {
			continue
		}
		var ev Event
		_ = json.Unmarshal([]byte(del.Payload), &ev)
		d.enqueue(&QueuedDelivery{
			DeliveryID: del.ID,
			WebhookID:  wh.ID,
			Event:      del.Event,
			EventID:    ev.ID,
			Payload:    []byte(del.Payload),
			URL:        wh.Url,
			Secret:     wh.Secret,
		})
		queued++
	}
	return queued, nil
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(GenerateSignature(payload, secret)))
}
