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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
)

// Sender accepts events for delivery. Services depend on this interface.
type Sender interface {
	Dispatch(ctx context.Context, event *Event) error
}

// Dispatcher records deliveries for subscribed webhooks and posts them from
// a worker pool. Failed deliveries are retried by RetryDue.
type Dispatcher struct {
	queries *store.Queries
	logger  *slog.Logger
	client  *http.Client
	queue   chan *QueuedDelivery
	workers int
	now     func() time.Time

	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool
}

// QueuedDelivery is one delivery waiting for a worker.
type QueuedDelivery struct {
	DeliveryID int64
	WebhookID  int64
	Event      string
	Payload    []byte
	URL        string
	Secret     string
	Headers    map[string]string
}

// Config holds dispatcher settings.
type Config struct {
	Workers   int
	QueueSize int
	// HTTPClient overrides the SSRF-guarded default client.
	HTTPClient *http.Client
}

// DefaultConfig returns the default dispatcher settings.
func DefaultConfig() Config {
	return Config{Workers: 3, QueueSize: 100}
}

// NewDispatcher creates a Dispatcher. Call Start before dispatching.
func NewDispatcher(db *sql.DB, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = util.NewSafeHTTPClient(RequestTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queries: store.New(db),
		logger:  logger,
		client:  cfg.HTTPClient,
		queue:   make(chan *QueuedDelivery, cfg.QueueSize),
		workers: cfg.Workers,
		now:     func() time.Time { return time.Now().UTC() },
		done:    make(chan struct{}),
	}
}

// Start launches the workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	d.logger.Info("starting webhook dispatcher", "workers", d.workers)
	for i := range d.workers {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop signals the workers and waits for in-flight deliveries. Deliveries
// still queued remain pending and are picked up by RetryDue after restart.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.done)
	d.mu.Unlock()

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
		case qd := <-d.queue:
			d.logger.Debug("processing webhook delivery", "worker_id", id, "delivery_id", qd.DeliveryID)
			d.processDelivery(ctx, qd)
		}
	}
}

// Dispatch creates a delivery for every active webhook of the event's
// project that subscribes to the event type, and queues it.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		d.logger.Warn("webhook dispatcher not running, event dropped", "event_type", event.Type)
		return nil
	}

	hooks, err := d.queries.ListWebhooksForEvent(ctx, store.ListWebhooksForEventParams{
		ProjectID: event.ProjectID,
		Event:     event.Type,
	})
	if err != nil {
		return fmt.Errorf("listing webhooks for %s: %w", event.Type, err)
	}
	if len(hooks) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.Type, err)
	}

	for _, wh := range hooks {
		// The query pre-filters with LIKE; confirm the exact event name.
		if !slices.Contains(model.ParseWebhookEvents(wh.Events), event.Type) {
			continue
		}
		if err := d.enqueue(ctx, wh, event.Type, payload); err != nil {
			d.logger.Error("failed to create webhook delivery",
				"error", err, "webhook_id", wh.ID, "event_type", event.Type)
		}
	}
	return nil
}

// SendTest queues a webhook.test delivery to a single webhook.
func (d *Dispatcher) SendTest(ctx context.Context, wh store.Webhook) (store.WebhookDelivery, error) {
	event := NewEvent(model.EventWebhookTest, wh.ProjectID, TestEventData{
		Message: "Test delivery",
		Webhook: wh.Name,
	})
	payload, err := json.Marshal(event)
	if err != nil {
		return store.WebhookDelivery{}, err
	}
	delivery, err := d.createDelivery(ctx, wh.ID, event.Type, payload)
	if err != nil {
		return store.WebhookDelivery{}, err
	}
	d.queueOrSchedule(ctx, d.queued(wh, delivery.ID, event.Type, payload))
	return delivery, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, wh store.Webhook, eventType string, payload []byte) error {
	delivery, err := d.createDelivery(ctx, wh.ID, eventType, payload)
	if err != nil {
		return err
	}
	d.logger.Info("webhook delivery created",
		"delivery_id", delivery.ID, "webhook_id", wh.ID, "event_type", eventType)
	d.queueOrSchedule(ctx, d.queued(wh, delivery.ID, eventType, payload))
	return nil
}

func (d *Dispatcher) createDelivery(ctx context.Context, webhookID int64, eventType string, payload []byte) (store.WebhookDelivery, error) {
	now := d.now()
	return d.queries.CreateWebhookDelivery(ctx, store.CreateWebhookDeliveryParams{
		WebhookID: webhookID,
		Event:     eventType,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (d *Dispatcher) queued(wh store.Webhook, deliveryID int64, eventType string, payload []byte) *QueuedDelivery {
	return &QueuedDelivery{
		DeliveryID: deliveryID,
		WebhookID:  wh.ID,
		Event:      eventType,
		Payload:    payload,
		URL:        wh.Url,
		Secret:     wh.Secret,
		Headers:    model.ParseWebhookHeaders(wh.Headers),
	}
}

// queueOrSchedule hands qd to a worker, or to the retry job when the queue is full.
func (d *Dispatcher) queueOrSchedule(ctx context.Context, qd *QueuedDelivery) {
	select {
	case d.queue <- qd:
		return
	default:
	}

	d.logger.Warn("webhook queue full, delivery deferred to retry job", "delivery_id", qd.DeliveryID)
	now := d.now()
	if err := d.queries.ScheduleDelivery(ctx, store.ScheduleDeliveryParams{
		NextRetryAt: now,
		UpdatedAt:   now,
		ID:          qd.DeliveryID,
	}); err != nil {
		d.logger.Error("failed to defer webhook delivery", "error", err, "delivery_id", qd.DeliveryID)
	}
}

// RetryDue queues pending deliveries whose retry time has passed and returns
// how many were queued. Each one is leased for twice the request timeout so
// the next run does not queue it again while it is in flight.
func (d *Dispatcher) RetryDue(ctx context.Context, limit int64) (int, error) {
	now := d.now()
	due, err := d.queries.ListDueDeliveries(ctx, store.ListDueDeliveriesParams{Now: now, Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("listing due deliveries: %w", err)
	}

	queued := 0
	for _, del := range due {
		wh, err := d.queries.GetWebhook(ctx, del.WebhookID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return queued, fmt.Errorf("loading webhook %d: %w", del.WebhookID, err)
		}
		if !wh.IsActive {
			continue
		}

		if err := d.queries.ScheduleDelivery(ctx, store.ScheduleDeliveryParams{
			NextRetryAt: now.Add(2 * RequestTimeout),
			UpdatedAt:   now,
			ID:          del.ID,
		}); err != nil {
			return queued, fmt.Errorf("leasing delivery %d: %w", del.ID, err)
		}

		select {
		case d.queue <- d.queued(wh, del.ID, del.Event, []byte(del.Payload)):
			queued++
		default:
			// Lease expires and the next run tries again.
			return queued, nil
		}
	}
	return queued, nil
}

// GenerateSignature returns the hex HMAC-SHA256 of payload keyed by secret.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by GenerateSignature.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(GenerateSignature(payload, secret)))
}

var _ Sender = (*Dispatcher)(nil)
