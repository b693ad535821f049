// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/agency-cms/internal/store"
)

// DeliveryStore is the persistence the dispatcher needs.
type DeliveryStore interface {
	CreateWebhookDelivery(ctx context.Context, targetURL, event, payload string, retryAt time.Time) (store.WebhookDelivery, error)
	GetWebhookDelivery(ctx context.Context, id int64) (store.WebhookDelivery, error)
	ListDueWebhookDeliveries(ctx context.Context, now time.Time, limit int) ([]store.WebhookDelivery, error)
	MarkDeliverySuccess(ctx context.Context, id int64, code int) error
	MarkDeliveryRetry(ctx context.Context, id int64, code int, errMsg string, next time.Time) error
	MarkDeliveryDead(ctx context.Context, id int64, code int, errMsg string) error
}

// Config holds dispatcher configuration.
type Config struct {
	Targets []string
	Secret  string
	Workers int
	// RetryGrace is how long a fresh delivery waits before the retry job
	// may pick it up.
	RetryGrace time.Duration
	// AllowPrivate permits loopback and private targets. Development only.
	AllowPrivate bool
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:    2,
		RetryGrace: 5 * time.Minute,
	}
}

// Dispatcher persists one delivery per target and event and posts them
// from a small worker pool. Failed deliveries are retried by RetryDue.
type Dispatcher struct {
	store   DeliveryStore
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	queue   chan int64
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool

	inflightMu sync.Mutex
	inflight   map[int64]struct{}
}

// NewDispatcher creates a dispatcher. Targets failing ValidateURL are
// dropped with a warning.
func NewDispatcher(s DeliveryStore, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.RetryGrace <= 0 {
		cfg.RetryGrace = DefaultConfig().RetryGrace
	}
	if logger == nil {
		logger = slog.Default()
	}

	var targets []string
	for _, t := range cfg.Targets {
		if err := ValidateURL(context.Background(), t, cfg.AllowPrivate); err != nil {
			logger.Warn("ignoring webhook target", "url", t, "error", err)
			continue
		}
		targets = append(targets, t)
	}
	cfg.Targets = targets

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if !cfg.AllowPrivate {
		transport.DialContext = safeDialContext(&net.Dialer{Timeout: 10 * time.Second})
	}

	return &Dispatcher{
		store:    s,
		cfg:      cfg,
		client:   &http.Client{Timeout: RequestTimeout, Transport: transport},
		logger:   logger,
		queue:    make(chan int64, 100),
		done:     make(chan struct{}),
		inflight: make(map[int64]struct{}),
	}
}

// Enabled reports whether any target is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.cfg.Targets) > 0
}

// Start starts the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.cfg.Workers, "targets", len(d.cfg.Targets))
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the workers and waits for in-progress deliveries.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case deliveryID := <-d.queue:
			d.processDelivery(ctx, deliveryID)
		}
	}
}

// Dispatch records a delivery of event for every target and queues them.
// A nil or disabled dispatcher does nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	if !d.Enabled() {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event payload", "error", err, "event_type", event.Type)
		return err
	}

	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	retryAt := time.Now().Add(d.cfg.RetryGrace)
	for _, target := range d.cfg.Targets {
		delivery, err := d.store.CreateWebhookDelivery(ctx, target, event.Type, string(payload), retryAt)
		if err != nil {
			d.logger.Error("failed to create delivery record", "error", err, "url", target, "event_type", event.Type)
			continue
		}
		d.logger.Debug("webhook delivery created", "delivery_id", delivery.ID, "event_type", event.Type)

		if !running {
			continue
		}
		select {
		case d.queue <- delivery.ID:
		default:
			d.logger.Warn("delivery queue full, delivery will be retried later", "delivery_id", delivery.ID)
		}
	}
	return nil
}

// DispatchEvent is a convenience method to dispatch an event with the given type and data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// RetryDue attempts every pending delivery whose retry time has passed and
// returns how many were attempted.
func (d *Dispatcher) RetryDue(ctx context.Context) (int, error) {
	due, err := d.store.ListDueWebhookDeliveries(ctx, time.Now(), 50)
	if err != nil {
		return 0, err
	}
	for _, delivery := range due {
		if ctx.Err() != nil {
			break
		}
		d.processDelivery(ctx, delivery.ID)
	}
	return len(due), nil
}

func (d *Dispatcher) claim(id int64) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	if _, busy := d.inflight[id]; busy {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id int64) {
	d.inflightMu.Lock()
	delete(d.inflight, id)
	d.inflightMu.Unlock()
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	expectedSig := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
