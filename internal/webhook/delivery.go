// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/agency-cms/internal/store"
)

// Delivery configuration constants
const (
	MaxAttempts    = 5
	InitialBackoff = 1 * time.Minute
	MaxBackoff     = 24 * time.Hour
	RequestTimeout = 30 * time.Second
	MaxResponseLen = 10 * 1024
	UserAgent      = "agency-cms/1.0"
)

// Request headers set on every delivery.
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderEvent      = "X-Webhook-Event"
	HeaderDeliveryID = "X-Webhook-Delivery-ID"
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success     bool
	StatusCode  int
	Error       error
	ShouldRetry bool
}

// processDelivery loads a pending delivery, posts it and records the outcome.
func (d *Dispatcher) processDelivery(ctx context.Context, id int64) {
	if !d.claim(id) {
		return
	}
	defer d.release(id)

	record, err := d.store.GetWebhookDelivery(ctx, id)
	if err != nil {
		d.logger.Error("failed to get delivery record", "error", err, "delivery_id", id)
		return
	}
	if record.Status != store.DeliveryStatusPending {
		d.logger.Debug("delivery already processed", "delivery_id", id, "status", record.Status)
		return
	}

	result := d.attemptDelivery(ctx, record)
	if result.Success {
		if err := d.store.MarkDeliverySuccess(ctx, id, result.StatusCode); err != nil {
			d.logger.Error("failed to update delivery success", "error", err, "delivery_id", id)
			return
		}
		d.logger.Info("webhook delivered", "delivery_id", id, "event", record.Event, "status_code", result.StatusCode)
		return
	}

	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	attempts := record.Attempts + 1

	if !result.ShouldRetry || attempts >= MaxAttempts {
		if err := d.store.MarkDeliveryDead(ctx, id, result.StatusCode, errMsg); err != nil {
			d.logger.Error("failed to update delivery as dead", "error", err, "delivery_id", id)
			return
		}
		d.logger.Warn("webhook delivery marked as dead",
			"delivery_id", id,
			"url", record.TargetURL,
			"attempts", attempts,
			"reason", errMsg)
		return
	}

	backoff := calculateBackoff(attempts)
	next := time.Now().Add(backoff)
	if err := d.store.MarkDeliveryRetry(ctx, id, result.StatusCode, errMsg, next); err != nil {
		d.logger.Error("failed to schedule delivery retry", "error", err, "delivery_id", id)
		return
	}
	d.logger.Info("webhook delivery scheduled for retry",
		"delivery_id", id,
		"attempt", attempts,
		"next_retry_at", next.Format(time.RFC3339),
		"backoff", backoff.String())
}

// attemptDelivery performs the HTTP POST.
func (d *Dispatcher) attemptDelivery(ctx context.Context, record store.WebhookDelivery) DeliveryResult {
	payload := []byte(record.Payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, record.TargetURL, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderEvent, record.Event)
	req.Header.Set(HeaderDeliveryID, strconv.FormatInt(record.ID, 10))
	if d.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+GenerateSignature(payload, d.cfg.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("request failed: %w", err), ShouldRetry: true}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseLen))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return DeliveryResult{Success: true, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors are final, except timeouts and throttling.
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests,
		}
	default:
		return DeliveryResult{
			StatusCode:  resp.StatusCode,
			Error:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			ShouldRetry: true,
		}
	}
}

// calculateBackoff returns InitialBackoff * 2^(attempt-1), capped at MaxBackoff.
func calculateBackoff(attempt int64) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := time.Duration(float64(InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	return backoff
}
