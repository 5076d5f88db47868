// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
)

// Delivery limits.
const (
	MaxAttempts    = 5
	InitialBackoff = time.Minute
	MaxBackoff     = 24 * time.Hour
	RequestTimeout = 30 * time.Second
	MaxResponseLen = 10 * 1024
	UserAgent      = "evsite-webhooks/1.0"
)

// Signature and metadata headers sent with every delivery.
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderEvent      = "X-Webhook-Event"
	HeaderDeliveryID = "X-Webhook-Delivery-ID"
)

// DeliveryResult is the outcome of one HTTP attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

func (d *Dispatcher) processDelivery(ctx context.Context, qd *QueuedDelivery) {
	record, err := d.queries.GetWebhookDelivery(ctx, qd.DeliveryID)
	if err != nil {
		d.logger.Error("failed to load webhook delivery", "error", err, "delivery_id", qd.DeliveryID)
		return
	}
	if record.Status != model.DeliveryStatusPending {
		return
	}

	result := d.attemptDelivery(ctx, qd)
	now := d.now()

	if result.Success {
		err = d.queries.UpdateDeliverySuccess(ctx, store.UpdateDeliverySuccessParams{
			ResponseCode: util.NullInt64FromValue(int64(result.StatusCode)),
			ResponseBody: util.NullStringFromValue(result.ResponseBody),
			DeliveredAt:  util.NullTimeFromValue(now),
			UpdatedAt:    now,
			ID:           qd.DeliveryID,
		})
		if err != nil {
			d.logger.Error("failed to record webhook success", "error", err, "delivery_id", qd.DeliveryID)
			return
		}
		d.logger.Info("webhook delivered",
			"delivery_id", qd.DeliveryID, "webhook_id", qd.WebhookID, "status_code", result.StatusCode)
		return
	}

	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	attempts := record.Attempts + 1

	if !result.ShouldRetry || attempts >= MaxAttempts {
		err = d.queries.UpdateDeliveryDead(ctx, store.UpdateDeliveryDeadParams{
			ErrorMessage: util.NullStringFromValue(errMsg),
			UpdatedAt:    now,
			ID:           qd.DeliveryID,
		})
		if err != nil {
			d.logger.Error("failed to mark webhook delivery dead", "error", err, "delivery_id", qd.DeliveryID)
			return
		}
		d.logger.Warn("webhook delivery failed permanently",
			"category", model.EventCategoryWebhook,
			"delivery_id", qd.DeliveryID, "webhook_id", qd.WebhookID,
			"attempts", attempts, "reason", errMsg)
		return
	}

	backoff := calculateBackoff(attempts)
	next := now.Add(backoff)
	err = d.queries.UpdateDeliveryRetry(ctx, store.UpdateDeliveryRetryParams{
		ResponseCode: util.NullInt64FromPositive(int64(result.StatusCode)),
		ResponseBody: util.NullStringFromValue(result.ResponseBody),
		ErrorMessage: util.NullStringFromValue(errMsg),
		NextRetryAt:  util.NullTimeFromValue(next),
		UpdatedAt:    now,
		ID:           qd.DeliveryID,
	})
	if err != nil {
		d.logger.Error("failed to schedule webhook retry", "error", err, "delivery_id", qd.DeliveryID)
		return
	}
	d.logger.Info("webhook delivery scheduled for retry",
		"delivery_id", qd.DeliveryID, "attempt", attempts, "backoff", backoff.String())
}

func (d *Dispatcher) attemptDelivery(ctx context.Context, qd *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, qd.URL, bytes.NewReader(qd.Payload))
	if err != nil {
		return DeliveryResult{Error: fmt.Errorf("building request: %w", err)}
	}

	// Custom headers first so they cannot replace the signature headers.
	for k, v := range qd.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderSignature, "sha256="+GenerateSignature(qd.Payload, qd.Secret))
	req.Header.Set(HeaderEvent, qd.Event)
	req.Header.Set(HeaderDeliveryID, strconv.FormatInt(qd.DeliveryID, 10))

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
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		result.ShouldRetry = true
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		result.ShouldRetry = false
	default:
		result.ShouldRetry = true
	}
	if !result.Success {
		result.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return result
}

// calculateBackoff doubles from InitialBackoff per attempt, capped at MaxBackoff.
func calculateBackoff(attempt int64) time.Duration {
	if attempt < 1 {
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
