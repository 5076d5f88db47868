// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel carrying changes between instances.
const DefaultChannel = "evsite:changes"

// RedisBridge publishes changes through Redis pub/sub and feeds every
// received change into the local Hub, so all instances see all changes.
// Local subscribers receive their own instance's changes via Redis too.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

// NewRedisBridge creates a bridge; Run must be started to receive.
func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{client: client, channel: channel, hub: hub, logger: logger}
}

// Publish sends c to Redis. When Redis is unavailable the change is
// delivered to local subscribers only.
func (b *RedisBridge) Publish(ctx context.Context, c Change) {
	payload, err := json.Marshal(c)
	if err == nil {
		err = b.client.Publish(ctx, b.channel, payload).Err()
	}
	if err != nil {
		b.logger.Warn("realtime publish failed, delivering locally",
			"table", c.Table, "project_id", c.ProjectID, "error", err)
		b.hub.Publish(ctx, c)
	}
}

// Run subscribes to the channel and forwards changes until ctx is done.
// ready, when non-nil, is closed once the subscription is confirmed.
func (b *RedisBridge) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.logger.Warn("dropping malformed realtime message", "error", err)
				continue
			}
			b.hub.Publish(ctx, c)
		}
	}
}

var _ Publisher = (*RedisBridge)(nil)
