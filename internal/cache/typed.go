// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TypedCache stores JSON-encoded values of T in a Cacher. Concurrent loads
// of the same key share a single loader call. A load that overlaps a Delete
// or DeletePrefix returns its value but does not store it.
type TypedCache[T any] struct {
	backend Cacher
	prefix  string
	ttl     time.Duration
	group   singleflight.Group

	mu    sync.Mutex
	epoch uint64
	gens  map[string]uint64
}

// NewTypedCache creates a TypedCache whose keys are namespaced by prefix.
func NewTypedCache[T any](backend Cacher, prefix string, ttl time.Duration) *TypedCache[T] {
	return &TypedCache[T]{backend: backend, prefix: prefix, ttl: ttl, gens: make(map[string]uint64)}
}

type generation struct {
	epoch, key uint64
}

func (c *TypedCache[T]) generation(key string) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{epoch: c.epoch, key: c.gens[key]}
}

// Get returns the cached value and whether it was found.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	data, err := c.backend.Get(ctx, c.prefix+key)
	if err != nil {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false
	}
	return value, true
}

// Set stores value under key.
func (c *TypedCache[T]) Set(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	return c.backend.Set(ctx, c.prefix+key, data, c.ttl)
}

// Delete removes key.
func (c *TypedCache[T]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	c.gens[key]++
	c.mu.Unlock()
	c.group.Forget(key)
	return c.backend.Delete(ctx, c.prefix+key)
}

// DeletePrefix removes every key starting with prefix.
func (c *TypedCache[T]) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
	return c.backend.DeleteByPrefix(ctx, c.prefix+prefix)
}

// GetOrLoad returns the cached value or calls load and caches its result.
// A failed Set is ignored; the loaded value is still returned. The result is
// not cached when the key was deleted while load ran.
func (c *TypedCache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		gen := c.generation(key)
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen == (generation{epoch: c.epoch, key: c.gens[key]}) {
			_ = c.Set(ctx, key, value)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
