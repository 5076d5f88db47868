// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/evsite-go/internal/cache"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/testutil"
	"github.com/olegiv/evsite-go/internal/webhook"
)

type recordingSender struct {
	mu     sync.Mutex
	events []*webhook.Event
}

func (r *recordingSender) Dispatch(_ context.Context, e *webhook.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSender) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	deps    Deps
	sender  *recordingSender
	hub     *realtime.Hub
	changes *realtime.Subscription
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.TestDB(t)

	backend := cache.NewMemoryCache(cache.MemoryOptions{DefaultTTL: time.Minute})
	mgr := cache.NewManager(backend, cache.Config{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mgr.Close() })

	hub := realtime.NewHub(64)
	t.Cleanup(hub.Close)

	env := &testEnv{sender: &recordingSender{}, hub: hub, changes: hub.Subscribe(0)}
	env.deps = Deps{
		DB:       db,
		Cache:    mgr,
		Realtime: hub,
		Webhooks: env.sender,
		Logger:   testutil.DiscardLogger(),
	}
	return env
}

// drain returns the changes published so far.
func (e *testEnv) drain() []realtime.Change {
	var out []realtime.Change
	for {
		select {
		case c := <-e.changes.C():
			out = append(out, c)
		default:
			return out
		}
	}
}
