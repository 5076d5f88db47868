// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package realtime fans out whole-table change notifications to connected
// clients, which reload the affected data when notified.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Tables that emit changes.
const (
	TableSiteSettings  = "site_settings"
	TableRegistrations = "registrations"
	TableProjects      = "projects"
	TableMedia         = "media"
)

// Change announces that rows of a table changed for a project. It carries
// no row data; subscribers refetch.
type Change struct {
	Table     string    `json:"table"`
	ProjectID int64     `json:"project_id"`
	Category  string    `json:"category,omitempty"`
	Action    string    `json:"action,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher announces changes.
type Publisher interface {
	Publish(ctx context.Context, c Change)
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Subscription receives the changes of one project, or of all projects
// when ProjectID is 0.
type Subscription struct {
	ProjectID int64
	ch        chan Change
	hub       *Hub
	once      sync.Once
}

// C returns the delivery channel. It is closed by Close or Hub.Close.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub delivers changes to in-process subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the change.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	closed  bool
	dropped atomic.Int64
}

// NewHub creates a Hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber for projectID (0 = all projects).
func (h *Hub) Subscribe(projectID int64) *Subscription {
	s := &Subscription{ProjectID: projectID, ch: make(chan Change, h.buffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		s.once.Do(func() {})
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
	}
	s.once.Do(func() { close(s.ch) })
}

// Publish delivers c to matching subscribers.
func (h *Hub) Publish(_ context.Context, c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.ProjectID != 0 && s.ProjectID != c.ProjectID {
			continue
		}
		select {
		case s.ch <- c:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close closes every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

var _ Publisher = (*Hub)(nil)
