// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"sync"
	"time"
)

// DebounceConfig controls coalescing of repeated events.
type DebounceConfig struct {
	// Interval is the quiet period after the last event before sending.
	Interval time.Duration
	// MaxWait bounds how long a stream of events can postpone sending.
	MaxWait time.Duration
}

// DefaultDebounceConfig returns a one second window capped at five seconds.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{Interval: time.Second, MaxWait: 5 * time.Second}
}

type pendingEvent struct {
	event     *Event
	timer     *time.Timer
	firstSeen time.Time
}

// Debouncer coalesces events about the same entity, such as an editor saving
// one page several times in a row, into a single delivery carrying the
// latest data.
type Debouncer struct {
	next    Sender
	config  DebounceConfig
	pending map[string]*pendingEvent
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	onError func(error, *Event)
}

// NewDebouncer wraps next. Errors from next are passed to onError when set.
func NewDebouncer(next Sender, config DebounceConfig, onError func(error, *Event)) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		next:    next,
		config:  config,
		pending: make(map[string]*pendingEvent),
		ctx:     ctx,
		cancel:  cancel,
		onError: onError,
	}
}

// Dispatch schedules event, replacing any pending event for the same entity.
func (d *Debouncer) Dispatch(_ context.Context, event *Event) error {
	key := event.key()
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if pe, ok := d.pending[key]; ok {
		pe.event = event
		if now.Sub(pe.firstSeen) >= d.config.MaxWait {
			d.sendLocked(key)
			return nil
		}
		pe.timer.Reset(d.config.Interval)
		return nil
	}

	d.pending[key] = &pendingEvent{
		event:     event,
		firstSeen: now,
		timer: time.AfterFunc(d.config.Interval, func() {
			d.mu.Lock()
			d.sendLocked(key)
			d.mu.Unlock()
		}),
	}
	return nil
}

// sendLocked forwards a pending event. Callers hold d.mu.
func (d *Debouncer) sendLocked(key string) {
	pe, ok := d.pending[key]
	if !ok {
		return
	}
	pe.timer.Stop()
	delete(d.pending, key)

	d.wg.Add(1)
	go func(event *Event) {
		defer d.wg.Done()
		if err := d.next.Dispatch(d.ctx, event); err != nil && d.onError != nil {
			d.onError(err, event)
		}
	}(pe.event)
}

// Flush sends every pending event now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.pending {
		d.sendLocked(key)
	}
}

// Stop flushes pending events and waits for them to be handed over.
func (d *Debouncer) Stop() {
	d.Flush()
	d.wg.Wait()
	d.cancel()
}

// PendingCount returns the number of events waiting to be sent.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

var _ Sender = (*Debouncer)(nil)
