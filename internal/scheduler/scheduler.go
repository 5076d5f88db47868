// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance: webhook retries and
// retention cleanup of audit events and finished deliveries.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
)

// Default schedules.
const (
	RetrySchedule = "* * * * *"
	PurgeSchedule = "0 3 * * *"

	// retryBatch caps how many due deliveries one tick re-queues.
	retryBatch = 100
)

// Retrier re-queues webhook deliveries whose retry time has passed.
type Retrier interface {
	RetryDue(ctx context.Context, limit int64) (int, error)
}

// Scheduler owns the cron instance and the maintenance jobs.
type Scheduler struct {
	queries   *store.Queries
	retrier   Retrier
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a scheduler. A nil retrier disables the retry job and a
// non-positive retention disables the purge job.
func New(db *sql.DB, retrier Retrier, retention time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		queries:   store.New(db),
		retrier:   retrier,
		retention: retention,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.retrier != nil {
		if _, err := s.cron.AddFunc(RetrySchedule, s.job("webhook_retry", s.RunWebhookRetries)); err != nil {
			return fmt.Errorf("scheduling webhook retries: %w", err)
		}
	}
	if s.retention > 0 {
		if _, err := s.cron.AddFunc(PurgeSchedule, s.job("retention_purge", s.PurgeOld)); err != nil {
			return fmt.Errorf("scheduling purge: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	}
}

// RunWebhookRetries re-queues due webhook deliveries.
func (s *Scheduler) RunWebhookRetries(ctx context.Context) error {
	n, err := s.retrier.RetryDue(ctx, retryBatch)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("re-queued webhook deliveries", "count", n)
	}
	return nil
}

// PurgeResult counts rows removed by PurgeOld.
type PurgeResult struct {
	Events     int64
	Deliveries int64
}

// PurgeOld deletes audit events and finished deliveries older than the
// retention window, then records a system event with the counts.
func (s *Scheduler) PurgeOld(ctx context.Context) error {
	_, err := s.Purge(ctx)
	return err
}

// Purge is PurgeOld returning the counts.
func (s *Scheduler) Purge(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult
	now := s.now()
	cutoff := now.Add(-s.retention)

	n, err := s.queries.DeleteOldEvents(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("purging events: %w", err)
	}
	res.Events = n

	n, err = s.queries.DeleteOldDeliveries(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("purging deliveries: %w", err)
	}
	res.Deliveries = n

	if res.Events == 0 && res.Deliveries == 0 {
		return res, nil
	}

	s.logger.Info("retention purge", "events", res.Events, "deliveries", res.Deliveries)
	_, err = s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     model.EventLevelInfo,
		Category:  model.EventCategorySystem,
		Message:   fmt.Sprintf("Retention purge removed %d events and %d deliveries", res.Events, res.Deliveries),
		Metadata:  fmt.Sprintf(`{"events":%d,"deliveries":%d,"cutoff":%q}`, res.Events, res.Deliveries, cutoff.Format(time.RFC3339)),
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Warn("failed to log purge event", "error", err)
	}
	return res, nil
}
