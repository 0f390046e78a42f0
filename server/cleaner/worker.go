// Package cleaner enforces the retention policy: messages older than the
// retention window are deleted on a fixed schedule, plus once shortly after
// process start so a long-stopped instance catches up immediately. A failed
// run is logged and the schedule continues; retention lapses self-correct on
// the next tick.
package cleaner

import (
	"context"
	"time"

	"github.com/inboxd/inboxd/logger"
	"github.com/inboxd/inboxd/pkg/metrics"
)

// Store is the slice of the message store the enforcer needs. It is an
// interface so tests can substitute a mock.
type Store interface {
	DeleteEmailsOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type Worker struct {
	store        Store
	window       time.Duration
	interval     time.Duration
	startupDelay time.Duration
	stopCh       chan struct{}
}

// New creates a retention worker deleting messages older than window every
// interval, with a first run after startupDelay.
func New(store Store, window, interval, startupDelay time.Duration) *Worker {
	return &Worker{
		store:        store,
		window:       window,
		interval:     interval,
		startupDelay: startupDelay,
		stopCh:       make(chan struct{}),
	}
}

// Start runs the enforcer in its own goroutine until the context is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	logger.Info("RETENTION: worker starting",
		"window", w.window, "interval", w.interval, "startup_delay", w.startupDelay)

	go func() {
		startup := time.NewTimer(w.startupDelay)
		defer startup.Stop()

		select {
		case <-ctx.Done():
			logger.Info("RETENTION: worker stopped")
			return
		case <-w.stopCh:
			logger.Info("RETENTION: worker stopped")
			return
		case <-startup.C:
			w.runOnce(ctx)
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("RETENTION: worker stopped")
				return
			case <-w.stopCh:
				logger.Info("RETENTION: worker stopped")
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()
}

// Stop signals the worker to stop.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) runOnce(ctx context.Context) {
	count, err := w.store.DeleteEmailsOlderThan(ctx, w.window)
	if err != nil {
		metrics.RetentionRuns.WithLabelValues("error").Inc()
		logger.Error("RETENTION: failed to delete old emails", "error", err)
		return
	}

	metrics.RetentionRuns.WithLabelValues("ok").Inc()
	metrics.RetentionDeleted.Add(float64(count))
	if count > 0 {
		logger.Info("RETENTION: deleted old emails", "count", count, "older_than", w.window)
	} else {
		logger.Debug("RETENTION: nothing to delete", "older_than", w.window)
	}
}
