package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Runner dispatches runs asynchronously with bounded concurrency.
// Dispatch never blocks; queued runs wait for a slot in their own goroutine.
type Runner struct {
	ctx    context.Context
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRunner creates a Runner whose runs are bound to ctx.
func NewRunner(ctx context.Context, limit int64, logger *slog.Logger) *Runner {
	if limit < 1 {
		limit = 1
	}
	return &Runner{
		ctx:    ctx,
		sem:    semaphore.NewWeighted(limit),
		logger: logger.With("component", "runner"),
	}
}

// Dispatch schedules fn. Runs still queued when the Runner's context ends are dropped.
func (r *Runner) Dispatch(fn func(ctx context.Context)) {
	r.wg.Go(func() {
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.logger.Warn("run dropped before start", "error", err)
			return
		}
		defer r.sem.Release(1)
		fn(r.ctx)
	})
}

// Wait blocks until every dispatched run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
