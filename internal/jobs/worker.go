package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront.kajin.shop/shopdb"
)

// Handler executes one job. A nil return acknowledges the job; an error
// triggers a retry until the attempt cap is reached.
type Handler func(ctx context.Context, payload []byte) error

// Worker runs a pool of goroutines that claim and execute due jobs.
type Worker struct {
	store             *shopdb.Client
	logger            *slog.Logger
	concurrency       int
	pollInterval      time.Duration
	visibilityTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewWorker(store *shopdb.Client, logger *slog.Logger, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		store:             store,
		logger:            logger,
		concurrency:       concurrency,
		pollInterval:      time.Second,
		visibilityTimeout: 5 * time.Minute,
		handlers:          make(map[string]Handler),
	}
}

// Register binds a handler to a job kind. Registering after Run is not
// supported.
func (w *Worker) Register(kind string, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = handler
}

func (w *Worker) handler(kind string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[kind]
	return h, ok
}

// Run blocks until ctx is cancelled, executing due jobs on the pool.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker starting", "concurrency", w.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reclaimLoop(ctx)
	}()

	wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.store.Queries.ClaimDueJob(ctx, time.Now().Unix())
		if errors.Is(err, sql.ErrNoRows) {
			w.sleep(ctx)
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("claiming job failed", "error", err, "slot", slot)
			}
			w.sleep(ctx)
			continue
		}

		w.execute(ctx, job)
	}
}

func (w *Worker) execute(ctx context.Context, job shopdb.Job) {
	handler, ok := w.handler(job.Kind)
	if !ok {
		w.logger.Error("no handler for job kind", "kind", job.Kind, "job_id", job.ID)
		if err := w.store.Queries.MarkJobFailed(ctx, job.ID, "no handler registered"); err != nil {
			w.logger.Error("marking job failed", "error", err, "job_id", job.ID)
		}
		return
	}

	start := time.Now()
	err := w.runHandler(ctx, handler, job)
	if err == nil {
		if markErr := w.store.Queries.MarkJobDone(ctx, job.ID); markErr != nil {
			w.logger.Error("acknowledging job", "error", markErr, "job_id", job.ID)
		}
		w.logger.Info("job done", "job_id", job.ID, "kind", job.Kind,
			"duration_ms", float64(time.Since(start).Nanoseconds())/1e6)
		return
	}

	if job.Attempts >= job.MaxAttempts {
		w.logger.Error("job failed permanently", "job_id", job.ID, "kind", job.Kind,
			"attempts", job.Attempts, "error", err)
		if markErr := w.store.Queries.MarkJobFailed(ctx, job.ID, err.Error()); markErr != nil {
			w.logger.Error("marking job failed", "error", markErr, "job_id", job.ID)
		}
		return
	}

	delay := retryBackoff(job.Attempts)
	w.logger.Warn("job failed, retrying", "job_id", job.ID, "kind", job.Kind,
		"attempt", job.Attempts, "retry_in", delay.String(), "error", err)
	if retryErr := w.store.Queries.RetryJob(ctx, job.ID, time.Now().Add(delay).Unix(), err.Error()); retryErr != nil {
		w.logger.Error("requeueing job", "error", retryErr, "job_id", job.ID)
	}
}

// runHandler converts a handler panic into an error so one bad job cannot
// take down the pool.
func (w *Worker) runHandler(ctx context.Context, handler Handler, job shopdb.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, []byte(job.Payload))
}

// reclaimLoop periodically requeues jobs whose claim outlived the visibility
// timeout, recovering work lost to a dead worker.
func (w *Worker) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(w.visibilityTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-w.visibilityTimeout).Unix()
			n, err := w.store.Queries.ReclaimStuckJobs(ctx, cutoff)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Error("reclaiming stuck jobs", "error", err)
				}
				continue
			}
			if n > 0 {
				w.logger.Warn("reclaimed stuck jobs", "count", n)
			}
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func retryBackoff(attempt int64) time.Duration {
	delay := time.Duration(attempt*attempt) * 10 * time.Second
	if delay > 10*time.Minute {
		delay = 10 * time.Minute
	}
	return delay
}
