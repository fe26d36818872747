package jobs

import (
	"context"
	"log/slog"
	"time"

	"storefront.kajin.shop/internal/logging"
	"storefront.kajin.shop/shopdb"
)

// Scheduler runs the periodic maintenance work: a sweep that closes pending
// orders whose delayed close job was lost, and cleanup of finished jobs and
// expired tokens. It backstops the worker rather than replacing it, so the
// process is safe to run alongside any number of workers.
type Scheduler struct {
	store  *shopdb.Client
	logger *slog.Logger

	sweepInterval   time.Duration
	cleanupInterval time.Duration
	jobRetention    time.Duration
	sweepBatchSize  int64
}

func NewScheduler(store *shopdb.Client, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:           store,
		logger:          logger,
		sweepInterval:   time.Minute,
		cleanupInterval: time.Hour,
		jobRetention:    7 * 24 * time.Hour,
		sweepBatchSize:  100,
	}
}

// Run blocks until ctx is cancelled, firing each entry on its interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler starting",
		"sweep_interval", s.sweepInterval.String(),
		"cleanup_interval", s.cleanupInterval.String())

	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()
	cleanup := time.NewTicker(s.cleanupInterval)
	defer cleanup.Stop()

	// One sweep at startup catches orders that expired while nothing ran.
	s.SweepExpiredOrders(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-sweep.C:
			s.SweepExpiredOrders(ctx)
		case <-cleanup.C:
			s.Cleanup(ctx)
		}
	}
}

// SweepExpiredOrders closes pending orders past their expiry. It works in
// batches so one huge backlog cannot hold a transaction open for long.
func (s *Scheduler) SweepExpiredOrders(ctx context.Context) {
	start := time.Now()
	for {
		orders, err := s.store.Queries.ListExpiredPendingOrders(ctx, time.Now().Unix(), s.sweepBatchSize)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("listing expired orders", "error", err)
			}
			return
		}
		if len(orders) == 0 {
			return
		}

		var closed int
		for _, order := range orders {
			ok, err := CloseOrder(ctx, s.store, order.ID, shopdb.OrderStatusTimeoutClosed)
			if err != nil {
				s.logger.Error("closing expired order", "error", err, "order_id", order.ID)
				continue
			}
			if ok {
				closed++
			}
		}
		logging.LogOperation(s.logger, "expired order sweep",
			slog.Int("found", len(orders)),
			slog.Int("closed", closed),
			slog.Duration("duration", time.Since(start)))

		if int64(len(orders)) < s.sweepBatchSize {
			return
		}
	}
}

// Cleanup removes finished jobs past retention and expired auth tokens.
func (s *Scheduler) Cleanup(ctx context.Context) {
	now := time.Now()

	purged, err := s.store.Queries.PurgeFinishedJobs(ctx, now.Add(-s.jobRetention).Unix())
	if err != nil {
		s.logger.Error("purging finished jobs", "error", err)
	} else if purged > 0 {
		logging.LogOperation(s.logger, "purged finished jobs", slog.Int64("count", purged))
	}

	deleted, err := s.store.Queries.DeleteExpiredTokens(ctx, now.Unix())
	if err != nil {
		s.logger.Error("deleting expired tokens", "error", err)
	} else if deleted > 0 {
		logging.LogOperation(s.logger, "deleted expired tokens", slog.Int64("count", deleted))
	}
}
