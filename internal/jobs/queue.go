// Package jobs implements the delayed job queue: enqueueing, the worker pool
// that executes due jobs, and the periodic scheduler. The queue lives in the
// shop database, so enqueueing an order's close job commits atomically with
// the order itself.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storefront.kajin.shop/shopdb"
)

// Job kinds understood by the worker.
const (
	KindCloseExpiredOrder = "order.close_expired"
)

// Queue enqueues delayed jobs. Every method takes the Queries to write
// through, so a caller inside a transaction commits the job together with
// its own rows.
type Queue struct {
	logger *slog.Logger
}

func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{logger: logger}
}

// Enqueue schedules a job of the given kind to run no earlier than runAt.
// The payload is marshaled to JSON.
func (q *Queue) Enqueue(ctx context.Context, queries *shopdb.Queries, kind string, payload any, runAt time.Time) (shopdb.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return shopdb.Job{}, fmt.Errorf("marshaling payload for %s: %w", kind, err)
	}

	job, err := queries.EnqueueJob(ctx, shopdb.EnqueueJobParams{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: string(raw),
		RunAt:   runAt.Unix(),
	})
	if err != nil {
		return shopdb.Job{}, fmt.Errorf("enqueueing %s: %w", kind, err)
	}

	if q.logger != nil {
		q.logger.Debug("job enqueued", "job_id", job.ID, "kind", kind, "run_at", runAt.Unix())
	}
	return job, nil
}

// CloseOrderPayload is the payload of an order.close_expired job.
type CloseOrderPayload struct {
	OrderID int64 `json:"order_id"`
}

// EnqueueOrderClose schedules the automatic close of a pending order at its
// expiry instant.
func (q *Queue) EnqueueOrderClose(ctx context.Context, queries *shopdb.Queries, orderID int64, expireAt time.Time) (shopdb.Job, error) {
	return q.Enqueue(ctx, queries, KindCloseExpiredOrder, CloseOrderPayload{OrderID: orderID}, expireAt)
}
