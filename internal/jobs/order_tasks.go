package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storefront.kajin.shop/shopdb"
)

// CloseOrder transitions an order out of pending and restores the reserved
// stock. It reports false without error when the order already left pending,
// which makes both the delayed close job and the user-initiated cancel
// idempotent against each other and against payment.
func CloseOrder(ctx context.Context, store *shopdb.Client, orderID int64, toStatus string) (bool, error) {
	var closed bool

	err := store.WithTx(func(q *shopdb.Queries) error {
		ok, err := q.TransitionOrderStatus(ctx, orderID, shopdb.OrderStatusPending, toStatus)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		items, err := q.ListOrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if !item.SkuID.Valid {
				continue
			}
			if err := q.RestoreSKUStock(ctx, item.SkuID.Int64); err != nil {
				return fmt.Errorf("restoring stock for sku %d: %w", item.SkuID.Int64, err)
			}
		}

		closed = true
		return nil
	})

	return closed, err
}

// OrderCloser handles order.close_expired jobs.
type OrderCloser struct {
	store  *shopdb.Client
	logger *slog.Logger
}

func NewOrderCloser(store *shopdb.Client, logger *slog.Logger) *OrderCloser {
	return &OrderCloser{store: store, logger: logger}
}

// CloseExpired closes a pending order whose expiry has passed. An order that
// was paid or cancelled in the meantime is left alone.
func (c *OrderCloser) CloseExpired(ctx context.Context, payload []byte) error {
	var p CloseOrderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding close payload: %w", err)
	}

	order, err := c.store.Queries.GetOrder(ctx, p.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		c.logger.Warn("close job for unknown order", "order_id", p.OrderID)
		return nil
	}
	if err != nil {
		return err
	}

	if order.Status != shopdb.OrderStatusPending {
		c.logger.Debug("order no longer pending, skipping close",
			"order_id", order.ID, "status", order.Status)
		return nil
	}

	// The job can fire early if the order's expiry was pushed out after it
	// was scheduled.
	if order.ExpireTime.Valid && order.ExpireTime.Int64 > time.Now().Unix() {
		c.logger.Debug("order not yet expired, skipping close", "order_id", order.ID)
		return nil
	}

	closed, err := CloseOrder(ctx, c.store, order.ID, shopdb.OrderStatusTimeoutClosed)
	if err != nil {
		return fmt.Errorf("closing order %d: %w", order.ID, err)
	}
	if closed {
		c.logger.Info("closed expired order", "order_id", order.ID)
	}
	return nil
}
