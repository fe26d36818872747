// Package fulfill delivers what a paid order bought. Each order item type has
// its own handler: physical goods need nothing beyond the order state, vip
// items extend the buyer's membership, design items grant a license.
package fulfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"storefront.kajin.shop/shopdb"
)

// Handler fulfills a single order item inside the payment transaction.
type Handler interface {
	Handle(ctx context.Context, q *shopdb.Queries, order shopdb.Order, item shopdb.OrderItem) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, q *shopdb.Queries, order shopdb.Order, item shopdb.OrderItem) error

func (f HandlerFunc) Handle(ctx context.Context, q *shopdb.Queries, order shopdb.Order, item shopdb.OrderItem) error {
	return f(ctx, q, order, item)
}

// Service dispatches paid order items to type-specific handlers.
type Service struct {
	logger   *slog.Logger
	handlers map[string]Handler
}

func NewService(logger *slog.Logger) *Service {
	s := &Service{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
	s.handlers[shopdb.ItemTypePhysical] = HandlerFunc(handlePhysical)
	s.handlers[shopdb.ItemTypeVIP] = HandlerFunc(handleVIP)
	s.handlers[shopdb.ItemTypeDesign] = HandlerFunc(handleDesign)
	return s
}

// Fulfill runs every item of a paid order through its handler. It must run
// inside the same transaction that moved the order from pending to paid: the
// conditional transition fires at most once per order, which keeps
// fulfillment from replaying on a duplicate callback.
func (s *Service) Fulfill(ctx context.Context, q *shopdb.Queries, order shopdb.Order) error {
	items, err := q.ListOrderItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("listing items for order %d: %w", order.ID, err)
	}

	for _, item := range items {
		handler, ok := s.handlers[item.ItemType]
		if !ok {
			s.logger.Error("no fulfillment handler for item type",
				"item_type", item.ItemType, "order_id", order.ID, "item_id", item.ID)
			continue
		}
		if err := handler.Handle(ctx, q, order, item); err != nil {
			return fmt.Errorf("fulfilling item %d (%s): %w", item.ID, item.ItemType, err)
		}
		s.logger.Info("order item fulfilled",
			"order_id", order.ID, "item_id", item.ID, "item_type", item.ItemType)
	}
	return nil
}

func handlePhysical(ctx context.Context, q *shopdb.Queries, order shopdb.Order, item shopdb.OrderItem) error {
	// Shipping is handled out of band; the paid order is the deliverable here.
	return nil
}

func handleVIP(ctx context.Context, q *shopdb.Queries, order shopdb.Order, item shopdb.OrderItem) error {
	if !item.SkuID.Valid {
		return fmt.Errorf("vip item %d has no sku", item.ID)
	}
	sku, err := q.GetSKU(ctx, item.SkuID.Int64)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("vip item %d references missing sku %d", item.ID, item.SkuID.Int64)
	}
	if err != nil {
		return err
	}
	if !sku.VipPlanDays.Valid || sku.VipPlanDays.Int64 <= 0 {
		return fmt.Errorf("sku %d carries no vip plan", sku.ID)
	}

	days := sku.VipPlanDays.Int64 * item.Quantity
	if _, err := q.ExtendUserVIP(ctx, order.UserID, days); err != nil {
		return fmt.Errorf("extending vip for user %d: %w", order.UserID, err)
	}
	return nil
}

func handleDesign(ctx context.Context, q *shopdb.Queries, order shopdb.Order, item shopdb.OrderItem) error {
	if !item.SkuID.Valid {
		return fmt.Errorf("design item %d has no sku", item.ID)
	}
	sku, err := q.GetSKU(ctx, item.SkuID.Int64)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("design item %d references missing sku %d", item.ID, item.SkuID.Int64)
	}
	if err != nil {
		return err
	}
	if !sku.DesignID.Valid || sku.DesignID.Int64 <= 0 {
		return fmt.Errorf("sku %d carries no design", sku.ID)
	}

	if err := q.GrantDesignLicense(ctx, order.UserID, sku.DesignID.Int64, order.ID); err != nil {
		return fmt.Errorf("granting design license to user %d: %w", order.UserID, err)
	}
	return nil
}
