package shopdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, q *Queries, userID int64) Order {
	t.Helper()
	order, err := q.CreateOrder(context.Background(), CreateOrderParams{
		UserID:           userID,
		Name:             "engraver",
		TotalAmountCents: 1250,
		ExpireTime:       time.Now().Add(30 * time.Minute).Unix(),
		PaymentType:      "wechat",
		MerchantOrderNo:  "MGKW-test-" + time.Now().Format("150405.000000000"),
		SerialNo:         "SN-test-" + time.Now().Format("150405.000000000"),
	})
	require.NoError(t, err)
	return order
}

func TestOrderStatusTransitions(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	order := seedOrder(t, client.Queries, 1)
	assert.Equal(t, OrderStatusPending, order.Status)

	ok, err := client.Queries.TransitionOrderStatus(ctx, order.ID, OrderStatusPending, OrderStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	paid, err := client.Queries.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, paid.Status)
	assert.True(t, paid.PayTime.Valid)

	// Paid is terminal: a late timeout close loses the race.
	ok, err = client.Queries.TransitionOrderStatus(ctx, order.ID, OrderStatusPending, OrderStatusTimeoutClosed)
	require.NoError(t, err)
	assert.False(t, ok)

	still, err := client.Queries.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, still.Status)
}

func TestListExpiredPendingOrders(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	expired, err := client.Queries.CreateOrder(ctx, CreateOrderParams{
		UserID:           1,
		Name:             "stale order",
		TotalAmountCents: 500,
		ExpireTime:       time.Now().Add(-time.Minute).Unix(),
		PaymentType:      "wechat",
		MerchantOrderNo:  "MGKW-expired",
		SerialNo:         "SN-expired",
	})
	require.NoError(t, err)

	fresh := seedOrder(t, client.Queries, 1)

	due, err := client.Queries.ListExpiredPendingOrders(ctx, time.Now().Unix(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, expired.ID, due[0].ID)
	assert.NotEqual(t, fresh.ID, due[0].ID)
}

func TestOrderItemsAndListing(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	order := seedOrder(t, client.Queries, 7)

	_, err := client.Queries.CreateOrderItem(ctx, CreateOrderItemParams{
		OrderID:         order.ID,
		ItemType:        ItemTypePhysical,
		ProductID:       3,
		SkuID:           sql.NullInt64{Int64: 4, Valid: true},
		ProductName:     "engraver",
		SkuName:         sql.NullString{String: "default", Valid: true},
		Quantity:        1,
		UnitPriceCents:  1250,
		TotalPriceCents: 1250,
	})
	require.NoError(t, err)

	items, err := client.Queries.ListOrderItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ItemTypePhysical, items[0].ItemType)

	orders, total, err := client.Queries.ListOrdersForUser(ctx, 7, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	// Another user sees nothing.
	orders, total, err = client.Queries.ListOrdersForUser(ctx, 8, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestDashboardAggregates(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first := seedOrder(t, client.Queries, 1)
	_ = seedOrder(t, client.Queries, 2)

	ok, err := client.Queries.TransitionOrderStatus(ctx, first.ID, OrderStatusPending, OrderStatusPaid)
	require.NoError(t, err)
	require.True(t, ok)

	paid, err := client.Queries.CountPaidOrders(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, paid)

	revenue, err := client.Queries.SumPaidRevenueCents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1250, revenue)
}
