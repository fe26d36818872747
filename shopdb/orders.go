package shopdb

import (
	"context"
	"database/sql"
	"time"
)

type CreateOrderParams struct {
	UserID           int64
	Name             string
	TotalAmountCents int64
	ExpireTime       int64
	PaymentType      string
	MerchantOrderNo  string
	SerialNo         string
}

const orderColumns = `id, user_id, name, status, total_amount_cents, pay_time, expire_time,
	payment_type, merchant_order_no, serial_no, remark, created_at, updated_at`

func (q *Queries) CreateOrder(ctx context.Context, p CreateOrderParams) (Order, error) {
	now := time.Now().Unix()
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, name, status, total_amount_cents, expire_time, payment_type,
			merchant_order_no, serial_no, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+orderColumns,
		p.UserID, p.Name, OrderStatusPending, p.TotalAmountCents, p.ExpireTime, p.PaymentType,
		p.MerchantOrderNo, p.SerialNo, now, now)
	return scanOrder(row)
}

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

func (q *Queries) GetOrderByMerchantOrderNo(ctx context.Context, merchantOrderNo string) (Order, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE merchant_order_no = ?`, merchantOrderNo)
	return scanOrder(row)
}

func scanOrder(row *sql.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Name, &o.Status, &o.TotalAmountCents, &o.PayTime,
		&o.ExpireTime, &o.PaymentType, &o.MerchantOrderNo, &o.SerialNo, &o.Remark,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (q *Queries) ListOrdersForUser(ctx context.Context, userID, limit, offset int64) ([]Order, int64, error) {
	var total int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() // nolint:errcheck

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Name, &o.Status, &o.TotalAmountCents, &o.PayTime,
			&o.ExpireTime, &o.PaymentType, &o.MerchantOrderNo, &o.SerialNo, &o.Remark,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// TransitionOrderStatus moves an order from one status to another. It reports
// false when the order was not in the expected status, which callers treat as
// a lost race rather than an error.
func (q *Queries) TransitionOrderStatus(ctx context.Context, orderID int64, from, to string) (bool, error) {
	now := time.Now().Unix()
	query := `UPDATE orders SET status = ?, updated_at = ?`
	args := []any{to, now}
	if to == OrderStatusPaid {
		query += `, pay_time = ?`
		args = append(args, now)
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, orderID, from)

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListExpiredPendingOrders returns pending orders whose expiry has passed,
// oldest first. Used by the scheduler sweep.
func (q *Queries) ListExpiredPendingOrders(ctx context.Context, now, limit int64) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = ? AND expire_time IS NOT NULL AND expire_time <= ?
		 ORDER BY expire_time LIMIT ?`, OrderStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Name, &o.Status, &o.TotalAmountCents, &o.PayTime,
			&o.ExpireTime, &o.PaymentType, &o.MerchantOrderNo, &o.SerialNo, &o.Remark,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderItemParams struct {
	OrderID         int64
	ItemType        string
	ProductID       int64
	SkuID           sql.NullInt64
	ProductName     string
	SkuName         sql.NullString
	Quantity        int64
	UnitPriceCents  int64
	TotalPriceCents int64
}

func (q *Queries) CreateOrderItem(ctx context.Context, p CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO order_items (order_id, item_type, product_id, sku_id, product_name, sku_name,
			quantity, unit_price_cents, total_price_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, order_id, item_type, product_id, sku_id, product_name, sku_name, quantity, unit_price_cents, total_price_cents`,
		p.OrderID, p.ItemType, p.ProductID, p.SkuID, p.ProductName, p.SkuName,
		p.Quantity, p.UnitPriceCents, p.TotalPriceCents)
	var item OrderItem
	err := row.Scan(&item.ID, &item.OrderID, &item.ItemType, &item.ProductID, &item.SkuID,
		&item.ProductName, &item.SkuName, &item.Quantity, &item.UnitPriceCents, &item.TotalPriceCents)
	return item, err
}

func (q *Queries) ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, order_id, item_type, product_id, sku_id, product_name, sku_name, quantity, unit_price_cents, total_price_cents
		 FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ItemType, &item.ProductID, &item.SkuID,
			&item.ProductName, &item.SkuName, &item.Quantity, &item.UnitPriceCents, &item.TotalPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type CreatePaymentParams struct {
	OrderID         int64
	MerchantOrderNo string
	TransactionID   sql.NullString
	TradeState      string
	AmountCents     int64
	PayerOpenID     sql.NullString
	RawNotify       sql.NullString
}

func (q *Queries) CreatePayment(ctx context.Context, p CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, merchant_order_no, transaction_id, trade_state, amount_cents, payer_openid, raw_notify, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, order_id, merchant_order_no, transaction_id, trade_state, amount_cents, payer_openid, raw_notify, created_at`,
		p.OrderID, p.MerchantOrderNo, p.TransactionID, p.TradeState, p.AmountCents, p.PayerOpenID, p.RawNotify, time.Now().Unix())
	var pay Payment
	err := row.Scan(&pay.ID, &pay.OrderID, &pay.MerchantOrderNo, &pay.TransactionID, &pay.TradeState,
		&pay.AmountCents, &pay.PayerOpenID, &pay.RawNotify, &pay.CreatedAt)
	return pay, err
}

func (q *Queries) GetPaymentByTransactionID(ctx context.Context, transactionID string) (Payment, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, order_id, merchant_order_no, transaction_id, trade_state, amount_cents, payer_openid, raw_notify, created_at
		 FROM payments WHERE transaction_id = ?`, transactionID)
	var pay Payment
	err := row.Scan(&pay.ID, &pay.OrderID, &pay.MerchantOrderNo, &pay.TransactionID, &pay.TradeState,
		&pay.AmountCents, &pay.PayerOpenID, &pay.RawNotify, &pay.CreatedAt)
	return pay, err
}

// Dashboard aggregates for the admin overview.

func (q *Queries) CountPaidOrders(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE status = ?`, OrderStatusPaid).Scan(&n)
	return n, err
}

func (q *Queries) SumPaidRevenueCents(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT SUM(total_amount_cents) FROM orders WHERE status = ?`, OrderStatusPaid).Scan(&n)
	return n.Int64, err
}
