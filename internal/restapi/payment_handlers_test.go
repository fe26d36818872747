package restapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront.kajin.shop/internal/pay"
	"storefront.kajin.shop/shopdb"
)

func linkWechatAuth(t *testing.T, api *RestAPI, userID int64, openID string) {
	t.Helper()
	_, err := api.Store.Queries.InsertUserAuth(context.Background(), userID,
		shopdb.AuthTypeWechatMiniProgram,
		sql.NullString{String: openID, Valid: true}, sql.NullString{})
	require.NoError(t, err)
}

func TestPrepaySignsSession(t *testing.T) {
	api, payments := newTestAPI(t)

	user, token := createTestUser(t, api, "shopper", "correct-horse-battery", false)
	linkWechatAuth(t, api, user.ID, "openid-123")
	product, sku := seedApprovedProduct(t, api, "laser engraver", 5)
	orderID := createOrderViaAPI(t, api, token, product.ID, sku.ID)

	rr := doRequest(t, api, http.MethodGet, fmt.Sprintf("/api/payment/prepay?orderId=%d", orderID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	env := decodeEnvelope(t, rr)
	require.True(t, env.IsSuccess, "message: %s", env.Message)

	var params pay.ClientParams
	require.NoError(t, json.Unmarshal(env.Data, &params))
	assert.Equal(t, "wx-prepay-test", params.PrepayID)
	assert.Equal(t, "prepay_id=wx-prepay-test", params.Package)

	// The provider got the order's amount and identity.
	assert.EqualValues(t, 1250, payments.lastPrepay.AmountCents)
	assert.Equal(t, "openid-123", payments.lastPrepay.OpenID)
	assert.Contains(t, payments.lastPrepay.Description, "laser engraver")
}

func TestPrepayBusinessErrors(t *testing.T) {
	api, payments := newTestAPI(t)

	user, token := createTestUser(t, api, "shopper", "correct-horse-battery", false)
	product, sku := seedApprovedProduct(t, api, "laser engraver", 5)
	orderID := createOrderViaAPI(t, api, token, product.ID, sku.ID)

	t.Run("no linked wechat identity", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodGet, fmt.Sprintf("/api/payment/prepay?orderId=%d", orderID), token, nil)
		env := decodeEnvelope(t, rr)
		assert.False(t, env.IsSuccess)
	})

	linkWechatAuth(t, api, user.ID, "openid-123")

	t.Run("provider failure surfaces as business error", func(t *testing.T) {
		payments.prepayErr = errors.New("provider down")
		defer func() { payments.prepayErr = nil }()

		rr := doRequest(t, api, http.MethodGet, fmt.Sprintf("/api/payment/prepay?orderId=%d", orderID), token, nil)
		env := decodeEnvelope(t, rr)
		assert.False(t, env.IsSuccess)
	})

	t.Run("cancelled order cannot start payment", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", orderID), token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doRequest(t, api, http.MethodGet, fmt.Sprintf("/api/payment/prepay?orderId=%d", orderID), token, nil)
		env := decodeEnvelope(t, rr)
		assert.False(t, env.IsSuccess)
	})
}

func TestPaymentNotifyMarksOrderPaidAndFulfills(t *testing.T) {
	api, payments := newTestAPI(t)
	ctx := context.Background()

	_, token := createTestUser(t, api, "shopper", "correct-horse-battery", false)
	product, sku := seedApprovedProduct(t, api, "laser engraver", 5)
	orderID := createOrderViaAPI(t, api, token, product.ID, sku.ID)

	order, err := api.Store.Queries.GetOrder(ctx, orderID)
	require.NoError(t, err)

	payments.txn = pay.Transaction{
		OutTradeNo:    order.MerchantOrderNo.String,
		TransactionID: "4200001234",
		TradeState:    "SUCCESS",
	}
	payments.txn.Amount.PayerTotal = order.TotalAmountCents
	payments.txn.Payer.OpenID = "openid-123"

	body := map[string]any{
		"id":         "notify-1",
		"event_type": pay.EventTransactionSuccess,
		"resource":   map[string]any{"ciphertext": "ZW5j", "nonce": "abcdefghijkl"},
	}

	rr := doRequest(t, api, http.MethodPost, "/api/payment/notify", "", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "SUCCESS", rr.Body.String())

	paid, err := api.Store.Queries.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, shopdb.OrderStatusPaid, paid.Status)
	assert.True(t, paid.PayTime.Valid)

	payment, err := api.Store.Queries.GetPaymentByTransactionID(ctx, "4200001234")
	require.NoError(t, err)
	assert.Equal(t, orderID, payment.OrderID)
	assert.Equal(t, order.TotalAmountCents, payment.AmountCents)

	// A duplicate callback acknowledges without a second payment row.
	rr = doRequest(t, api, http.MethodPost, "/api/payment/notify", "", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "SUCCESS", rr.Body.String())

	var count int64
	require.NoError(t, api.Store.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE order_id = ?`, orderID).Scan(&count))
	assert.EqualValues(t, 1, count)

	// Stock reservation stays consumed on a paid order.
	after, err := api.Store.Queries.GetSKU(ctx, sku.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, after.Stock)
}

func TestPaymentNotifyRejectsBadSignature(t *testing.T) {
	api, payments := newTestAPI(t)
	payments.verifyErr = errors.New("signature mismatch")

	body := map[string]any{
		"id":         "notify-1",
		"event_type": pay.EventTransactionSuccess,
		"resource":   map[string]any{"ciphertext": "ZW5j", "nonce": "abcdefghijkl"},
	}
	rr := doRequest(t, api, http.MethodPost, "/api/payment/notify", "", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentNotifyUnknownOrderRetries(t *testing.T) {
	api, payments := newTestAPI(t)

	payments.txn = pay.Transaction{
		OutTradeNo:    "MGKW-nonexistent",
		TransactionID: "4200009999",
	}
	body := map[string]any{
		"id":         "notify-2",
		"event_type": pay.EventTransactionSuccess,
		"resource":   map[string]any{"ciphertext": "ZW5j", "nonce": "abcdefghijkl"},
	}

	// 500 tells the provider to call back again later.
	rr := doRequest(t, api, http.MethodPost, "/api/payment/notify", "", body)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
