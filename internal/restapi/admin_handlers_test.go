package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront.kajin.shop/internal/pay"
	"storefront.kajin.shop/shopdb"
)

func TestAdminUsersList(t *testing.T) {
	api, _ := newTestAPI(t)

	_, adminToken := createTestUser(t, api, "operator", "correct-horse-battery", true)
	createTestUser(t, api, "shopper-a", "correct-horse-battery", false)
	createTestUser(t, api, "shopper-b", "correct-horse-battery", false)

	rr := doRequest(t, api, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	env := decodeEnvelope(t, rr)
	require.True(t, env.IsSuccess)

	var page struct {
		List []struct {
			Username string   `json:"username"`
			Roles    []string `json:"roles"`
		} `json:"list"`
		Total   int64 `json:"total"`
		HasNext bool  `json:"hasNext"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 3, page.Total)
	assert.False(t, page.HasNext)

	byName := map[string][]string{}
	for _, u := range page.List {
		byName[u.Username] = u.Roles
	}
	assert.Contains(t, byName["operator"], AdminRoleName)
	assert.Empty(t, byName["shopper-a"])
}

func TestReviewProduct(t *testing.T) {
	api, _ := newTestAPI(t)
	ctx := context.Background()

	_, adminToken := createTestUser(t, api, "operator", "correct-horse-battery", true)

	product, err := api.Store.Queries.CreateProduct(ctx, shopdb.CreateProductParams{
		Name:          "pending widget",
		CategoryID:    1,
		SeriesID:      1,
		CreatorUserID: 1,
		ProductType:   shopdb.ProductTypePhysical,
	})
	require.NoError(t, err)

	t.Run("rejection requires a reason", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodPost,
			fmt.Sprintf("/api/admin/products/%d/review", product.ID), adminToken,
			map[string]any{"approve": false})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("reject with reason", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodPost,
			fmt.Sprintf("/api/admin/products/%d/review", product.ID), adminToken,
			map[string]any{"approve": false, "reason": "missing imagery"})
		require.Equal(t, http.StatusOK, rr.Code)
		require.True(t, decodeEnvelope(t, rr).IsSuccess)

		got, err := api.Store.Queries.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, shopdb.CheckStateRejected, got.CheckState)
	})

	t.Run("approve", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodPost,
			fmt.Sprintf("/api/admin/products/%d/review", product.ID), adminToken,
			map[string]any{"approve": true})
		require.Equal(t, http.StatusOK, rr.Code)
		require.True(t, decodeEnvelope(t, rr).IsSuccess)

		got, err := api.Store.Queries.GetProduct(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, shopdb.CheckStateApproved, got.CheckState)
	})

	t.Run("unknown product", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodPost,
			"/api/admin/products/999999/review", adminToken,
			map[string]any{"approve": true})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDashboardCountsPaidRevenue(t *testing.T) {
	api, payments := newTestAPI(t)
	ctx := context.Background()

	_, adminToken := createTestUser(t, api, "operator", "correct-horse-battery", true)
	user, token := createTestUser(t, api, "shopper", "correct-horse-battery", false)
	linkWechatAuth(t, api, user.ID, "openid-dash")

	product, sku := seedApprovedProduct(t, api, "laser engraver", 5)
	orderID := createOrderViaAPI(t, api, token, product.ID, sku.ID)

	order, err := api.Store.Queries.GetOrder(ctx, orderID)
	require.NoError(t, err)
	payments.txn = pay.Transaction{
		OutTradeNo:    order.MerchantOrderNo.String,
		TransactionID: "4200005555",
		TradeState:    "SUCCESS",
	}
	payments.txn.Amount.PayerTotal = order.TotalAmountCents

	rr := doRequest(t, api, http.MethodPost, "/api/payment/notify", "", map[string]any{
		"id":         "notify-dash",
		"event_type": pay.EventTransactionSuccess,
		"resource":   map[string]any{"ciphertext": "ZW5j", "nonce": "abcdefghijkl"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, api, http.MethodGet, "/api/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	require.True(t, env.IsSuccess)

	var stats struct {
		UserCount    int64  `json:"userCount"`
		ProductCount int64  `json:"productCount"`
		PaidOrders   int64  `json:"paidOrders"`
		Revenue      string `json:"revenue"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 2, stats.UserCount)
	assert.EqualValues(t, 1, stats.ProductCount)
	assert.EqualValues(t, 1, stats.PaidOrders)
	assert.Equal(t, "12.50", stats.Revenue)
}

func TestSysConfVisibility(t *testing.T) {
	api, _ := newTestAPI(t)

	_, adminToken := createTestUser(t, api, "operator", "correct-horse-battery", true)

	rr := doRequest(t, api, http.MethodPut, "/api/admin/sysconf/site.banner", adminToken,
		map[string]any{"value": "grand opening", "isPublic": true})
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decodeEnvelope(t, rr).IsSuccess)

	rr = doRequest(t, api, http.MethodPut, "/api/admin/sysconf/ops.alert_email", adminToken,
		map[string]any{"value": "ops@kajin.shop", "isPublic": false})
	require.Equal(t, http.StatusOK, rr.Code)

	t.Run("public key readable without auth", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodGet, "/api/sysconf/site.banner", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		require.True(t, env.IsSuccess)

		var view sysConfView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, "grand opening", view.Value)
	})

	t.Run("private key hidden from public endpoint", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodGet, "/api/sysconf/ops.alert_email", "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("admin reads private key", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodGet, "/api/admin/sysconf/ops.alert_email", adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		require.True(t, env.IsSuccess)

		var view sysConfView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, "ops@kajin.shop", view.Value)
		assert.False(t, view.IsPublic)
	})

	t.Run("upsert replaces value", func(t *testing.T) {
		rr := doRequest(t, api, http.MethodPut, "/api/admin/sysconf/site.banner", adminToken,
			map[string]any{"value": "closed for maintenance", "isPublic": true})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doRequest(t, api, http.MethodGet, "/api/sysconf/site.banner", "", nil)
		env := decodeEnvelope(t, rr)
		var view sysConfView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, "closed for maintenance", view.Value)
	})
}
