package restapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront.kajin.shop/internal/app"
	"storefront.kajin.shop/internal/appconf"
	"storefront.kajin.shop/internal/config"
	"storefront.kajin.shop/internal/pay"
	"storefront.kajin.shop/shopdb"
)

// stubPayments satisfies PaymentProvider without leaving the process.
type stubPayments struct {
	prepayID  string
	prepayErr error
	verifyErr error
	txn       pay.Transaction
	decryptEr error

	lastPrepay pay.PrepayRequest
}

func (s *stubPayments) CreatePrepay(ctx context.Context, req pay.PrepayRequest) (string, error) {
	s.lastPrepay = req
	return s.prepayID, s.prepayErr
}

func (s *stubPayments) SignPrepay(prepayID string) (pay.ClientParams, error) {
	return pay.ClientParams{
		PrepayID:  prepayID,
		TimeStamp: "1756500000",
		NonceStr:  "stubnonce",
		Package:   "prepay_id=" + prepayID,
		SignType:  "RSA",
		PaySign:   "stubsign",
	}, nil
}

func (s *stubPayments) VerifyCallback(timestamp, nonce, body, signature string) error {
	return s.verifyErr
}

func (s *stubPayments) DecryptResource(env pay.NotifyEnvelope) (pay.Transaction, error) {
	return s.txn, s.decryptEr
}

// stubSessions satisfies SessionExchanger, mapping login codes to openids.
type stubSessions struct {
	openIDs map[string]string
}

func (s *stubSessions) ExchangeCode(ctx context.Context, code string) (string, error) {
	openID, ok := s.openIDs[code]
	if !ok {
		return "", errors.New("invalid login code")
	}
	return openID, nil
}

func newTestAPI(t *testing.T) (*RestAPI, *stubPayments) {
	t.Helper()
	store, err := shopdb.NewClient(shopdb.NewConfig(":memory:", appconf.Test))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	cfg.SecretKey = "test-secret"

	application := &app.Application{
		Config: cfg,
		Env:    appconf.Test,
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Store:  store,
	}

	payments := &stubPayments{prepayID: "wx-prepay-test"}
	sessions := &stubSessions{openIDs: map[string]string{"code-ok": "openid-registered"}}
	return NewRestAPI(application, payments, sessions), payments
}

// createTestUser registers an account directly in the store and returns it
// with a valid bearer token.
func createTestUser(t *testing.T, api *RestAPI, username, password string, admin bool) (shopdb.User, string) {
	t.Helper()
	ctx := context.Background()

	salt, err := app.GenerateSalt()
	require.NoError(t, err)
	hash, _, err := app.HashPassword(password, salt)
	require.NoError(t, err)

	user, err := api.Store.Queries.CreateUser(ctx, shopdb.CreateUserParams{
		Username:     sql.NullString{String: username, Valid: true},
		PasswordHash: sql.NullString{String: hash, Valid: true},
		PasswordSalt: sql.NullString{String: salt, Valid: true},
		Nickname:     sql.NullString{String: username, Valid: true},
	})
	require.NoError(t, err)

	if admin {
		role, err := api.Store.Queries.EnsureRole(ctx, AdminRoleName, "platform administrators", true)
		require.NoError(t, err)
		require.NoError(t, api.Store.Queries.AssignRole(ctx, user.ID, role.ID))
	}

	token, _, err := api.IssueToken(ctx, user.ID)
	require.NoError(t, err)
	return user, token
}

// seedApprovedProduct creates a published, approved product with one SKU.
func seedApprovedProduct(t *testing.T, api *RestAPI, name string, stock int64) (shopdb.Product, shopdb.SKU) {
	t.Helper()
	ctx := context.Background()

	product, err := api.Store.Queries.CreateProduct(ctx, shopdb.CreateProductParams{
		Name:          name,
		CategoryID:    1,
		SeriesID:      1,
		CreatorUserID: 1,
		ProductType:   shopdb.ProductTypePhysical,
	})
	require.NoError(t, err)
	require.NoError(t, api.Store.Queries.ReviewProduct(ctx, product.ID, 1, true, ""))

	sku, err := api.Store.Queries.CreateSKU(ctx, shopdb.CreateSKUParams{
		ProductID:  product.ID,
		Name:       "standard",
		PriceCents: 1250,
		Stock:      stock,
	})
	require.NoError(t, err)

	product, err = api.Store.Queries.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	return product, sku
}

func doRequest(t *testing.T, api *RestAPI, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	api.Routes().ServeHTTP(rr, req)
	return rr
}

// decodeEnvelope parses the response envelope, returning the data as raw JSON
// for the caller to unmarshal into the expected shape.
type envelope struct {
	Code      string          `json:"code"`
	IsSuccess bool            `json:"isSuccess"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	return env
}

func waitForOrderStatus(t *testing.T, api *RestAPI, orderID int64, status string) {
	t.Helper()
	require.Eventually(t, func() bool {
		order, err := api.Store.Queries.GetOrder(context.Background(), orderID)
		return err == nil && order.Status == status
	}, 2*time.Second, 10*time.Millisecond)
}
