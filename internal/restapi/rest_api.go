// Package restapi exposes the storefront over HTTP: the shopper-facing
// catalog, order and payment endpoints, and the admin surface.
package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"storefront.kajin.shop/internal/app"
	"storefront.kajin.shop/internal/fulfill"
	"storefront.kajin.shop/internal/jobs"
	"storefront.kajin.shop/internal/pay"
)

// PaymentProvider is the slice of the payment client handlers need. Tests
// substitute a stub so no request ever leaves the process.
type PaymentProvider interface {
	CreatePrepay(ctx context.Context, req pay.PrepayRequest) (string, error)
	SignPrepay(prepayID string) (pay.ClientParams, error)
	VerifyCallback(timestamp, nonce, body, signature string) error
	DecryptResource(env pay.NotifyEnvelope) (pay.Transaction, error)
}

// SessionExchanger turns a mini-program login code into the openid that
// identifies the user with the platform. Production deployments plug in a
// client for the platform's code2session endpoint; tests use a stub.
type SessionExchanger interface {
	ExchangeCode(ctx context.Context, code string) (openID string, err error)
}

type RestAPI struct {
	*app.Application
	queue       *jobs.Queue
	fulfiller   *fulfill.Service
	payments    PaymentProvider
	sessions    SessionExchanger
	rateLimiter func(http.Handler) http.Handler
}

// NewRestAPI wires the API against its collaborators. payments and sessions
// may be nil when the matching credentials are not configured; the endpoints
// that need them then answer with a business error.
func NewRestAPI(application *app.Application, payments PaymentProvider, sessions SessionExchanger) *RestAPI {
	return &RestAPI{
		Application: application,
		queue:       jobs.NewQueue(application.Logger),
		fulfiller:   fulfill.NewService(application.Logger),
		payments:    payments,
		sessions:    sessions,
		rateLimiter: NewRateLimitMiddleware(defaultRequestsPerSecond, time.Second),
	}
}

// Routes assembles the router and the middleware chain.
func (api *RestAPI) Routes() http.Handler {
	router := httprouter.New()

	// Public surface.
	router.Handler(http.MethodPost, "/api/auth/login", http.HandlerFunc(api.loginHandler))
	router.Handler(http.MethodPost, "/api/auth/wechat-login", http.HandlerFunc(api.wechatLoginHandler))
	router.Handler(http.MethodGet, "/api/categories", http.HandlerFunc(api.categoriesHandler))
	router.Handler(http.MethodGet, "/api/series", http.HandlerFunc(api.seriesHandler))
	router.Handler(http.MethodGet, "/api/products", http.HandlerFunc(api.productsHandler))
	router.Handler(http.MethodGet, "/api/products/:id", http.HandlerFunc(api.productDetailHandler))
	router.Handler(http.MethodGet, "/api/sysconf/:key", http.HandlerFunc(api.publicSysConfHandler))
	router.Handler(http.MethodPost, "/api/payment/notify", http.HandlerFunc(api.paymentNotifyHandler))

	// Authenticated surface.
	router.Handler(http.MethodPost, "/api/auth/logout", api.requireAuth(api.logoutHandler))
	router.Handler(http.MethodGet, "/api/account/profile", api.requireAuth(api.profileHandler))
	router.Handler(http.MethodPost, "/api/orders", api.requireAuth(api.createOrderHandler))
	router.Handler(http.MethodGet, "/api/orders", api.requireAuth(api.listOrdersHandler))
	router.Handler(http.MethodGet, "/api/orders/:id", api.requireAuth(api.orderDetailHandler))
	router.Handler(http.MethodPost, "/api/orders/:id/cancel", api.requireAuth(api.cancelOrderHandler))
	router.Handler(http.MethodGet, "/api/payment/prepay", api.requireAuth(api.paymentPrepayHandler))

	// Admin surface.
	router.Handler(http.MethodGet, "/api/admin/users", api.requireAdmin(api.adminUsersHandler))
	router.Handler(http.MethodGet, "/api/admin/products", api.requireAdmin(api.adminListProductsHandler))
	router.Handler(http.MethodPost, "/api/admin/products", api.requireAdmin(api.adminCreateProductHandler))
	router.Handler(http.MethodPut, "/api/admin/products/:id", api.requireAdmin(api.adminUpdateProductHandler))
	router.Handler(http.MethodPost, "/api/admin/products/:id/skus", api.requireAdmin(api.adminCreateSKUHandler))
	router.Handler(http.MethodPut, "/api/admin/skus/:id", api.requireAdmin(api.adminUpdateSKUHandler))
	router.Handler(http.MethodPost, "/api/admin/categories", api.requireAdmin(api.adminCreateCategoryHandler))
	router.Handler(http.MethodPut, "/api/admin/categories/:id", api.requireAdmin(api.adminUpdateCategoryHandler))
	router.Handler(http.MethodPost, "/api/admin/series", api.requireAdmin(api.adminCreateSeriesHandler))
	router.Handler(http.MethodPut, "/api/admin/series/:id", api.requireAdmin(api.adminUpdateSeriesHandler))
	router.Handler(http.MethodPost, "/api/admin/products/:id/review", api.requireAdmin(api.reviewProductHandler))
	router.Handler(http.MethodGet, "/api/admin/dashboard", api.requireAdmin(api.dashboardHandler))
	router.Handler(http.MethodGet, "/api/admin/sysconf/:key", api.requireAdmin(api.adminGetSysConfHandler))
	router.Handler(http.MethodPut, "/api/admin/sysconf/:key", api.requireAdmin(api.adminPutSysConfHandler))

	var handler http.Handler = router
	handler = api.rateLimiter(handler)
	handler = CompressionMiddleware(handler)
	handler = NewRequestLoggingMiddleware(api.Logger)(handler)
	handler = securityHeaders(handler)
	return handler
}
