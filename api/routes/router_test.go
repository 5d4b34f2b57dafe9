package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/internal/webhooks"
	pkgAuth "github.com/angelmondragon/orderflow-backend/pkg/auth"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/security"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubCheckout struct {
	checkout.Service
}

func (stubCheckout) Preview(_ context.Context, input checkout.QuoteInput) (*checkout.Quote, error) {
	return &checkout.Quote{CustomerID: input.CustomerID, Currency: input.Currency}, nil
}

type stubOrders struct {
	orders.Service
	getCalls int
}

func (s *stubOrders) Get(context.Context, uuid.UUID, orders.Actor) (*models.Order, error) {
	s.getCalls++
	return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "orderflow-test", ExpirationMinutes: 5},
		Checkout: config.CheckoutConfig{HomeCurrency: "YER"},
		Webhooks: config.WebhooksConfig{PaymentSecret: "pay-secret"},
	}
}

func newTestRouter(t *testing.T, ord *stubOrders) http.Handler {
	t.Helper()
	cfg := testConfig()
	guard, err := webhooks.NewGuard(webhooks.GuardParams{
		Secrets: webhooks.Secrets{Payment: cfg.Webhooks.PaymentSecret},
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"}))

	tokens, err := pkgAuth.NewTokens(cfg.JWT)
	require.NoError(t, err)

	return NewRouter(Params{
		Config:       cfg,
		Logger:       logger.Nop(),
		Tokens:       tokens,
		DB:           stubPinger{},
		Gatherer:     reg,
		Checkout:     stubCheckout{},
		Orders:       ord,
		WebhookGuard: guard,
	})
}

func bearer(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	tokens, err := pkgAuth.NewTokens(testConfig().JWT)
	require.NoError(t, err)
	token, err := tokens.Issue(time.Now(), uuid.New(), role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutesArePublic(t *testing.T) {
	router := newTestRouter(t, &stubOrders{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
		assert.NotEmpty(t, resp.Header().Get("X-Request-Id"), path)
	}
}

func TestMetricsExposesRegistry(t *testing.T) {
	router := newTestRouter(t, &stubOrders{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "router_test_total")
}

func TestAPIRequiresBearerToken(t *testing.T) {
	ord := &stubOrders{}
	router := newTestRouter(t, ord)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Zero(t, ord.getCalls)
}

func TestCustomerReachesOrderDetail(t *testing.T) {
	ord := &stubOrders{}
	router := newTestRouter(t, ord)
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, 1, ord.getCalls)
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	router := newTestRouter(t, &stubOrders{})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/"+uuid.NewString()+"/ship", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestCheckoutPreviewUsesHomeCurrency(t *testing.T) {
	router := newTestRouter(t, &stubOrders{})
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/preview", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"YER"`)
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	router := newTestRouter(t, &stubOrders{})
	body := `{"orderId":"` + uuid.NewString() + `"}`
	sig, err := security.SignBody("wrong-secret", []byte(body))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set(webhooks.SignatureHeader, sig)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
