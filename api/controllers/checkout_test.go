package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/orderflow-backend/internal/checkout"
	internalorders "github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

func asCustomer(req *http.Request, id uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithCaller(req.Context(), id, enums.ActorRoleCustomer))
}

func TestCheckoutPreviewDefaultsCurrency(t *testing.T) {
	customerID := uuid.New()
	var got checkoutsvc.QuoteInput
	svc := stubCheckout{previewFn: func(_ context.Context, input checkoutsvc.QuoteInput) (*checkoutsvc.Quote, error) {
		got = input
		return &checkoutsvc.Quote{CustomerID: input.CustomerID, Currency: input.Currency, Total: decimal.NewFromInt(42)}, nil
	}}

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/checkout/preview", strings.NewReader(`{"couponCodes":["SAVE10"]}`)), customerID)
	resp := httptest.NewRecorder()
	CheckoutPreview(svc, enums.CurrencyYER, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, customerID, got.CustomerID)
	assert.Equal(t, enums.ActorRoleCustomer, got.Role)
	assert.Equal(t, enums.CurrencyYER, got.Currency)
	assert.Equal(t, []string{"SAVE10"}, got.CouponCodes)
}

func TestCheckoutPreviewRejectsUnknownCurrency(t *testing.T) {
	svc := stubCheckout{previewFn: func(context.Context, checkoutsvc.QuoteInput) (*checkoutsvc.Quote, error) {
		t.Fatalf("service must not be called")
		return nil, nil
	}}

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/checkout/preview", strings.NewReader(`{"currency":"GBP"}`)), uuid.New())
	resp := httptest.NewRecorder()
	CheckoutPreview(svc, enums.CurrencyYER, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCheckoutConfirmRequiresCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/confirm", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CheckoutConfirm(stubOrders{}, enums.CurrencyYER, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCheckoutConfirmCreatesOrder(t *testing.T) {
	customerID := uuid.New()
	addressID := uuid.New()
	orderID := uuid.New()
	var got internalorders.ConfirmCheckoutInput
	svc := stubOrders{confirmFn: func(_ context.Context, input internalorders.ConfirmCheckoutInput) (*internalorders.ConfirmCheckoutResult, error) {
		got = input
		return &internalorders.ConfirmCheckoutResult{Order: &models.Order{
			ID:          orderID,
			OrderNumber: "ORD-20261019-ABC123",
			CustomerID:  input.CustomerID,
			Status:      enums.OrderStatusPendingPayment,
			Currency:    input.Currency,
			Total:       decimal.NewFromInt(100),
		}}, nil
	}}

	body := `{"addressId":"` + addressID.String() + `","paymentMethod":"BANK_TRANSFER","currency":"USD","paymentReference":"  TRX-1 ","notes":"   "}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/checkout/confirm", strings.NewReader(body)), customerID)
	resp := httptest.NewRecorder()
	CheckoutConfirm(svc, enums.CurrencyYER, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, addressID, got.AddressID)
	assert.Equal(t, enums.PaymentMethodBankTransfer, got.PaymentMethod)
	assert.Equal(t, enums.CurrencyUSD, got.Currency)
	require.NotNil(t, got.PaymentReference)
	assert.Equal(t, "TRX-1", *got.PaymentReference)
	assert.Nil(t, got.Notes)

	var envelope struct {
		Data struct {
			Order struct {
				ID     uuid.UUID `json:"id"`
				Status string    `json:"status"`
			} `json:"order"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, orderID, envelope.Data.Order.ID)
	assert.Equal(t, "PENDING_PAYMENT", envelope.Data.Order.Status)
}
