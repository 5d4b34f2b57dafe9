package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/api/controllers/dto"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/orderflow-backend/internal/checkout"
	internalorders "github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type checkoutPreviewRequest struct {
	Currency    string   `json:"currency,omitempty" validate:"omitempty,currency"`
	CouponCodes []string `json:"couponCodes,omitempty" validate:"omitempty,max=10,dive,min=1,max=64"`
}

type checkoutConfirmRequest struct {
	AddressID        uuid.UUID `json:"addressId" validate:"required"`
	Currency         string    `json:"currency,omitempty" validate:"omitempty,currency"`
	PaymentMethod    string    `json:"paymentMethod" validate:"required,payment_method"`
	CouponCodes      []string  `json:"couponCodes,omitempty" validate:"omitempty,max=10,dive,min=1,max=64"`
	PaymentReference *string   `json:"paymentReference,omitempty" validate:"omitempty,max=128"`
	Notes            *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

func currencyOrDefault(raw string, fallback enums.Currency) enums.Currency {
	if raw == "" {
		return fallback
	}
	return enums.Currency(raw)
}

// CheckoutPreview prices the caller's active cart. Previews may be served
// from cache for a short TTL.
func CheckoutPreview(svc checkoutsvc.Service, homeCurrency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, role, err := middleware.RequireCaller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutPreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Preview(r.Context(), checkoutsvc.QuoteInput{
			CustomerID:  customerID,
			Role:        role,
			Currency:    currencyOrDefault(payload.Currency, homeCurrency),
			CouponCodes: payload.CouponCodes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CheckoutConfirm turns the active cart into an order.
func CheckoutConfirm(svc internalorders.Service, homeCurrency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerID, role, err := middleware.RequireCaller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmCheckout(r.Context(), internalorders.ConfirmCheckoutInput{
			CustomerID:       customerID,
			Role:             role,
			AddressID:        payload.AddressID,
			Currency:         currencyOrDefault(payload.Currency, homeCurrency),
			PaymentMethod:    enums.PaymentMethod(payload.PaymentMethod),
			CouponCodes:      payload.CouponCodes,
			PaymentReference: validators.SanitizeOptional(payload.PaymentReference, 128),
			Notes:            validators.SanitizeOptional(payload.Notes, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto.NewCheckoutConfirmation(result))
	}
}
