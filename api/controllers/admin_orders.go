package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/api/controllers/dto"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	internalorders "github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

type adminStatusRequest struct {
	Status   string        `json:"status" validate:"required"`
	Notes    *string       `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Metadata types.JSONMap `json:"metadata,omitempty"`
}

type adminShipRequest struct {
	Carrier           string     `json:"carrier" validate:"required,max=64"`
	TrackingNumber    string     `json:"trackingNumber" validate:"required,max=128"`
	TrackingURL       *string    `json:"trackingUrl,omitempty" validate:"omitempty,url"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	Notes             *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type adminRefundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"amount"`
	Reason string          `json:"reason" validate:"required,max=500"`
}

type adminVerifyPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"amount"`
	Currency string          `json:"currency" validate:"required,currency"`
	Notes    *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type noteRequest struct {
	Notes string `json:"notes" validate:"required,max=2000"`
}

// orderAction is the shared prologue of every admin write: resolve the
// caller, the order id and the decoded body before calling the service.
func orderAction[T any](svc internalorders.Service, logg *logger.Logger, run func(r *http.Request, actor internalorders.Actor, payload T) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, role, err := middleware.RequireCaller(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload T
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := run(r, internalorders.NewActor(userID, role), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrder(out))
	}
}

func AdminUpdateOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, actor internalorders.Actor, payload adminStatusRequest) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		to, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"status": payload.Status})
		}
		return svc.UpdateOrderStatus(r.Context(), internalorders.StatusUpdateInput{
			OrderID:  orderID,
			To:       to,
			Actor:    actor,
			Notes:    validators.SanitizeOptional(payload.Notes, 2000),
			Metadata: payload.Metadata,
		})
	})
}

func AdminShipOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, actor internalorders.Actor, payload adminShipRequest) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.Ship(r.Context(), internalorders.ShipInput{
			OrderID:           orderID,
			Carrier:           validators.SanitizeString(payload.Carrier, 64),
			TrackingNumber:    validators.SanitizeString(payload.TrackingNumber, 128),
			TrackingURL:       payload.TrackingURL,
			EstimatedDelivery: payload.EstimatedDelivery,
			Actor:             actor,
			Notes:             validators.SanitizeOptional(payload.Notes, 2000),
		})
	})
}

func AdminRefundOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, actor internalorders.Actor, payload adminRefundRequest) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.Refund(r.Context(), internalorders.RefundInput{
			OrderID: orderID,
			Amount:  payload.Amount,
			Reason:  validators.SanitizeString(payload.Reason, 500),
			Actor:   actor,
		})
	})
}

func AdminVerifyPayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, actor internalorders.Actor, payload adminVerifyPaymentRequest) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.VerifyLocalPayment(r.Context(), internalorders.VerifyPaymentInput{
			OrderID:  orderID,
			Amount:   payload.Amount,
			Currency: enums.Currency(payload.Currency),
			Actor:    actor,
			Notes:    validators.SanitizeOptional(payload.Notes, 2000),
		})
	})
}

// OrderAddNote serves both the customer and the admin notes routes; the
// service enforces ownership for customers.
func OrderAddNote(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(r *http.Request, actor internalorders.Actor, payload noteRequest) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		return svc.AddNote(r.Context(), internalorders.NoteInput{
			OrderID: orderID,
			Actor:   actor,
			Notes:   validators.SanitizeString(payload.Notes, 2000),
		})
	})
}
