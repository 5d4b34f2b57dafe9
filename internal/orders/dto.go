package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// Actor identifies who drives an order operation. System actors carry no user.
type Actor struct {
	UserID *uuid.UUID
	Role   enums.ActorRole
}

// SystemActor is used by webhooks and background jobs.
func SystemActor() Actor {
	return Actor{Role: enums.ActorRoleSystem}
}

// CustomerActor wraps a customer id.
func CustomerActor(id uuid.UUID) Actor {
	return Actor{UserID: &id, Role: enums.ActorRoleCustomer}
}

// NewActor wraps an authenticated caller.
func NewActor(id uuid.UUID, role enums.ActorRole) Actor {
	return Actor{UserID: &id, Role: role}
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}

func (a Actor) owns(order *models.Order) bool {
	return a.UserID != nil && *a.UserID == order.CustomerID
}

// ConfirmCheckoutInput is what the customer submits to turn the cart into an order.
type ConfirmCheckoutInput struct {
	CustomerID       uuid.UUID
	Role             enums.ActorRole
	AddressID        uuid.UUID
	Currency         enums.Currency
	PaymentMethod    enums.PaymentMethod
	CouponCodes      []string
	PaymentReference *string
	Notes            *string
}

// PaymentIntent is the stub handed back to the client after confirmation.
type PaymentIntent struct {
	ID        string              `json:"id"`
	Method    enums.PaymentMethod `json:"method"`
	Amount    decimal.Decimal     `json:"amount"`
	Currency  enums.Currency      `json:"currency"`
	Reference *string             `json:"reference,omitempty"`
	Status    enums.PaymentStatus `json:"status"`
}

type ConfirmCheckoutResult struct {
	Order         *models.Order  `json:"order"`
	PaymentIntent *PaymentIntent `json:"payment_intent,omitempty"`
}

// StatusUpdateInput drives a plain status change.
type StatusUpdateInput struct {
	OrderID  uuid.UUID
	To       enums.OrderStatus
	Actor    Actor
	Notes    *string
	Metadata types.JSONMap
}

type ShipInput struct {
	OrderID           uuid.UUID
	Carrier           string
	TrackingNumber    string
	TrackingURL       *string
	EstimatedDelivery *time.Time
	Actor             Actor
	Notes             *string
}

type CancelInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Reason  *string
}

type RefundInput struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
	Reason  string
	Actor   Actor
}

type NoteInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Notes   string
}

type RateInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Score   int
	Comment *string
}

// VerifyPaymentInput is an admin's record of money received outside the
// card flow.
type VerifyPaymentInput struct {
	OrderID  uuid.UUID
	Amount   decimal.Decimal
	Currency enums.Currency
	Actor    Actor
	Notes    *string
}

// ListParams scopes the customer order list.
type ListParams struct {
	CustomerID uuid.UUID
	Status     *enums.OrderStatus
	Limit      int
	Cursor     string
}

type ListResult struct {
	Items      []models.Order `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PaymentWebhookInput keeps the raw amount string because it is part of the
// signed message.
type PaymentWebhookInput struct {
	IntentID  string `json:"intentId" validate:"required"`
	Status    string `json:"status" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type ShippingWebhookInput struct {
	TrackingNumber    string     `json:"trackingNumber" validate:"required"`
	Status            string     `json:"status" validate:"required"`
	Carrier           *string    `json:"carrier,omitempty"`
	Location          *string    `json:"location,omitempty"`
	TrackingURL       *string    `json:"trackingUrl,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

// InventoryWebhookInput moves on-hand stock of a variant or product.
type InventoryWebhookInput struct {
	TargetID   uuid.UUID  `json:"variantId" validate:"required"`
	Delta      int        `json:"quantityChange"`
	Reason     *string    `json:"reason,omitempty"`
	OccurredAt *time.Time `json:"timestamp,omitempty"`
}

// WebhookResult is returned for every accepted delivery. OK is false when the
// delivery could not be applied; Reason names why.
type WebhookResult struct {
	OK      bool              `json:"ok"`
	Reason  string            `json:"reason,omitempty"`
	OrderID *uuid.UUID        `json:"order_id,omitempty"`
	Status  enums.OrderStatus `json:"status,omitempty"`
	Updated int               `json:"updated,omitempty"`
}

// Webhook result reasons.
const (
	ReasonOrderNotFound  = "ORDER_NOT_FOUND"
	ReasonAlreadyPaid    = "ALREADY_PAID"
	ReasonPaymentFailed  = "PAYMENT_FAILED"
	ReasonInvalidAmount  = "INVALID_AMOUNT"
	ReasonUnknownStatus  = "UNKNOWN_STATUS"
	ReasonNoChange       = "NO_CHANGE"
	ReasonTargetNotFound = "TARGET_NOT_FOUND"
)
