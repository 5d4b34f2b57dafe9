package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// OrderCreatedEvent is emitted once an order and its reservations are persisted.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Currency      enums.Currency      `json:"currency"`
	Total         decimal.Decimal     `json:"total"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent is emitted on every persisted status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ActorRole   enums.ActorRole   `json:"actor_role"`
	Notes       *string           `json:"notes,omitempty"`
}

// OrderPaidEvent is emitted the first time an order's payment is verified.
type OrderPaidEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     string              `json:"order_number"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentIntentID *string             `json:"payment_intent_id,omitempty"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        enums.Currency      `json:"currency"`
}

// PaymentFailedEvent records a rejected or short payment.
type PaymentFailedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Reason      string          `json:"reason"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    enums.Currency  `json:"currency"`
}

// InvoiceRequestedEvent asks the billing side to render an invoice.
type InvoiceRequestedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	Total       decimal.Decimal   `json:"total"`
	Currency    enums.Currency    `json:"currency"`
}

// CommissionRequestedEvent asks the billing side to book commission for a completed order.
type CommissionRequestedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
	Currency    enums.Currency  `json:"currency"`
}

// StockAdjustedEvent is emitted when an inventory webhook moves on-hand stock.
type StockAdjustedEvent struct {
	TargetID     uuid.UUID `json:"target_id"`
	ProductID    uuid.UUID `json:"product_id"`
	Delta        int       `json:"delta"`
	OnHandBefore int       `json:"on_hand_before"`
	OnHandAfter  int       `json:"on_hand_after"`
}

// NotificationRequestedEvent fans a stored notification out to delivery channels.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	RecipientID    *uuid.UUID             `json:"recipient_id,omitempty"`
	Audience       enums.ActorRole        `json:"audience"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	Payload        types.JSONMap          `json:"payload,omitempty"`
}
