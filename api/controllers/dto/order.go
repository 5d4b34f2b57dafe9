// Package dto shapes persistence models into the JSON returned by the API.
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalorders "github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

type Order struct {
	ID                uuid.UUID            `json:"id"`
	OrderNumber       string               `json:"order_number"`
	CustomerID        uuid.UUID            `json:"customer_id"`
	Status            enums.OrderStatus    `json:"status"`
	PaymentStatus     enums.PaymentStatus  `json:"payment_status"`
	PaymentMethod     enums.PaymentMethod  `json:"payment_method"`
	PaymentReference  *string              `json:"payment_reference,omitempty"`
	Currency          enums.Currency       `json:"currency"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	ItemsDiscount     decimal.Decimal      `json:"items_discount"`
	CouponDiscount    decimal.Decimal      `json:"coupon_discount"`
	Shipping          decimal.Decimal      `json:"shipping"`
	Tax               decimal.Decimal      `json:"tax"`
	Total             decimal.Decimal      `json:"total"`
	CurrencyTotals    types.CurrencyTotals `json:"currency_totals,omitempty"`
	AppliedCoupons    types.AppliedCoupons `json:"applied_coupons,omitempty"`
	ShippingAddress   *types.Address       `json:"shipping_address,omitempty"`
	Carrier           *string              `json:"carrier,omitempty"`
	TrackingNumber    *string              `json:"tracking_number,omitempty"`
	TrackingURL       *string              `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	RefundAmount      *decimal.Decimal     `json:"refund_amount,omitempty"`
	RefundReason      *string              `json:"refund_reason,omitempty"`
	VerifiedAmount    *decimal.Decimal     `json:"verified_amount,omitempty"`
	RatingScore       *int                 `json:"rating_score,omitempty"`
	RatingComment     *string              `json:"rating_comment,omitempty"`
	Items             []OrderItem          `json:"items"`
	History           []StatusEntry        `json:"history,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

type OrderItem struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	VariantID      *uuid.UUID      `json:"variant_id,omitempty"`
	Name           string          `json:"name"`
	SKU            *string         `json:"sku,omitempty"`
	Qty            int             `json:"qty"`
	UnitBasePrice  decimal.Decimal `json:"unit_base_price"`
	UnitFinalPrice decimal.Decimal `json:"unit_final_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
}

type StatusEntry struct {
	Status    enums.OrderStatus `json:"status"`
	ActorID   *uuid.UUID        `json:"actor_id,omitempty"`
	ActorRole enums.ActorRole   `json:"actor_role"`
	Notes     *string           `json:"notes,omitempty"`
	Metadata  types.JSONMap     `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type OrderList struct {
	Items      []Order `json:"items"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

type CheckoutConfirmation struct {
	Order         Order                         `json:"order"`
	PaymentIntent *internalorders.PaymentIntent `json:"payment_intent,omitempty"`
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func NewOrder(o *models.Order) Order {
	if o == nil {
		return Order{}
	}
	out := Order{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		CustomerID:        o.CustomerID,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		PaymentMethod:     o.PaymentMethod,
		PaymentReference:  o.PaymentReference,
		Currency:          o.Currency,
		Subtotal:          o.Subtotal,
		ItemsDiscount:     o.ItemsDiscount,
		CouponDiscount:    o.CouponDiscount,
		Shipping:          o.Shipping,
		Tax:               o.Tax,
		Total:             o.Total,
		CurrencyTotals:    o.CurrencyTotals,
		AppliedCoupons:    o.AppliedCoupons,
		ShippingAddress:   o.ShippingAddress,
		Carrier:           o.Carrier,
		TrackingNumber:    o.TrackingNumber,
		TrackingURL:       o.TrackingURL,
		EstimatedDelivery: o.EstimatedDelivery,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
		RefundAmount:      nullDecimal(o.RefundAmount),
		RefundReason:      o.RefundReason,
		VerifiedAmount:    nullDecimal(o.VerifiedAmount),
		RatingScore:       o.RatingScore,
		RatingComment:     o.RatingComment,
		Items:             make([]OrderItem, 0, len(o.Items)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, OrderItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			SKU:            item.SKU,
			Qty:            item.Qty,
			UnitBasePrice:  item.UnitBasePrice,
			UnitFinalPrice: item.UnitFinalPrice,
			LineTotal:      item.LineTotal,
			CouponCode:     item.CouponCode,
		})
	}
	for _, h := range o.StatusHistory {
		out.History = append(out.History, StatusEntry{
			Status:    h.Status,
			ActorID:   h.ActorID,
			ActorRole: h.ActorRole,
			Notes:     h.Notes,
			Metadata:  h.Metadata,
			CreatedAt: h.CreatedAt,
		})
	}
	return out
}

func NewOrderList(list *internalorders.ListResult) OrderList {
	if list == nil {
		return OrderList{Items: []Order{}}
	}
	out := OrderList{Items: make([]Order, 0, len(list.Items)), NextCursor: list.NextCursor}
	for i := range list.Items {
		out.Items = append(out.Items, NewOrder(&list.Items[i]))
	}
	return out
}

func NewCheckoutConfirmation(result *internalorders.ConfirmCheckoutResult) CheckoutConfirmation {
	if result == nil {
		return CheckoutConfirmation{}
	}
	return CheckoutConfirmation{
		Order:         NewOrder(result.Order),
		PaymentIntent: result.PaymentIntent,
	}
}
