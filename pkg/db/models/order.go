package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// Order is the root aggregate produced by checkout confirmation.
type Order struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string               `gorm:"column:order_number;type:varchar(32);not null;uniqueIndex:ux_orders_order_number"`
	CustomerID       uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	CartID           *uuid.UUID           `gorm:"column:cart_id;type:uuid"`
	AddressID        *uuid.UUID           `gorm:"column:address_id;type:uuid"`
	ShippingAddress  *types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Status           enums.OrderStatus    `gorm:"column:status;type:varchar(32);not null;index"`
	PaymentStatus    enums.PaymentStatus  `gorm:"column:payment_status;type:varchar(32);not null"`
	PaymentMethod    enums.PaymentMethod  `gorm:"column:payment_method;type:varchar(32);not null"`
	PaymentReference *string              `gorm:"column:payment_reference"`
	PaymentIntentID  *string              `gorm:"column:payment_intent_id;uniqueIndex:ux_orders_payment_intent"`
	Currency         enums.Currency       `gorm:"column:currency;type:varchar(3);not null"`
	Subtotal         decimal.Decimal      `gorm:"column:subtotal;type:numeric(18,2);not null"`
	ItemsDiscount    decimal.Decimal      `gorm:"column:items_discount;type:numeric(18,2);not null"`
	CouponDiscount   decimal.Decimal      `gorm:"column:coupon_discount;type:numeric(18,2);not null"`
	Shipping         decimal.Decimal      `gorm:"column:shipping;type:numeric(18,2);not null"`
	Tax              decimal.Decimal      `gorm:"column:tax;type:numeric(18,2);not null"`
	Total            decimal.Decimal      `gorm:"column:total;type:numeric(18,2);not null"`
	CurrencyTotals   types.CurrencyTotals `gorm:"column:currency_totals;type:jsonb;serializer:json"`
	AppliedCoupons   types.AppliedCoupons `gorm:"column:applied_coupons;type:jsonb;serializer:json"`

	VerifiedAmount   decimal.NullDecimal `gorm:"column:verified_amount;type:numeric(18,2)"`
	VerifiedCurrency *enums.Currency     `gorm:"column:verified_currency;type:varchar(3)"`
	VerifiedBy       *uuid.UUID          `gorm:"column:verified_by;type:uuid"`
	VerifiedAt       *time.Time          `gorm:"column:verified_at"`

	Carrier           *string    `gorm:"column:carrier"`
	TrackingNumber    *string    `gorm:"column:tracking_number;index"`
	TrackingURL       *string    `gorm:"column:tracking_url"`
	EstimatedDelivery *time.Time `gorm:"column:estimated_delivery"`
	DeliveredAt       *time.Time `gorm:"column:delivered_at"`

	ConfirmedAt  *time.Time `gorm:"column:confirmed_at"`
	ProcessingAt *time.Time `gorm:"column:processing_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	OnHoldAt     *time.Time `gorm:"column:on_hold_at"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`
	ReturnedAt   *time.Time `gorm:"column:returned_at"`
	RefundedAt   *time.Time `gorm:"column:refunded_at"`

	ReturnReason *string             `gorm:"column:return_reason"`
	RefundAmount decimal.NullDecimal `gorm:"column:refund_amount;type:numeric(18,2)"`
	RefundReason *string             `gorm:"column:refund_reason"`

	RatingScore   *int       `gorm:"column:rating_score"`
	RatingComment *string    `gorm:"column:rating_comment"`
	RatedAt       *time.Time `gorm:"column:rated_at"`

	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is an immutable line snapshot taken at checkout.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID      *uuid.UUID      `gorm:"column:variant_id;type:uuid;index"`
	Name           string          `gorm:"column:name;not null"`
	SKU            *string         `gorm:"column:sku"`
	Qty            int             `gorm:"column:qty;not null"`
	UnitBasePrice  decimal.Decimal `gorm:"column:unit_base_price;type:numeric(18,2);not null"`
	UnitFinalPrice decimal.Decimal `gorm:"column:unit_final_price;type:numeric(18,2);not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(18,2);not null"`
	Currency       enums.Currency  `gorm:"column:currency;type:varchar(3);not null"`
	PromotionID    *uuid.UUID      `gorm:"column:promotion_id;type:uuid"`
	CouponCode     *string         `gorm:"column:coupon_code"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// TargetID is the stock target of the line: the variant when present,
// otherwise the product.
func (i OrderItem) TargetID() uuid.UUID {
	if i.VariantID != nil && *i.VariantID != uuid.Nil {
		return *i.VariantID
	}
	return i.ProductID
}

// OrderStatusHistory is one append-only audit row of an order's lifecycle.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:varchar(32);not null"`
	ActorID   *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	ActorRole enums.ActorRole   `gorm:"column:actor_role;type:varchar(16);not null"`
	Notes     *string           `gorm:"column:notes"`
	Metadata  types.JSONMap     `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	return nil
}
