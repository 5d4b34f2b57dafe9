package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/orderflow-backend/pkg/db/types"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Coupon is a redeemable discount code. Value is a percentage for percentage
// coupons and an amount in Currency for fixed ones.
type Coupon struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code           string              `gorm:"column:code;type:varchar(64);not null;uniqueIndex:ux_coupons_code"`
	Name           string              `gorm:"column:name;not null"`
	Type           enums.CouponType    `gorm:"column:type;type:varchar(32);not null"`
	Value          decimal.Decimal     `gorm:"column:value;type:numeric(18,2);not null"`
	Currency       enums.Currency      `gorm:"column:currency;type:varchar(3);not null"`
	MaxDiscount    decimal.NullDecimal `gorm:"column:max_discount;type:numeric(18,2)"`
	MinOrderAmount decimal.NullDecimal `gorm:"column:min_order_amount;type:numeric(18,2)"`
	ProductIDs     dbtypes.UUIDArray   `gorm:"column:product_ids"`
	StartsAt       *time.Time          `gorm:"column:starts_at"`
	ExpiresAt      *time.Time          `gorm:"column:expires_at"`
	UsageLimit     *int                `gorm:"column:usage_limit"`
	UsedCount      int                 `gorm:"column:used_count;not null;default:0"`
	Active         bool                `gorm:"column:active;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
