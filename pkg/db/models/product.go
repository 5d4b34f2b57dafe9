package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Product is the catalog entry; StockQty is the catalog-facing stock count.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name           string           `gorm:"column:name;not null"`
	SKU            *string          `gorm:"column:sku"`
	Currency       enums.Currency   `gorm:"column:currency;type:varchar(3);not null"`
	BasePrice      decimal.Decimal  `gorm:"column:base_price;type:numeric(18,2);not null"`
	FinalPrice     decimal.Decimal  `gorm:"column:final_price;type:numeric(18,2);not null"`
	PromotionID    *uuid.UUID       `gorm:"column:promotion_id;type:uuid"`
	TrackStock     bool             `gorm:"column:track_stock;not null"`
	AllowBackorder bool             `gorm:"column:allow_backorder;not null;default:false"`
	StockQty       int              `gorm:"column:stock_qty;not null;default:0"`
	SalesCount     int              `gorm:"column:sales_count;not null;default:0"`
	Active         bool             `gorm:"column:active;not null"`
	Variants       []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant inherits stock tracking and backorder policy from its product.
type ProductVariant struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name       string          `gorm:"column:name;not null"`
	SKU        *string         `gorm:"column:sku"`
	BasePrice  decimal.Decimal `gorm:"column:base_price;type:numeric(18,2);not null"`
	FinalPrice decimal.Decimal `gorm:"column:final_price;type:numeric(18,2);not null"`
	StockQty   int             `gorm:"column:stock_qty;not null;default:0"`
	SalesCount int             `gorm:"column:sales_count;not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
