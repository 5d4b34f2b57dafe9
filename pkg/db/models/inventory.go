package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// InventoryRecord tracks on-hand and reserved units for one stock target.
type InventoryRecord struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	TargetID    uuid.UUID                 `gorm:"column:target_id;type:uuid;not null;uniqueIndex:ux_inventory_records_target"`
	TargetKind  enums.InventoryTargetKind `gorm:"column:target_kind;type:varchar(16);not null"`
	ProductID   uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	OnHand      int                       `gorm:"column:on_hand;not null"`
	Reserved    int                       `gorm:"column:reserved;not null;default:0"`
	SafetyStock int                       `gorm:"column:safety_stock;not null;default:0"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// Reservation holds qty units of one target for one order.
type Reservation struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_reservations_order_target,priority:1"`
	TargetID   uuid.UUID                 `gorm:"column:target_id;type:uuid;not null;uniqueIndex:ux_reservations_order_target,priority:2"`
	TargetKind enums.InventoryTargetKind `gorm:"column:target_kind;type:varchar(16);not null"`
	ProductID  uuid.UUID                 `gorm:"column:product_id;type:uuid;not null"`
	Qty        int                       `gorm:"column:qty;not null"`
	CatalogQty int                       `gorm:"column:catalog_qty;not null;default:0"`
	Status     enums.ReservationStatus   `gorm:"column:status;type:varchar(16);not null;index"`
	ExpiresAt  time.Time                 `gorm:"column:expires_at;not null;index"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// InventoryLedgerEntry is an immutable audit row of one stock delta.
type InventoryLedgerEntry struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TargetID  uuid.UUID          `gorm:"column:target_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	Delta     int                `gorm:"column:delta;not null"`
	Reason    enums.LedgerReason `gorm:"column:reason;type:varchar(32);not null"`
	Note      *string            `gorm:"column:note"`
	CreatedAt time.Time          `gorm:"column:created_at"`
}

func (e *InventoryLedgerEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
