package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// Notification is an in-app notification. A nil RecipientID addresses staff.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID *uuid.UUID             `gorm:"column:recipient_id;type:uuid;index"`
	Audience    enums.ActorRole        `gorm:"column:audience;type:varchar(16);not null"`
	Type        enums.NotificationType `gorm:"column:type;type:varchar(32);not null"`
	Title       string                 `gorm:"column:title;not null"`
	Body        string                 `gorm:"column:body;not null"`
	Payload     types.JSONMap          `gorm:"column:payload;type:jsonb;serializer:json"`
	ReadAt      *time.Time             `gorm:"column:read_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
