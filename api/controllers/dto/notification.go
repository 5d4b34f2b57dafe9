package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/notifications"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

type Notification struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Payload   types.JSONMap          `json:"payload,omitempty"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type NotificationList struct {
	Items  []Notification `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

func NewNotificationList(list *notifications.ListResult) NotificationList {
	if list == nil {
		return NotificationList{Items: []Notification{}}
	}
	out := NotificationList{Items: make([]Notification, 0, len(list.Items)), Cursor: list.Cursor}
	for _, n := range list.Items {
		out.Items = append(out.Items, Notification{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Body:      n.Body,
			Payload:   n.Payload,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
