package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

type Reservation struct {
	ID         uuid.UUID                 `json:"id"`
	TargetID   uuid.UUID                 `json:"target_id"`
	TargetKind enums.InventoryTargetKind `json:"target_kind"`
	ProductID  uuid.UUID                 `json:"product_id"`
	Qty        int                       `json:"qty"`
	Status     enums.ReservationStatus   `json:"status"`
	ExpiresAt  time.Time                 `json:"expires_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

type LedgerEntry struct {
	ID        uuid.UUID          `json:"id"`
	TargetID  uuid.UUID          `json:"target_id"`
	OrderID   *uuid.UUID         `json:"order_id,omitempty"`
	Delta     int                `json:"delta"`
	Reason    enums.LedgerReason `json:"reason"`
	Note      *string            `json:"note,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// OrderReservations is the admin view of one order's stock holds.
type OrderReservations struct {
	OrderID      uuid.UUID     `json:"order_id"`
	Reservations []Reservation `json:"reservations"`
	Ledger       []LedgerEntry `json:"ledger"`
}

type TargetLedger struct {
	TargetID uuid.UUID     `json:"target_id"`
	NetDelta int           `json:"net_delta"`
	Entries  []LedgerEntry `json:"entries"`
}

func NewReservations(rows []models.Reservation) []Reservation {
	out := make([]Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Reservation{
			ID:         r.ID,
			TargetID:   r.TargetID,
			TargetKind: r.TargetKind,
			ProductID:  r.ProductID,
			Qty:        r.Qty,
			Status:     r.Status,
			ExpiresAt:  r.ExpiresAt,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return out
}

func NewLedgerEntries(rows []models.InventoryLedgerEntry) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(rows))
	for _, e := range rows {
		out = append(out, LedgerEntry{
			ID:        e.ID,
			TargetID:  e.TargetID,
			OrderID:   e.OrderID,
			Delta:     e.Delta,
			Reason:    e.Reason,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
