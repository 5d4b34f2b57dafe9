package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

const (
	defaultTargetLimit = 100
	maxTargetLimit     = 500
)

// Service records and reads stock movements.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.InventoryLedgerEntry, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLedgerEntry, error)
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error)
	NetDelta(ctx context.Context, targetID uuid.UUID) (int, error)
	Retract(ctx context.Context, entryID uuid.UUID) error
}

type service struct {
	repo Repository
}

// RecordInput is one signed stock movement. OrderID is nil for manual or
// webhook-driven adjustments.
type RecordInput struct {
	TargetID uuid.UUID
	OrderID  *uuid.UUID
	Delta    int
	Reason   enums.LedgerReason
	Note     string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// WithTx returns a service bound to tx.
func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.InventoryLedgerEntry, error) {
	if input.TargetID == uuid.Nil {
		return nil, fmt.Errorf("target id is required")
	}
	if !input.Reason.IsValid() {
		return nil, fmt.Errorf("invalid ledger reason %q", input.Reason)
	}
	if input.Reason != enums.LedgerReasonStockAdjustment && (input.OrderID == nil || *input.OrderID == uuid.Nil) {
		return nil, fmt.Errorf("order id is required for %s", input.Reason)
	}
	if input.Reason == enums.LedgerReasonOrderReserved && input.Delta > 0 {
		return nil, fmt.Errorf("reserve entries must not be positive")
	}
	if input.Reason == enums.LedgerReasonOrderCancelledRelease && input.Delta < 0 {
		return nil, fmt.Errorf("release entries must not be negative")
	}

	entry := &models.InventoryLedgerEntry{
		TargetID: input.TargetID,
		OrderID:  input.OrderID,
		Delta:    input.Delta,
		Reason:   input.Reason,
	}
	if note := strings.TrimSpace(input.Note); note != "" {
		entry.Note = &note
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error) {
	if targetID == uuid.Nil {
		return nil, fmt.Errorf("target id is required")
	}
	if limit <= 0 {
		limit = defaultTargetLimit
	}
	if limit > maxTargetLimit {
		limit = maxTargetLimit
	}
	return s.repo.ListByTargetID(ctx, targetID, limit)
}

// NetDelta sums every movement recorded against the target.
func (s *service) NetDelta(ctx context.Context, targetID uuid.UUID) (int, error) {
	if targetID == uuid.Nil {
		return 0, fmt.Errorf("target id is required")
	}
	return s.repo.SumByTargetID(ctx, targetID)
}

// Retract drops an entry written by a reservation step that was rolled back
// within the same call.
func (s *service) Retract(ctx context.Context, entryID uuid.UUID) error {
	if entryID == uuid.Nil {
		return nil
	}
	return s.repo.Delete(ctx, entryID)
}
