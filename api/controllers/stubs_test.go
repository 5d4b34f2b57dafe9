package controllers

import (
	"context"

	"github.com/google/uuid"

	checkoutsvc "github.com/angelmondragon/orderflow-backend/internal/checkout"
	internalorders "github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// stubOrders implements the calls a test sets and panics on the rest
// through the embedded nil interface.
type stubOrders struct {
	internalorders.Service
	confirmFn func(ctx context.Context, input internalorders.ConfirmCheckoutInput) (*internalorders.ConfirmCheckoutResult, error)
	statusFn  func(ctx context.Context, input internalorders.StatusUpdateInput) (*models.Order, error)
	shipFn    func(ctx context.Context, input internalorders.ShipInput) (*models.Order, error)
	refundFn  func(ctx context.Context, input internalorders.RefundInput) (*models.Order, error)
	noteFn    func(ctx context.Context, input internalorders.NoteInput) (*models.Order, error)
}

func (s stubOrders) ConfirmCheckout(ctx context.Context, input internalorders.ConfirmCheckoutInput) (*internalorders.ConfirmCheckoutResult, error) {
	return s.confirmFn(ctx, input)
}

func (s stubOrders) UpdateOrderStatus(ctx context.Context, input internalorders.StatusUpdateInput) (*models.Order, error) {
	return s.statusFn(ctx, input)
}

func (s stubOrders) Ship(ctx context.Context, input internalorders.ShipInput) (*models.Order, error) {
	return s.shipFn(ctx, input)
}

func (s stubOrders) Refund(ctx context.Context, input internalorders.RefundInput) (*models.Order, error) {
	return s.refundFn(ctx, input)
}

func (s stubOrders) AddNote(ctx context.Context, input internalorders.NoteInput) (*models.Order, error) {
	return s.noteFn(ctx, input)
}

type stubCheckout struct {
	checkoutsvc.Service
	previewFn func(ctx context.Context, input checkoutsvc.QuoteInput) (*checkoutsvc.Quote, error)
}

func (s stubCheckout) Preview(ctx context.Context, input checkoutsvc.QuoteInput) (*checkoutsvc.Quote, error) {
	return s.previewFn(ctx, input)
}

type stubInventory struct {
	reservations []models.Reservation
	entries      []models.InventoryLedgerEntry
	net          int
	limit        int
}

func (s *stubInventory) ListReservations(context.Context, uuid.UUID) ([]models.Reservation, error) {
	return s.reservations, nil
}

func (s *stubInventory) ListByOrder(context.Context, uuid.UUID) ([]models.InventoryLedgerEntry, error) {
	return s.entries, nil
}

func (s *stubInventory) ListByTarget(_ context.Context, _ uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error) {
	s.limit = limit
	return s.entries, nil
}

func (s *stubInventory) NetDelta(context.Context, uuid.UUID) (int, error) {
	return s.net, nil
}
