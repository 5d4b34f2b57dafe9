package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/money"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

const (
	minRating = 1
	maxRating = 5
)

// Ship records tracking details. A CONFIRMED order moves to PROCESSING; an
// order already PROCESSING only gets its tracking updated.
func (s *service) Ship(ctx context.Context, input ShipInput) (*models.Order, error) {
	carrier := strings.TrimSpace(input.Carrier)
	tracking := strings.TrimSpace(input.TrackingNumber)
	if carrier == "" || tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier and tracking number required")
	}
	if !input.Actor.Role.IsPrivileged() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shipping requires an admin")
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"carrier":         carrier,
		"tracking_number": tracking,
	}
	if input.TrackingURL != nil {
		updates["tracking_url"] = *input.TrackingURL
	}
	if input.EstimatedDelivery != nil {
		updates["estimated_delivery"] = input.EstimatedDelivery.UTC()
	}
	metadata := types.JSONMap{"carrier": carrier, "tracking_number": tracking}

	switch order.Status {
	case enums.OrderStatusConfirmed:
		return s.transition(ctx, order, statusChange{
			to:       enums.OrderStatusProcessing,
			actor:    input.Actor,
			notes:    input.Notes,
			metadata: metadata,
			updates:  updates,
			notify:   enums.NotificationOrderShipped,
		})
	case enums.OrderStatusProcessing:
		return s.appendNote(ctx, order, input.Actor, input.Notes, metadata, updates)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotReadyToShip, "order is not ready to ship").
			WithDetails(map[string]any{"status": order.Status})
	}
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.Actor.Role == enums.ActorRoleCustomer && !input.Actor.owns(order) {
		return nil, orderNotFound(order.ID)
	}
	if !CanCancel(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeOrderCannotCancel, "order cannot be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}
	return s.transition(ctx, order, statusChange{
		to:    enums.OrderStatusCancelled,
		actor: input.Actor,
		notes: trimmed(input.Reason),
	})
}

// Refund closes a returned order. The amount may be partial but never
// exceeds the order total.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Order, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanRefund(order.Status) {
		return nil, invalidStatus(order.Status, enums.OrderStatusRefunded)
	}
	amount := money.Round(input.Amount, order.Currency)
	if !amount.IsPositive() || amount.GreaterThan(order.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive and within the order total").
			WithDetails(map[string]any{"amount": amount.StringFixed(2), "total": order.Total.StringFixed(2)})
	}
	return s.transition(ctx, order, statusChange{
		to:       enums.OrderStatusRefunded,
		actor:    input.Actor,
		notes:    &reason,
		metadata: types.JSONMap{"refund_amount": amount.StringFixed(2)},
		updates: map[string]any{
			"refund_amount":  decimal.NewNullDecimal(amount),
			"refund_reason":  reason,
			"payment_status": enums.PaymentStatusRefunded,
		},
	})
}

func (s *service) AddNote(ctx context.Context, input NoteInput) (*models.Order, error) {
	notes := strings.TrimSpace(input.Notes)
	if notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes required")
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !input.Actor.Role.IsPrivileged() && !input.Actor.owns(order) {
		return nil, orderNotFound(order.ID)
	}
	return s.appendNote(ctx, order, input.Actor, &notes, nil, nil)
}

// Rate stores the owner's single rating of a completed order.
func (s *service) Rate(ctx context.Context, input RateInput) (*models.Order, error) {
	if input.Score < minRating || input.Score > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating score out of range").
			WithDetails(map[string]any{"score": input.Score, "min": minRating, "max": maxRating})
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !input.Actor.owns(order) {
		return nil, orderNotFound(order.ID)
	}
	if !CanRate(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeOrderRatingNotAllowed, "only completed orders can be rated").
			WithDetails(map[string]any{"status": order.Status})
	}

	updates := map[string]any{
		"rating_score": input.Score,
		"rated_at":     s.now().UTC(),
	}
	if c := trimmed(input.Comment); c != nil {
		updates["rating_comment"] = *c
	}
	ok, err := s.repo.UpdateWhere(ctx, order.ID, "rated_at IS NULL", updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store rating")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeOrderRatingNotAllowed, "order already rated")
	}
	return s.load(ctx, order.ID)
}

// VerifyLocalPayment records money an admin received outside the card flow.
func (s *service) VerifyLocalPayment(ctx context.Context, input VerifyPaymentInput) (*models.Order, error) {
	if !input.Actor.Role.IsPrivileged() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment verification requires an admin")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.Currency != order.Currency {
		return nil, pkgerrors.New(pkgerrors.CodeCurrencyMismatch, "payment currency does not match the order").
			WithDetails(map[string]any{"expected": order.Currency, "got": input.Currency})
	}

	amount := money.Round(input.Amount, order.Currency)
	switch {
	case order.PaymentStatus == enums.PaymentStatusPaid:
		return order, nil
	case order.PaymentStatus == enums.PaymentStatusFailed &&
		order.VerifiedAmount.Valid && order.VerifiedAmount.Decimal.Equal(amount):
		return order, nil
	}

	currency := input.Currency
	updates := map[string]any{
		"verified_amount":   decimal.NewNullDecimal(amount),
		"verified_currency": currency,
		"verified_by":       input.Actor.UserID,
		"verified_at":       s.now().UTC(),
	}
	metadata := types.JSONMap{"amount": amount.StringFixed(2), "currency": string(currency)}

	if amount.LessThan(order.Total) {
		shortfall := order.Total.Sub(amount)
		note := fmt.Sprintf("payment short by %s %s", shortfall.StringFixed(2), currency)
		if input.Notes != nil {
			note += ": " + *input.Notes
		}
		metadata["shortfall"] = shortfall.StringFixed(2)
		updates["payment_status"] = enums.PaymentStatusFailed
		updated, err := s.appendNote(ctx, order, input.Actor, &note, metadata, updates,
			paymentFailedEvent(order, input.Actor, note, amount, currency))
		if err != nil {
			return nil, err
		}
		s.notifyPaymentFailed(ctx, updated, note)
		return updated, nil
	}

	updates["payment_status"] = enums.PaymentStatusPaid
	return s.markPaid(ctx, order, input.Actor, input.Notes, metadata, updates)
}

// markPaid stores PAID and, for an order still awaiting payment, confirms it
// in the same write.
func (s *service) markPaid(ctx context.Context, order *models.Order, actor Actor, notes *string, metadata types.JSONMap, updates map[string]any) (*models.Order, error) {
	paid := *order
	paid.PaymentStatus = enums.PaymentStatusPaid
	if order.Status == enums.OrderStatusPendingPayment {
		return s.transition(ctx, order, statusChange{
			to:       enums.OrderStatusConfirmed,
			actor:    actor,
			notes:    notes,
			metadata: metadata,
			updates:  updates,
			events:   []outbox.DomainEvent{paidEvent(&paid, actor)},
		})
	}
	if notes == nil {
		note := "payment received"
		notes = &note
	}
	return s.appendNote(ctx, order, actor, notes, metadata, updates, paidEvent(&paid, actor))
}
