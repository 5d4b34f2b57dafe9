package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/inventory"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow-backend/pkg/security"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// HandlePaymentWebhook applies a provider payment outcome. Only a bad
// signature is returned as an error; every other outcome is reported in the
// result so the provider stops redelivering.
func (s *service) HandlePaymentWebhook(ctx context.Context, input PaymentWebhookInput) (WebhookResult, error) {
	if !security.VerifyFields(s.signingKey, input.Signature, input.IntentID, input.Status, input.Amount) {
		return WebhookResult{}, pkgerrors.New(pkgerrors.CodeBadSignature, "payment webhook signature mismatch")
	}
	ctx = s.logg.WithField(ctx, "payment_intent_id", input.IntentID)

	amount, err := decimal.NewFromString(strings.TrimSpace(input.Amount))
	if err != nil || amount.IsNegative() {
		return WebhookResult{Reason: ReasonInvalidAmount}, nil
	}
	order, err := s.repo.FindByPaymentIntent(ctx, input.IntentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return WebhookResult{Reason: ReasonOrderNotFound}, nil
	}
	if err != nil {
		return WebhookResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
	result := WebhookResult{OK: true, OrderID: &order.ID}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		result.Reason = ReasonAlreadyPaid
		result.Status = order.Status
		return result, nil
	}

	actor := SystemActor()
	status := enums.PaymentEventStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
	metadata := types.JSONMap{
		"payment_intent_id": input.IntentID,
		"provider_status":   string(status),
		"amount":            amount.String(),
	}

	if status == enums.PaymentEventSuccess && amount.Equal(order.Total) {
		updated, err := s.markPaid(ctx, order, actor, nil, metadata, map[string]any{"payment_status": enums.PaymentStatusPaid})
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			// a concurrent delivery got there first
			if current, loadErr := s.load(ctx, order.ID); loadErr == nil && current.PaymentStatus == enums.PaymentStatusPaid {
				result.Reason = ReasonAlreadyPaid
				result.Status = current.Status
				return result, nil
			}
		}
		if err != nil {
			return WebhookResult{}, err
		}
		result.Status = updated.Status
		result.Updated = 1
		return result, nil
	}

	reason := fmt.Sprintf("payment %s for %s %s", strings.ToLower(string(status)), amount.String(), order.Currency)
	if status == enums.PaymentEventSuccess {
		reason = fmt.Sprintf("paid amount %s does not match order total %s", amount.String(), order.Total.String())
	}
	updated, err := s.appendNote(ctx, order, actor, &reason, metadata,
		map[string]any{"payment_status": enums.PaymentStatusFailed},
		paymentFailedEvent(order, actor, reason, amount, order.Currency))
	if err != nil {
		return WebhookResult{}, err
	}
	s.notifyPaymentFailed(ctx, updated, reason)

	result.Reason = ReasonPaymentFailed
	result.Status = updated.Status
	result.Updated = 1
	return result, nil
}

// HandleShippingWebhook maps a carrier event onto the order and walks the
// shortest legal path to the mapped status.
func (s *service) HandleShippingWebhook(ctx context.Context, input ShippingWebhookInput) (WebhookResult, error) {
	event, err := enums.ParseShippingEventStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	if err != nil {
		return WebhookResult{Reason: ReasonUnknownStatus}, nil
	}
	order, err := s.repo.FindByTrackingNumber(ctx, strings.TrimSpace(input.TrackingNumber))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return WebhookResult{Reason: ReasonOrderNotFound}, nil
	}
	if err != nil {
		return WebhookResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by tracking number")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	result := WebhookResult{OK: true, OrderID: &order.ID, Status: order.Status}

	tracking := map[string]any{}
	if input.Carrier != nil {
		tracking["carrier"] = *input.Carrier
	}
	if input.TrackingURL != nil {
		tracking["tracking_url"] = *input.TrackingURL
	}
	if input.EstimatedDelivery != nil {
		tracking["estimated_delivery"] = input.EstimatedDelivery.UTC()
	}
	if err := s.repo.Update(ctx, order.ID, tracking); err != nil {
		return WebhookResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store tracking details")
	}

	target := shippingTarget(event)
	if order.Status == target {
		result.Reason = ReasonNoChange
		return result, nil
	}
	steps := Path(order.Status, target)
	if len(steps) == 0 {
		result.OK = false
		result.Reason = string(pkgerrors.CodeOrderInvalidStatus)
		return result, nil
	}

	metadata := types.JSONMap{"carrier_status": string(event)}
	if input.Location != nil {
		metadata["location"] = *input.Location
	}
	note := fmt.Sprintf("carrier reported %s", event)
	for _, step := range steps {
		change := statusChange{
			to:       step,
			actor:    SystemActor(),
			notes:    &note,
			metadata: metadata,
		}
		switch {
		case step == enums.OrderStatusProcessing:
			change.notify = enums.NotificationOrderShipped
		case step == enums.OrderStatusCompleted && event == enums.ShippingDelivered:
			change.updates = map[string]any{"delivered_at": s.now().UTC()}
		case step == enums.OrderStatusReturned:
			change.updates = map[string]any{"return_reason": note}
		}
		updated, err := s.transition(ctx, order, change)
		if err != nil {
			s.logg.Error(ctx, "shipping webhook transition", err)
			result.OK = false
			result.Reason = string(reasonCode(err))
			return result, nil
		}
		order = updated
		result.Status = updated.Status
		result.Updated++
	}
	return result, nil
}

// HandleInventoryWebhook applies a stock delta and re-evaluates the orders
// holding the target when it crosses zero.
func (s *service) HandleInventoryWebhook(ctx context.Context, input InventoryWebhookInput) (WebhookResult, error) {
	if input.TargetID == uuid.Nil {
		return WebhookResult{Reason: ReasonTargetNotFound}, nil
	}
	ctx = s.logg.WithField(ctx, "target_id", input.TargetID.String())

	productID, variantID, err := s.catalog.ResolveTarget(ctx, input.TargetID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return WebhookResult{Reason: ReasonTargetNotFound}, nil
	}
	if err != nil {
		return WebhookResult{}, err
	}

	note := "inventory webhook"
	if input.Reason != nil && strings.TrimSpace(*input.Reason) != "" {
		note = strings.TrimSpace(*input.Reason)
	}
	change, err := s.inventory.AdjustOnHand(ctx, productID, variantID, input.Delta, note)
	if err != nil {
		return WebhookResult{}, err
	}
	if err := s.emitDetached(ctx, stockAdjustedEvent(change, input.Delta)); err != nil {
		s.logg.Error(ctx, "emit stock adjusted", err)
	}

	result := WebhookResult{OK: true}
	switch {
	case change.CrossedToAvailable():
		result.Updated = s.restock(ctx, change.TargetID)
	case change.CrossedToEmpty():
		result.Updated = s.holdForStock(ctx, change.TargetID)
	}
	return result, nil
}

// restock retries OUT_OF_STOCK orders oldest first. An order whose stock
// still cannot be reserved stays where it is.
func (s *service) restock(ctx context.Context, targetID uuid.UUID) int {
	orders, err := s.repo.ListContainingTarget(ctx, targetID, enums.OrderStatusOutOfStock)
	if err != nil {
		s.logg.Error(ctx, "list out of stock orders", err)
		return 0
	}
	note := "stock available again"
	moved := 0
	for i := range orders {
		order, err := s.load(ctx, orders[i].ID)
		if err != nil {
			s.logg.Error(ctx, "reload order", err)
			continue
		}
		if err := s.inventory.Reserve(ctx, order); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "error": err.Error()}), "restock reservation failed")
			continue
		}
		order, err = s.transition(ctx, order, statusChange{to: enums.OrderStatusPendingPayment, actor: SystemActor(), notes: &note})
		if err != nil {
			s.logg.Error(ctx, "resume out of stock order", err)
			continue
		}
		moved++
		if order.PaymentStatus == enums.PaymentStatusPaid {
			if _, err := s.transition(ctx, order, statusChange{to: enums.OrderStatusConfirmed, actor: SystemActor(), notes: &note}); err != nil {
				s.logg.Error(ctx, "confirm restocked order", err)
			}
		}
	}
	return moved
}

// holdForStock parks orders on a target that ran dry. Confirmed orders go on
// hold; orders still awaiting payment become OUT_OF_STOCK.
func (s *service) holdForStock(ctx context.Context, targetID uuid.UUID) int {
	orders, err := s.repo.ListContainingTarget(ctx, targetID, enums.OrderStatusConfirmed, enums.OrderStatusPendingPayment)
	if err != nil {
		s.logg.Error(ctx, "list orders on empty target", err)
		return 0
	}
	note := "stock depleted"
	moved := 0
	for i := range orders {
		order, err := s.load(ctx, orders[i].ID)
		if err != nil {
			s.logg.Error(ctx, "reload order", err)
			continue
		}
		to := enums.OrderStatusOutOfStock
		if order.Status == enums.OrderStatusConfirmed {
			to = enums.OrderStatusOnHold
		}
		if _, err := s.transition(ctx, order, statusChange{to: to, actor: SystemActor(), notes: &note}); err != nil {
			s.logg.Error(ctx, "hold order for stock", err)
			continue
		}
		moved++
	}
	return moved
}

func shippingTarget(event enums.ShippingEventStatus) enums.OrderStatus {
	switch event {
	case enums.ShippingDelivered:
		return enums.OrderStatusCompleted
	case enums.ShippingDeliveryFailed:
		return enums.OrderStatusOnHold
	case enums.ShippingReturnedToSender:
		return enums.OrderStatusReturned
	default:
		return enums.OrderStatusProcessing
	}
}

func stockAdjustedEvent(change inventory.StockChange, delta int) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateInventory,
		AggregateID:   change.TargetID,
		Actor:         SystemActor().ref(),
		Data: payloads.StockAdjustedEvent{
			TargetID:     change.TargetID,
			ProductID:    change.ProductID,
			Delta:        delta,
			OnHandBefore: change.Before,
			OnHandAfter:  change.After,
		},
	}
}

func reasonCode(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}
