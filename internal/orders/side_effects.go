package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/notifications"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

func orderStatusChanged(order *models.Order, from, to enums.OrderStatus, change statusChange) payloads.OrderStatusChangedEvent {
	return payloads.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		From:        from,
		To:          to,
		ActorRole:   change.actor.Role,
		Notes:       change.notes,
	}
}

func paidEvent(order *models.Order, actor Actor) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.OrderPaidEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			PaymentMethod:   order.PaymentMethod,
			PaymentIntentID: order.PaymentIntentID,
			Amount:          order.Total,
			Currency:        order.Currency,
		},
	}
}

func paymentFailedEvent(order *models.Order, actor Actor, reason string, amount decimal.Decimal, currency enums.Currency) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.PaymentFailedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      reason,
			Amount:      amount,
			Currency:    currency,
		},
	}
}

// afterTransition fires the best-effort consequences of a committed status
// change. Failures are logged only.
func (s *service) afterTransition(ctx context.Context, order *models.Order, from enums.OrderStatus, change statusChange) {
	to := order.Status
	kind := change.notify
	if kind == "" {
		kind = notificationFor(to)
	}
	snapshot := *order

	s.runAsync(ctx, "order side effects", func(ctx context.Context) error {
		var errs []error
		if to == enums.OrderStatusConfirmed || to == enums.OrderStatusCompleted {
			errs = append(errs, s.emitDetached(ctx, outbox.DomainEvent{
				EventType:     enums.EventInvoiceRequested,
				AggregateType: enums.AggregateOrder,
				AggregateID:   snapshot.ID,
				Actor:         SystemActor().ref(),
				Data: payloads.InvoiceRequestedEvent{
					OrderID:     snapshot.ID,
					OrderNumber: snapshot.OrderNumber,
					Status:      to,
					Total:       snapshot.Total,
					Currency:    snapshot.Currency,
				},
			}))
		}
		if to == enums.OrderStatusCompleted {
			errs = append(errs, s.emitDetached(ctx, outbox.DomainEvent{
				EventType:     enums.EventCommissionRequested,
				AggregateType: enums.AggregateOrder,
				AggregateID:   snapshot.ID,
				Actor:         SystemActor().ref(),
				Data: payloads.CommissionRequestedEvent{
					OrderID:     snapshot.ID,
					OrderNumber: snapshot.OrderNumber,
					Subtotal:    snapshot.Subtotal,
					Total:       snapshot.Total,
					Currency:    snapshot.Currency,
				},
			}))
			errs = append(errs, s.catalog.RecordSales(ctx, saleLines(snapshot.Items)))
		}
		customer := snapshot.CustomerID
		errs = append(errs, s.notifier.Dispatch(ctx, notifications.Message{
			RecipientID: &customer,
			Type:        kind,
			Title:       fmt.Sprintf("Order %s", snapshot.OrderNumber),
			Body:        fmt.Sprintf("Your order moved from %s to %s.", from, to),
			Payload: types.JSONMap{
				"order_id": snapshot.ID.String(),
				"from":     string(from),
				"to":       string(to),
			},
		}))
		return multierr.Combine(errs...)
	})
}

// notifyPlaced tells the customer and staff about a new order.
func (s *service) notifyPlaced(ctx context.Context, order *models.Order) {
	snapshot := *order
	s.runAsync(ctx, "order placed notifications", func(ctx context.Context) error {
		customer := snapshot.CustomerID
		payload := types.JSONMap{
			"order_id":     snapshot.ID.String(),
			"order_number": snapshot.OrderNumber,
			"total":        snapshot.Total.String(),
			"currency":     string(snapshot.Currency),
		}
		return multierr.Combine(
			s.notifier.Dispatch(ctx, notifications.Message{
				RecipientID: &customer,
				Type:        enums.NotificationOrderPlaced,
				Title:       fmt.Sprintf("Order %s placed", snapshot.OrderNumber),
				Body:        fmt.Sprintf("We received your order of %s %s.", snapshot.Total.String(), snapshot.Currency),
				Payload:     payload,
			}),
			s.notifier.Dispatch(ctx, notifications.Message{
				Audience: enums.ActorRoleAdmin,
				Type:     enums.NotificationNewOrderAdmin,
				Title:    fmt.Sprintf("New order %s", snapshot.OrderNumber),
				Body:     fmt.Sprintf("Payment method %s.", snapshot.PaymentMethod),
				Payload:  payload,
			}),
		)
	})
}

func (s *service) notifyPaymentFailed(ctx context.Context, order *models.Order, reason string) {
	snapshot := *order
	s.runAsync(ctx, "payment failed notification", func(ctx context.Context) error {
		customer := snapshot.CustomerID
		return s.notifier.Dispatch(ctx, notifications.Message{
			RecipientID: &customer,
			Type:        enums.NotificationPaymentFailed,
			Title:       fmt.Sprintf("Payment for %s failed", snapshot.OrderNumber),
			Body:        reason,
			Payload:     types.JSONMap{"order_id": snapshot.ID.String()},
		})
	})
}

func (s *service) emitDetached(ctx context.Context, event outbox.DomainEvent) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, event)
	})
}

// runAsync detaches task from the caller's cancellation and logs its error.
func (s *service) runAsync(ctx context.Context, name string, task func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	s.async(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logg.Error(detached, name+" panicked", fmt.Errorf("%v", r))
			}
		}()
		if err := task(detached); err != nil {
			s.logg.Error(detached, name+" failed", err)
		}
	})
}

func notificationFor(status enums.OrderStatus) enums.NotificationType {
	switch status {
	case enums.OrderStatusConfirmed:
		return enums.NotificationOrderConfirmed
	case enums.OrderStatusCancelled:
		return enums.NotificationOrderCancelled
	default:
		return enums.NotificationOrderStatusChanged
	}
}

func saleLines(items []models.OrderItem) []product.SaleLine {
	out := make([]product.SaleLine, 0, len(items))
	for _, item := range items {
		out = append(out, product.SaleLine{ProductID: item.ProductID, VariantID: item.VariantID, Qty: item.Qty})
	}
	return out
}
