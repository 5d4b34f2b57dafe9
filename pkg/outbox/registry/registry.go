// Package registry decides where each outbox event type is published and
// checks that a stored row can be decoded before it leaves the database.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
)

// ErrUnpublishable marks a row that will never publish however often it is
// retried; the publisher dead-letters it.
var ErrUnpublishable = errors.New("unpublishable outbox event")

func unpublishable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnpublishable, fmt.Sprintf(format, args...))
}

// Route is where one event type goes and how its data is decoded.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is a row that passed validation.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

// NewEventRegistry routes order lifecycle and stock events to the orders
// topic, payment bookkeeping to the billing topic and notification fan-out
// to its own topic. Every declared event type must have a route.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []error
	topic := func(name, value string) string {
		if value == "" {
			missing = append(missing, fmt.Errorf("%s topic is required", name))
		}
		return value
	}
	orders := topic("orders", cfg.OrdersTopic)
	billing := topic("billing", cfg.BillingTopic)
	notify := topic("notification", cfg.NotificationTopic)
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	table := []Route{
		{enums.EventOrderCreated, enums.AggregateOrder, orders, decodeAs[payloads.OrderCreatedEvent]},
		{enums.EventOrderStatusChanged, enums.AggregateOrder, orders, decodeAs[payloads.OrderStatusChangedEvent]},
		{enums.EventStockAdjusted, enums.AggregateInventory, orders, decodeAs[payloads.StockAdjustedEvent]},
		{enums.EventOrderPaid, enums.AggregateOrder, billing, decodeAs[payloads.OrderPaidEvent]},
		{enums.EventPaymentFailed, enums.AggregateOrder, billing, decodeAs[payloads.PaymentFailedEvent]},
		{enums.EventInvoiceRequested, enums.AggregateOrder, billing, decodeAs[payloads.InvoiceRequestedEvent]},
		{enums.EventCommissionRequested, enums.AggregateOrder, billing, decodeAs[payloads.CommissionRequestedEvent]},
		{enums.EventNotificationRequested, enums.AggregateNotification, notify, decodeAs[payloads.NotificationRequestedEvent]},
	}

	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route, len(table))}
	for _, r := range table {
		reg.routes[r.EventType] = r
	}
	for _, t := range enums.OutboxEventTypes() {
		if _, ok := reg.routes[t]; !ok {
			return nil, fmt.Errorf("outbox event type %s has no route", t)
		}
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload. Every error it
// returns wraps ErrUnpublishable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, unpublishable("unsupported event type %s", event.EventType)
	case route.AggregateType != event.AggregateType:
		return nil, unpublishable("aggregate mismatch: expected %s got %s", route.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, unpublishable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, unpublishable("decode envelope: %v", err)
	}
	if envelope.Version > outbox.EnvelopeVersion {
		return nil, unpublishable("envelope version %d is newer than %d", envelope.Version, outbox.EnvelopeVersion)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, unpublishable("payload missing for %s", event.EventType)
	}

	payload, err := route.decode(envelope.Data)
	if err != nil {
		return nil, unpublishable("decode %s payload: %v", event.EventType, err)
	}
	return &ResolvedEvent{Route: route, Envelope: envelope, Payload: payload}, nil
}
