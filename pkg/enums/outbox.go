package enums

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateInventory    OutboxAggregateType = "inventory"
	AggregateNotification OutboxAggregateType = "notification"
)

var aggregateTypes = newValueSet[OutboxAggregateType]("aggregate type",
	AggregateOrder,
	AggregateInventory,
	AggregateNotification,
)

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return aggregateTypes.has(a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventPaymentFailed         OutboxEventType = "payment_failed"
	EventInvoiceRequested      OutboxEventType = "invoice_requested"
	EventCommissionRequested   OutboxEventType = "commission_requested"
	EventStockAdjusted         OutboxEventType = "stock_adjusted"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var outboxEventTypes = newValueSet[OutboxEventType]("event type",
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaid,
	EventPaymentFailed,
	EventInvoiceRequested,
	EventCommissionRequested,
	EventStockAdjusted,
	EventNotificationRequested,
)

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return outboxEventTypes.has(e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse(value)
}

// OutboxEventTypes lists every event type in declaration order.
func OutboxEventTypes() []OutboxEventType {
	return outboxEventTypes.all()
}
