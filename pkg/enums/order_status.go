package enums

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusOnHold         OrderStatus = "ON_HOLD"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusReturned       OrderStatus = "RETURNED"
	OrderStatusRefunded       OrderStatus = "REFUNDED"
	OrderStatusOutOfStock     OrderStatus = "OUT_OF_STOCK"
)

var orderStatuses = newValueSet[OrderStatus]("order status",
	OrderStatusPendingPayment,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusOnHold,
	OrderStatusCancelled,
	OrderStatusReturned,
	OrderStatusRefunded,
	OrderStatusOutOfStock,
)

func (o OrderStatus) String() string {
	return string(o)
}

func (o OrderStatus) IsValid() bool {
	return orderStatuses.has(o)
}

// ParseOrderStatus rejects anything outside the declared OrderStatus values.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse(value)
}

// OrderStatuses returns every known status in declaration order.
func OrderStatuses() []OrderStatus {
	return orderStatuses.all()
}
