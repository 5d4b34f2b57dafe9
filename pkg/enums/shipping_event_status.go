package enums

// ShippingEventStatus is the carrier-reported delivery status.
type ShippingEventStatus string

const (
	ShippingShipped          ShippingEventStatus = "shipped"
	ShippingInTransit        ShippingEventStatus = "in_transit"
	ShippingDelivered        ShippingEventStatus = "delivered"
	ShippingDeliveryFailed   ShippingEventStatus = "delivery_failed"
	ShippingReturnedToSender ShippingEventStatus = "returned_to_sender"
)

var shippingEventStatuses = newValueSet[ShippingEventStatus]("shipping status",
	ShippingShipped,
	ShippingInTransit,
	ShippingDelivered,
	ShippingDeliveryFailed,
	ShippingReturnedToSender,
)

func (s ShippingEventStatus) String() string {
	return string(s)
}

func (s ShippingEventStatus) IsValid() bool {
	return shippingEventStatuses.has(s)
}

func ParseShippingEventStatus(value string) (ShippingEventStatus, error) {
	return shippingEventStatuses.parse(value)
}
