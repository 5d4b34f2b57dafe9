package enums

// NotificationType categorizes customer and staff notifications.
type NotificationType string

const (
	NotificationOrderPlaced        NotificationType = "order_placed"
	NotificationOrderConfirmed     NotificationType = "order_confirmed"
	NotificationOrderStatusChanged NotificationType = "order_status_changed"
	NotificationPaymentFailed      NotificationType = "payment_failed"
	NotificationOrderShipped       NotificationType = "order_shipped"
	NotificationOrderCancelled     NotificationType = "order_cancelled"
	NotificationNewOrderAdmin      NotificationType = "new_order_admin"
)

var notificationTypes = newValueSet[NotificationType]("notification type",
	NotificationOrderPlaced,
	NotificationOrderConfirmed,
	NotificationOrderStatusChanged,
	NotificationPaymentFailed,
	NotificationOrderShipped,
	NotificationOrderCancelled,
	NotificationNewOrderAdmin,
)

func (n NotificationType) String() string {
	return string(n)
}

func (n NotificationType) IsValid() bool {
	return notificationTypes.has(n)
}

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse(value)
}
