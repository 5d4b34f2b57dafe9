package enums

// PaymentEventStatus is the provider-reported outcome of a payment intent.
type PaymentEventStatus string

const (
	PaymentEventSuccess PaymentEventStatus = "SUCCESS"
	PaymentEventFailed  PaymentEventStatus = "FAILED"
)

var paymentEventStatuses = newValueSet[PaymentEventStatus]("payment event status",
	PaymentEventSuccess,
	PaymentEventFailed,
)

func (p PaymentEventStatus) String() string {
	return string(p)
}

func (p PaymentEventStatus) IsValid() bool {
	return paymentEventStatuses.has(p)
}

func ParsePaymentEventStatus(value string) (PaymentEventStatus, error) {
	return paymentEventStatuses.parse(value)
}
