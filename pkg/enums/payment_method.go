package enums

// PaymentMethod is the way a customer settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
)

var paymentMethods = newValueSet[PaymentMethod]("payment method",
	PaymentMethodCOD,
	PaymentMethodBankTransfer,
	PaymentMethodCard,
)

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	return paymentMethods.has(p)
}

// ParsePaymentMethod rejects anything outside the declared PaymentMethod values.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse(value)
}

// RequiresReference reports whether the method needs a customer supplied
// transfer reference at checkout.
func (p PaymentMethod) RequiresReference() bool {
	return p == PaymentMethodBankTransfer
}
