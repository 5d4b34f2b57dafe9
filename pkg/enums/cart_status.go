package enums

// CartStatus tracks whether a cart is still open.
type CartStatus string

const (
	CartStatusActive    CartStatus = "ACTIVE"
	CartStatusConverted CartStatus = "CONVERTED"
)

var cartStatuses = newValueSet[CartStatus]("cart status",
	CartStatusActive,
	CartStatusConverted,
)

func (c CartStatus) String() string {
	return string(c)
}

func (c CartStatus) IsValid() bool {
	return cartStatuses.has(c)
}

// ParseCartStatus rejects anything outside the declared CartStatus values.
func ParseCartStatus(value string) (CartStatus, error) {
	return cartStatuses.parse(value)
}
