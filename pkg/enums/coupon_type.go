package enums

// CouponType controls how a coupon discount is computed.
type CouponType string

const (
	CouponTypeFixedAmount  CouponType = "fixed_amount"
	CouponTypePercentage   CouponType = "percentage"
	CouponTypeFreeShipping CouponType = "free_shipping"
)

var couponTypes = newValueSet[CouponType]("coupon type",
	CouponTypeFixedAmount,
	CouponTypePercentage,
	CouponTypeFreeShipping,
)

func (c CouponType) String() string {
	return string(c)
}

func (c CouponType) IsValid() bool {
	return couponTypes.has(c)
}

func ParseCouponType(value string) (CouponType, error) {
	return couponTypes.parse(value)
}

// Priority orders coupon application: fixed amounts first, then
// percentages, then everything else.
func (c CouponType) Priority() int {
	switch c {
	case CouponTypeFixedAmount:
		return 0
	case CouponTypePercentage:
		return 1
	default:
		return 2
	}
}
