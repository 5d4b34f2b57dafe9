package types

import "github.com/shopspring/decimal"

// CurrencyTotal holds the order figures re-expressed in one currency.
type CurrencyTotal struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// CurrencyTotals is keyed by ISO currency code.
type CurrencyTotals map[string]CurrencyTotal

// AppliedCoupon records a coupon that reduced an order total.
type AppliedCoupon struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Value    decimal.Decimal `json:"value"`
	Discount decimal.Decimal `json:"discount"`
}

type AppliedCoupons []AppliedCoupon

// Codes lists the coupon codes in application order.
func (a AppliedCoupons) Codes() []string {
	out := make([]string, 0, len(a))
	for _, c := range a {
		out = append(out, c.Code)
	}
	return out
}
