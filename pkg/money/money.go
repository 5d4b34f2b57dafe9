// Package money holds the currency-aware rounding rules shared by pricing and
// payment verification.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// currencies without a fractional unit in practice
var wholeUnitCurrencies = map[enums.Currency]struct{}{
	enums.CurrencyYER: {},
	"JPY":             {},
	"KRW":             {},
}

// Places returns the number of decimal places amounts in c are rounded to.
func Places(c enums.Currency) int32 {
	if _, ok := wholeUnitCurrencies[c]; ok {
		return 0
	}
	return 2
}

// Round rounds half away from zero to the currency's precision.
func Round(amount decimal.Decimal, c enums.Currency) decimal.Decimal {
	return amount.Round(Places(c))
}

// NonNegative clamps negative amounts to zero.
func NonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Cap returns amount limited to at most limit.
func Cap(amount, limit decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(limit) {
		return limit
	}
	return amount
}
