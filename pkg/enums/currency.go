package enums

// Currency represents supported monetary denominations.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyYER Currency = "YER"
	CurrencySAR Currency = "SAR"
	CurrencyAED Currency = "AED"
	CurrencyEUR Currency = "EUR"
)

var currencies = newValueSet[Currency]("currency",
	CurrencyUSD,
	CurrencyYER,
	CurrencySAR,
	CurrencyAED,
	CurrencyEUR,
)

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	return currencies.has(c)
}

// ParseCurrency rejects anything outside the declared Currency values.
func ParseCurrency(value string) (Currency, error) {
	return currencies.parse(value)
}
