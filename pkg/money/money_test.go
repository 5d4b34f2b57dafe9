package money

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

func TestRoundByCurrency(t *testing.T) {
	cases := []struct {
		amount   string
		currency enums.Currency
		want     string
	}{
		{"1234.5", enums.CurrencyYER, "1235"},
		{"1234.49", enums.CurrencyYER, "1234"},
		{"10.005", enums.CurrencyUSD, "10.01"},
		{"10.004", enums.CurrencySAR, "10"},
		{"-2.5", enums.CurrencyYER, "-3"},
	}
	for _, tc := range cases {
		got := Round(decimal.RequireFromString(tc.amount), tc.currency)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Round(%s, %s) = %s, want %s", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestPlaces(t *testing.T) {
	if Places(enums.CurrencyYER) != 0 {
		t.Fatalf("YER should have no decimals")
	}
	if Places(enums.CurrencyUSD) != 2 {
		t.Fatalf("USD should have two decimals")
	}
}

func TestCapAndNonNegative(t *testing.T) {
	if got := Cap(decimal.NewFromInt(150), decimal.NewFromInt(100)); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected cap at 100, got %s", got)
	}
	if got := Cap(decimal.NewFromInt(50), decimal.NewFromInt(100)); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50 untouched, got %s", got)
	}
	if got := NonNegative(decimal.NewFromInt(-1)); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}
