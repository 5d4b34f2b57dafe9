// Package currency converts amounts between the configured currencies using
// static rates expressed as units per US dollar.
package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// conversion precision before the caller applies currency rounding
const divisionPrecision = 12

type Converter struct {
	rates map[enums.Currency]decimal.Decimal
}

// NewConverter parses the configured rates. USD must be present.
func NewConverter(cfg config.CurrencyConfig) (*Converter, error) {
	rates := make(map[enums.Currency]decimal.Decimal, len(cfg.Rates))
	for rawCode, rawRate := range cfg.Rates {
		code, err := enums.ParseCurrency(strings.ToUpper(strings.TrimSpace(rawCode)))
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(rawRate))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", code)
		}
		rates[code] = rate
	}
	if _, ok := rates[enums.CurrencyUSD]; !ok {
		return nil, fmt.Errorf("USD rate required")
	}
	return &Converter{rates: rates}, nil
}

// Convert returns amount re-expressed in to. Rounding is left to the caller.
func (c *Converter) Convert(_ context.Context, amount decimal.Decimal, from, to enums.Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := c.rates[from]
	if !ok {
		return decimal.Zero, unknownRate(from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return decimal.Zero, unknownRate(to)
	}
	return amount.Mul(toRate).DivRound(fromRate, divisionPrecision), nil
}

// Supports reports whether a rate is configured for cur.
func (c *Converter) Supports(cur enums.Currency) bool {
	_, ok := c.rates[cur]
	return ok
}

func unknownRate(cur enums.Currency) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "no conversion rate configured").WithDetails(map[string]any{
		"currency": cur,
	})
}
