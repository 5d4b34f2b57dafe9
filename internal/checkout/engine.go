package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/money"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// Rejection reasons recorded for coupons that did not apply.
const (
	ReasonDuplicate         = "DUPLICATE"
	ReasonLimitExceeded     = "LIMIT_EXCEEDED"
	ReasonNothingToDiscount = "NOTHING_TO_DISCOUNT"
	ReasonValidationFailed  = "VALIDATION_FAILED"
)

// CouponValidator resolves a coupon code for a customer and order amount.
type CouponValidator interface {
	Validate(ctx context.Context, req CouponRequest) (*CouponResult, error)
}

// Converter re-expresses an amount in another currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to enums.Currency) (decimal.Decimal, error)
}

type CouponRequest struct {
	CustomerID uuid.UUID
	Code       string
	Amount     decimal.Decimal
	Currency   enums.Currency
	ProductIDs []uuid.UUID
}

// CouponResult is the validator's verdict. Invalid results carry a Reason and
// are never fatal to a quote.
type CouponResult struct {
	Valid       bool                `json:"valid"`
	Reason      string              `json:"reason,omitempty"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Type        enums.CouponType    `json:"type"`
	Value       decimal.Decimal     `json:"value"`
	Currency    enums.Currency      `json:"currency"`
	MaxDiscount decimal.NullDecimal `json:"max_discount"`
}

// Line is one priced cart line. Prices are per unit in Currency.
type Line struct {
	ProductID      uuid.UUID       `json:"product_id"`
	VariantID      *uuid.UUID      `json:"variant_id,omitempty"`
	Name           string          `json:"name"`
	SKU            *string         `json:"sku,omitempty"`
	Qty            int             `json:"qty"`
	UnitBasePrice  decimal.Decimal `json:"unit_base_price"`
	UnitFinalPrice decimal.Decimal `json:"unit_final_price"`
	Currency       enums.Currency  `json:"currency"`
	PromotionID    *uuid.UUID      `json:"promotion_id,omitempty"`
	Active         bool            `json:"active"`
}

// QuoteRequest is the input of a single quote computation.
type QuoteRequest struct {
	CustomerID  uuid.UUID
	Currency    enums.Currency
	Lines       []Line
	CouponCodes []string
	COD         *CODEligibility
}

// QuoteLine is a cart line priced in the quote currency.
type QuoteLine struct {
	Line
	LineTotal decimal.Decimal `json:"line_total"`
}

type RejectedCoupon struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Quote is the fully priced result. Every amount is in Currency unless it
// sits in CurrencyTotals.
type Quote struct {
	CustomerID        uuid.UUID                            `json:"customer_id"`
	Currency          enums.Currency                       `json:"currency"`
	Lines             []QuoteLine                          `json:"lines"`
	Subtotal          decimal.Decimal                      `json:"subtotal"`
	Shipping          decimal.Decimal                      `json:"shipping"`
	Tax               decimal.Decimal                      `json:"tax"`
	ItemsDiscount     decimal.Decimal                      `json:"items_discount"`
	CouponDiscount    decimal.Decimal                      `json:"coupon_discount"`
	TotalDiscount     decimal.Decimal                      `json:"total_discount"`
	DiscountBreakdown map[enums.CouponType]decimal.Decimal `json:"discount_breakdown"`
	Total             decimal.Decimal                      `json:"total"`
	AppliedCoupons    types.AppliedCoupons                 `json:"applied_coupons"`
	RejectedCoupons   []RejectedCoupon                     `json:"rejected_coupons"`
	CurrencyTotals    types.CurrencyTotals                 `json:"currency_totals"`
	COD               *CODEligibility                      `json:"cod,omitempty"`
}

// ProductIDs lists the distinct products of the quote in line order.
func (q *Quote) ProductIDs() []uuid.UUID {
	return productIDs(q.Lines)
}

type EngineConfig struct {
	HomeCurrency      enums.Currency
	TrackedCurrencies []enums.Currency
	MaxCoupons        int
}

// Engine prices cart snapshots. It holds no state beyond its collaborators
// and is safe for concurrent use.
type Engine struct {
	coupons   CouponValidator
	converter Converter
	tracked   []enums.Currency
	maxCoupon int
}

func NewEngine(coupons CouponValidator, converter Converter, cfg EngineConfig) (*Engine, error) {
	if coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if converter == nil {
		return nil, fmt.Errorf("currency converter required")
	}
	if !cfg.HomeCurrency.IsValid() {
		return nil, fmt.Errorf("invalid home currency %q", cfg.HomeCurrency)
	}
	return &Engine{
		coupons:   coupons,
		converter: converter,
		tracked:   trackedCurrencies(cfg.HomeCurrency, cfg.TrackedCurrencies),
		maxCoupon: cfg.MaxCoupons,
	}, nil
}

// Compute prices the request. Coupon problems are recorded on the quote;
// only conversion or validator outages fail the call.
func (e *Engine) Compute(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !req.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").WithDetails(map[string]any{
			"currency": req.Currency,
		})
	}
	if err := ValidateLines(req.Lines); err != nil {
		return nil, err
	}

	cur := req.Currency
	quote := &Quote{
		CustomerID:        req.CustomerID,
		Currency:          cur,
		Shipping:          decimal.Zero,
		Tax:               decimal.Zero,
		DiscountBreakdown: map[enums.CouponType]decimal.Decimal{},
		AppliedCoupons:    types.AppliedCoupons{},
		RejectedCoupons:   []RejectedCoupon{},
		COD:               req.COD,
	}

	subtotal := decimal.Zero
	itemsDiscount := decimal.Zero
	for _, line := range req.Lines {
		base, err := e.convert(ctx, line.UnitBasePrice, line.Currency, cur)
		if err != nil {
			return nil, err
		}
		final, err := e.convert(ctx, line.UnitFinalPrice, line.Currency, cur)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(int64(line.Qty))
		priced := line
		priced.UnitBasePrice = base
		priced.UnitFinalPrice = final
		priced.Currency = cur
		quote.Lines = append(quote.Lines, QuoteLine{Line: priced, LineTotal: money.Round(final.Mul(qty), cur)})

		subtotal = subtotal.Add(base.Mul(qty))
		if base.GreaterThan(final) {
			itemsDiscount = itemsDiscount.Add(base.Sub(final).Mul(qty))
		}
	}
	quote.Subtotal = money.Round(subtotal, cur)
	quote.ItemsDiscount = money.Round(itemsDiscount, cur)

	couponDiscount, err := e.applyCoupons(ctx, req, quote)
	if err != nil {
		return nil, err
	}
	quote.CouponDiscount = couponDiscount
	quote.TotalDiscount = quote.ItemsDiscount.Add(couponDiscount)
	quote.Total = money.NonNegative(quote.Subtotal.Sub(quote.TotalDiscount)).Add(quote.Shipping).Add(quote.Tax)

	totals, err := e.currencyTotals(ctx, quote)
	if err != nil {
		return nil, err
	}
	quote.CurrencyTotals = totals
	return quote, nil
}

func (e *Engine) applyCoupons(ctx context.Context, req QuoteRequest, quote *Quote) (decimal.Decimal, error) {
	codes, dupes := NormalizeCodes(req.CouponCodes)
	for _, code := range dupes {
		quote.RejectedCoupons = append(quote.RejectedCoupons, RejectedCoupon{Code: code, Reason: ReasonDuplicate})
	}
	if e.maxCoupon > 0 && len(codes) > e.maxCoupon {
		for _, code := range codes[e.maxCoupon:] {
			quote.RejectedCoupons = append(quote.RejectedCoupons, RejectedCoupon{Code: code, Reason: ReasonLimitExceeded})
		}
		codes = codes[:e.maxCoupon]
	}
	if len(codes) == 0 {
		return decimal.Zero, nil
	}

	base := money.NonNegative(quote.Subtotal.Sub(quote.ItemsDiscount))
	products := quote.ProductIDs()

	valid := make([]*CouponResult, 0, len(codes))
	for _, code := range codes {
		result, err := e.coupons.Validate(ctx, CouponRequest{
			CustomerID: req.CustomerID,
			Code:       code,
			Amount:     base,
			Currency:   quote.Currency,
			ProductIDs: products,
		})
		if err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate coupon")
		}
		if result == nil || !result.Valid {
			reason := ReasonValidationFailed
			if result != nil && result.Reason != "" {
				reason = result.Reason
			}
			quote.RejectedCoupons = append(quote.RejectedCoupons, RejectedCoupon{Code: code, Reason: reason})
			continue
		}
		valid = append(valid, result)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Type.Priority() < valid[j].Type.Priority()
	})

	cur := quote.Currency
	remaining := base
	total := decimal.Zero
	for _, c := range valid {
		if !remaining.IsPositive() {
			quote.RejectedCoupons = append(quote.RejectedCoupons, RejectedCoupon{Code: c.Code, Reason: ReasonNothingToDiscount})
			continue
		}
		discount, err := e.couponDiscount(ctx, c, remaining, quote)
		if err != nil {
			return decimal.Zero, err
		}
		discount = money.Round(money.Cap(money.NonNegative(discount), remaining), cur)
		remaining = remaining.Sub(discount)
		total = total.Add(discount)

		quote.DiscountBreakdown[c.Type] = quote.DiscountBreakdown[c.Type].Add(discount)
		quote.AppliedCoupons = append(quote.AppliedCoupons, types.AppliedCoupon{
			Code:     c.Code,
			Name:     c.Name,
			Type:     string(c.Type),
			Value:    c.Value,
			Discount: discount,
		})
	}
	return total, nil
}

func (e *Engine) couponDiscount(ctx context.Context, c *CouponResult, remaining decimal.Decimal, quote *Quote) (decimal.Decimal, error) {
	switch c.Type {
	case enums.CouponTypePercentage:
		discount := remaining.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsPositive() {
			limit, err := e.convert(ctx, c.MaxDiscount.Decimal, c.Currency, quote.Currency)
			if err != nil {
				return decimal.Zero, err
			}
			discount = money.Cap(discount, limit)
		}
		return discount, nil
	case enums.CouponTypeFixedAmount:
		return e.convert(ctx, c.Value, c.Currency, quote.Currency)
	case enums.CouponTypeFreeShipping:
		return quote.Shipping, nil
	default:
		return decimal.Zero, nil
	}
}

func (e *Engine) currencyTotals(ctx context.Context, quote *Quote) (types.CurrencyTotals, error) {
	out := make(types.CurrencyTotals, len(e.tracked))
	for _, target := range e.tracked {
		var total types.CurrencyTotal
		for _, pair := range []struct {
			dst *decimal.Decimal
			src decimal.Decimal
		}{
			{&total.Subtotal, quote.Subtotal},
			{&total.Discount, quote.TotalDiscount},
			{&total.Shipping, quote.Shipping},
			{&total.Total, quote.Total},
		} {
			converted, err := e.convert(ctx, pair.src, quote.Currency, target)
			if err != nil {
				return nil, err
			}
			*pair.dst = money.Round(converted, target)
		}
		out[string(target)] = total
	}
	return out, nil
}

func (e *Engine) convert(ctx context.Context, amount decimal.Decimal, from, to enums.Currency) (decimal.Decimal, error) {
	if from == "" || from == to {
		return amount, nil
	}
	converted, err := e.converter.Convert(ctx, amount, from, to)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert currency").WithDetails(map[string]any{
			"from": from,
			"to":   to,
		})
	}
	return converted, nil
}

// NormalizeCodes trims and upper-cases codes, dropping blanks. Repeated codes
// keep their first position and are returned separately.
func NormalizeCodes(codes []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	var dupes []string
	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			dupes = append(dupes, code)
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, dupes
}

func trackedCurrencies(home enums.Currency, extra []enums.Currency) []enums.Currency {
	out := []enums.Currency{home}
	seen := map[enums.Currency]struct{}{home: {}}
	candidates := make([]enums.Currency, 0, len(extra)+3)
	candidates = append(candidates, extra...)
	candidates = append(candidates, enums.CurrencyUSD, enums.CurrencyYER, enums.CurrencySAR)
	for _, c := range candidates {
		if _, ok := seen[c]; ok || !c.IsValid() {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func productIDs(lines []QuoteLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	out := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		out = append(out, line.ProductID)
	}
	return out
}
