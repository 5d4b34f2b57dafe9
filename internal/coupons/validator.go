// Package coupons validates coupon codes against the coupons table and books
// their usage when an order is confirmed.
package coupons

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// Rejection reasons surfaced on quotes.
const (
	ReasonNotFound       = "NOT_FOUND"
	ReasonInactive       = "INACTIVE"
	ReasonNotStarted     = "NOT_STARTED"
	ReasonExpired        = "EXPIRED"
	ReasonUsageExhausted = "USAGE_LIMIT_REACHED"
	ReasonBelowMinimum   = "BELOW_MINIMUM_AMOUNT"
	ReasonNotApplicable  = "NOT_APPLICABLE"
)

type Validator struct {
	repo      *Repository
	converter checkout.Converter
	logg      *logger.Logger
	now       func() time.Time
}

func NewValidator(repo *Repository, converter checkout.Converter, logg *logger.Logger) (*Validator, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if converter == nil {
		return nil, fmt.Errorf("currency converter required")
	}
	return &Validator{
		repo:      repo,
		converter: converter,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (v *Validator) Validate(ctx context.Context, req checkout.CouponRequest) (*checkout.CouponResult, error) {
	coupon, err := v.repo.FindByCode(ctx, req.Code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reject(req.Code, ReasonNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	now := v.now()
	switch {
	case !coupon.Active:
		return reject(coupon.Code, ReasonInactive), nil
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return reject(coupon.Code, ReasonNotStarted), nil
	case coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt):
		return reject(coupon.Code, ReasonExpired), nil
	case coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit:
		return reject(coupon.Code, ReasonUsageExhausted), nil
	case len(coupon.ProductIDs) > 0 && !slices.ContainsFunc(req.ProductIDs, coupon.ProductIDs.Contains):
		return reject(coupon.Code, ReasonNotApplicable), nil
	}

	if coupon.MinOrderAmount.Valid {
		minimum, err := v.converter.Convert(ctx, coupon.MinOrderAmount.Decimal, coupon.Currency, req.Currency)
		if err != nil {
			return nil, err
		}
		if req.Amount.LessThan(minimum) {
			return reject(coupon.Code, ReasonBelowMinimum), nil
		}
	}

	return &checkout.CouponResult{
		Valid:       true,
		Code:        coupon.Code,
		Name:        coupon.Name,
		Type:        coupon.Type,
		Value:       coupon.Value,
		Currency:    coupon.Currency,
		MaxDiscount: coupon.MaxDiscount,
	}, nil
}

// RecordUsage books one redemption per code. A code whose limit was reached
// between quote and confirmation is logged and skipped.
func (v *Validator) RecordUsage(ctx context.Context, tx *gorm.DB, codes []string) error {
	repo := v.repo.WithTx(tx)
	for _, code := range codes {
		ok, err := repo.IncrementUsage(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			v.logg.Warn(v.logg.WithField(ctx, "coupon_code", code), "coupon usage limit reached at confirmation")
		}
	}
	return nil
}

func reject(code, reason string) *checkout.CouponResult {
	return &checkout.CouponResult{Code: code, Reason: reason}
}
