package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/currency"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/orderflow-backend/pkg/db/types"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

func newTestValidator(t *testing.T) (*Validator, *Repository, time.Time) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	conv, err := currency.NewConverter(config.CurrencyConfig{Rates: map[string]string{"USD": "1", "YER": "530"}})
	require.NoError(t, err)
	v, err := NewValidator(repo, conv, nil)
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }
	return v, repo, now
}

func TestValidateReasons(t *testing.T) {
	v, repo, now := newTestValidator(t)
	ctx := context.Background()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := 2
	allowed := uuid.New()

	seed := []models.Coupon{
		{Code: "ok", Name: "Ten off", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(10), Currency: enums.CurrencyUSD, Active: true},
		{Code: "OFF", Name: "Off", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(1), Currency: enums.CurrencyUSD},
		{Code: "SOON", Name: "Soon", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(1), Currency: enums.CurrencyUSD, Active: true, StartsAt: &future},
		{Code: "OLD", Name: "Old", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(1), Currency: enums.CurrencyUSD, Active: true, ExpiresAt: &past},
		{Code: "USED", Name: "Used", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(1), Currency: enums.CurrencyUSD, Active: true, UsageLimit: &limit, UsedCount: 2},
		{Code: "MIN", Name: "Min", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(1), Currency: enums.CurrencyUSD, Active: true, MinOrderAmount: decimal.NewNullDecimal(decimal.NewFromInt(20))},
		{Code: "ONLY", Name: "Only", Type: enums.CouponTypePercentage, Value: decimal.NewFromInt(5), Currency: enums.CurrencyUSD, Active: true, ProductIDs: dbtypes.UUIDArray{allowed}},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	base := checkout.CouponRequest{CustomerID: uuid.New(), Amount: decimal.NewFromInt(15), Currency: enums.CurrencyUSD, ProductIDs: []uuid.UUID{uuid.New()}}
	cases := map[string]string{
		"MISSING": ReasonNotFound,
		"OFF":     ReasonInactive,
		"SOON":    ReasonNotStarted,
		"OLD":     ReasonExpired,
		"USED":    ReasonUsageExhausted,
		"MIN":     ReasonBelowMinimum,
		"ONLY":    ReasonNotApplicable,
	}
	for code, reason := range cases {
		req := base
		req.Code = code
		got, err := v.Validate(ctx, req)
		require.NoError(t, err, code)
		assert.False(t, got.Valid, code)
		assert.Equal(t, reason, got.Reason, code)
	}

	req := base
	req.Code = "OK"
	got, err := v.Validate(ctx, req)
	require.NoError(t, err)
	require.True(t, got.Valid)
	assert.Equal(t, "Ten off", got.Name)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(10)))

	req.Code = "ONLY"
	req.ProductIDs = []uuid.UUID{uuid.New(), allowed}
	got, err = v.Validate(ctx, req)
	require.NoError(t, err)
	assert.True(t, got.Valid)
}

func TestValidateMinimumConvertsCurrency(t *testing.T) {
	v, repo, _ := newTestValidator(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Coupon{
		Code: "MIN", Name: "Min", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(1),
		Currency: enums.CurrencyUSD, Active: true, MinOrderAmount: decimal.NewNullDecimal(decimal.NewFromInt(10)),
	}))

	got, err := v.Validate(ctx, checkout.CouponRequest{CustomerID: uuid.New(), Code: "MIN", Amount: decimal.NewFromInt(5300), Currency: enums.CurrencyYER})
	require.NoError(t, err)
	assert.True(t, got.Valid)

	got, err = v.Validate(ctx, checkout.CouponRequest{CustomerID: uuid.New(), Code: "MIN", Amount: decimal.NewFromInt(5299), Currency: enums.CurrencyYER})
	require.NoError(t, err)
	assert.False(t, got.Valid)
}

func TestRecordUsageStopsAtLimit(t *testing.T) {
	v, repo, _ := newTestValidator(t)
	ctx := context.Background()
	conn := repo.db
	limit := 1
	require.NoError(t, repo.Create(ctx, &models.Coupon{
		Code: "ONCE", Name: "Once", Type: enums.CouponTypeFixedAmount, Value: decimal.NewFromInt(1),
		Currency: enums.CurrencyUSD, Active: true, UsageLimit: &limit,
	}))

	require.NoError(t, v.RecordUsage(ctx, conn, []string{"ONCE"}))
	require.NoError(t, v.RecordUsage(ctx, conn, []string{"once"}))

	coupon, err := repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsedCount)
}
