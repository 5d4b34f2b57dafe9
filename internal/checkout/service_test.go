package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/cache"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

type stubCart struct {
	lines []Line
	calls int
}

func (c *stubCart) Lines(context.Context, uuid.UUID) ([]Line, error) {
	c.calls++
	return c.lines, nil
}

type stubCounter struct {
	counts OrderCounts
	calls  int
}

func (c *stubCounter) CountByCustomer(context.Context, uuid.UUID) (OrderCounts, error) {
	c.calls++
	return c.counts, nil
}

type serviceHarness struct {
	svc       Service
	cart      *stubCart
	counter   *stubCounter
	validator *stubValidator
	cache     *cache.Memory
	now       time.Time
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	h := &serviceHarness{
		cart:      &stubCart{lines: []Line{line("100", "100", 2, enums.CurrencyUSD)}},
		counter:   &stubCounter{counts: OrderCounts{Completed: 1}},
		validator: newStubValidator(fixed("TEN", 10, enums.CurrencyUSD)),
		now:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.cache = cache.NewMemory(cache.ClockFunc(func() time.Time { return h.now }))

	cached, err := NewCachedValidator(h.validator, h.cache, time.Minute, nil)
	require.NoError(t, err)
	engine, err := NewEngine(cached, newStubConverter(), EngineConfig{HomeCurrency: enums.CurrencyUSD})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Engine:          engine,
		Cart:            h.cart,
		Orders:          h.counter,
		Cache:           h.cache,
		PreviewTTL:      30 * time.Second,
		CODMinCompleted: 3,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestPreviewServesFromCacheUntilInvalidated(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	customer := uuid.New()
	input := QuoteInput{CustomerID: customer, Role: enums.ActorRoleCustomer, Currency: enums.CurrencyUSD, CouponCodes: []string{"TEN"}}

	first, err := h.svc.Preview(ctx, input)
	require.NoError(t, err)
	assertDecimal(t, "190", first.Total)
	require.NotNil(t, first.COD)
	assert.False(t, first.COD.Eligible)

	second, err := h.svc.Preview(ctx, input)
	require.NoError(t, err)
	assertDecimal(t, "190", second.Total)
	assert.Equal(t, 1, h.cart.calls)

	h.cart.lines = []Line{line("50", "50", 1, enums.CurrencyUSD)}
	require.NoError(t, h.svc.InvalidateCustomer(ctx, customer))

	third, err := h.svc.Preview(ctx, input)
	require.NoError(t, err)
	assertDecimal(t, "40", third.Total)
	assert.Equal(t, 2, h.cart.calls)
	assert.Equal(t, 2, h.validator.calls["TEN"])
}

func TestPreviewCacheExpires(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	input := QuoteInput{CustomerID: uuid.New(), Currency: enums.CurrencyUSD}

	_, err := h.svc.Preview(ctx, input)
	require.NoError(t, err)
	h.now = h.now.Add(31 * time.Second)
	_, err = h.svc.Preview(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 2, h.cart.calls)
}

func TestPreviewKeysSeparateCurrencyAndCodes(t *testing.T) {
	customer := uuid.New()
	usd := PreviewKey(customer, enums.CurrencyUSD, []string{"a"})
	assert.NotEqual(t, usd, PreviewKey(customer, enums.CurrencySAR, []string{"a"}))
	assert.NotEqual(t, usd, PreviewKey(customer, enums.CurrencyUSD, []string{"b"}))
	assert.Equal(t, usd, PreviewKey(customer, enums.CurrencyUSD, []string{" A "}))
}

func TestQuoteAlwaysRecomputes(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	input := QuoteInput{CustomerID: uuid.New(), Currency: enums.CurrencyUSD}

	_, err := h.svc.Quote(ctx, input)
	require.NoError(t, err)
	_, err = h.svc.Quote(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 2, h.cart.calls)
}

func TestCachedValidatorKeyIncludesAmountAndProducts(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	cached, err := NewCachedValidator(h.validator, h.cache, time.Minute, nil)
	require.NoError(t, err)

	req := CouponRequest{CustomerID: uuid.New(), Code: "TEN", Amount: decimal.NewFromInt(100), Currency: enums.CurrencyUSD, ProductIDs: []uuid.UUID{uuid.New()}}
	_, err = cached.Validate(ctx, req)
	require.NoError(t, err)
	_, err = cached.Validate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, h.validator.calls["TEN"])

	req.Amount = decimal.NewFromInt(101)
	_, err = cached.Validate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, h.validator.calls["TEN"])
}

func TestCODEligibilitySkipsCountsForAdmins(t *testing.T) {
	h := newServiceHarness(t)
	got, err := h.svc.CODEligibility(context.Background(), uuid.New(), enums.ActorRoleAdmin)
	require.NoError(t, err)
	assert.True(t, got.Eligible)
	assert.Equal(t, 0, h.counter.calls)
}
