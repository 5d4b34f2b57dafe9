package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/cache"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type harness struct {
	svc   Service
	conn  *gorm.DB
	cache *cache.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	catalog, err := product.NewService(product.NewRepository(conn), logger.Nop())
	require.NoError(t, err)
	mem := cache.NewMemory(cache.SystemClock)
	svc, err := NewService(NewRepository(conn), client, catalog, mem, logger.Nop())
	require.NoError(t, err)
	return &harness{svc: svc, conn: conn, cache: mem}
}

func (h *harness) seedProduct(t *testing.T, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:       "Lamp",
		Currency:   enums.CurrencyUSD,
		BasePrice:  decimal.NewFromInt(40),
		FinalPrice: decimal.NewFromInt(35),
		TrackStock: true,
		StockQty:   stock,
		Active:     true,
	}
	require.NoError(t, h.conn.Create(p).Error)
	return p
}

func TestUpsertItemCreatesCartAndReplacesQty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()
	p := h.seedProduct(t, 10)

	view, err := h.svc.UpsertItem(ctx, customer, UpsertItemInput{ProductID: p.ID, Qty: 2})
	require.NoError(t, err)
	require.NotNil(t, view.CartID)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Qty)
	assert.True(t, view.Items[0].UnitFinalPrice.Equal(decimal.NewFromInt(35)))

	view, err = h.svc.UpsertItem(ctx, customer, UpsertItemInput{ProductID: p.ID, Qty: 5})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Qty)
}

func TestUpsertItemRejectsBadQtyAndShortStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.seedProduct(t, 3)

	_, err := h.svc.UpsertItem(ctx, uuid.New(), UpsertItemInput{ProductID: p.ID, Qty: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.UpsertItem(ctx, uuid.New(), UpsertItemInput{ProductID: p.ID, Qty: 4})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 3, pkgerrors.As(err).Details().(map[string]any)["available"])
}

func TestRemoveItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()
	p := h.seedProduct(t, 10)

	view, err := h.svc.UpsertItem(ctx, customer, UpsertItemInput{ProductID: p.ID, Qty: 1})
	require.NoError(t, err)

	view, err = h.svc.RemoveItem(ctx, customer, view.Items[0].ItemID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = h.svc.RemoveItem(ctx, customer, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMutationsInvalidatePreviewCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()
	p := h.seedProduct(t, 10)

	key := checkout.PreviewKey(customer, enums.CurrencyUSD, nil)
	require.NoError(t, h.cache.Set(ctx, key, map[string]string{"total": "1"}, time.Minute))

	_, err := h.svc.UpsertItem(ctx, customer, UpsertItemInput{ProductID: p.ID, Qty: 1})
	require.NoError(t, err)

	var out map[string]string
	hit, err := h.cache.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestLinesMarksVanishedProductsInactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()
	p := h.seedProduct(t, 10)

	_, err := h.svc.UpsertItem(ctx, customer, UpsertItemInput{ProductID: p.ID, Qty: 2})
	require.NoError(t, err)
	require.NoError(t, h.conn.Delete(&models.Product{}, "id = ?", p.ID).Error)

	lines, err := h.svc.Lines(ctx, customer)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.False(t, lines[0].Active)
	assert.Equal(t, 2, lines[0].Qty)
	require.Error(t, checkout.ValidateLines(lines))
}

func TestConvertClosesCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := uuid.New()
	orderID := uuid.New()
	p := h.seedProduct(t, 10)

	_, err := h.svc.UpsertItem(ctx, customer, UpsertItemInput{ProductID: p.ID, Qty: 1})
	require.NoError(t, err)
	cartID, err := h.svc.ActiveCartID(ctx, customer)
	require.NoError(t, err)
	require.NotNil(t, cartID)

	require.NoError(t, h.svc.Convert(ctx, customer, orderID))

	var stored models.Cart
	require.NoError(t, h.conn.First(&stored, "id = ?", *cartID).Error)
	assert.Equal(t, enums.CartStatusConverted, stored.Status)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, orderID, *stored.OrderID)

	var items int64
	require.NoError(t, h.conn.Model(&models.CartItem{}).Where("cart_id = ?", *cartID).Count(&items).Error)
	assert.Zero(t, items)

	next, err := h.svc.ActiveCartID(ctx, customer)
	require.NoError(t, err)
	assert.Nil(t, next)
}
