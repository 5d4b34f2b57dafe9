package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/inventory"
	"github.com/angelmondragon/orderflow-backend/internal/ledger"
	"github.com/angelmondragon/orderflow-backend/internal/notifications"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/security"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

const testSigningKey = "test-signing-key"

type stubPricer struct {
	lines []checkout.Line
	cod   checkout.CODEligibility
}

func (p *stubPricer) Quote(_ context.Context, input checkout.QuoteInput) (*checkout.Quote, error) {
	if err := checkout.ValidateLines(p.lines); err != nil {
		return nil, err
	}
	quote := &checkout.Quote{CustomerID: input.CustomerID, Currency: input.Currency}
	for _, l := range p.lines {
		total := l.UnitFinalPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
		quote.Lines = append(quote.Lines, checkout.QuoteLine{Line: l, LineTotal: total})
		quote.Subtotal = quote.Subtotal.Add(total)
	}
	quote.Total = quote.Subtotal
	return quote, nil
}

func (p *stubPricer) CODEligibility(context.Context, uuid.UUID, enums.ActorRole) (checkout.CODEligibility, error) {
	return p.cod, nil
}

type stubAddresses struct{}

func (stubAddresses) Snapshot(context.Context, uuid.UUID, uuid.UUID) (types.Address, error) {
	return types.Address{Recipient: "Sam", Phone: "+967700000000", Line1: "Main St", City: "Sanaa", Country: "YE"}, nil
}

type stubCart struct {
	cartID    uuid.UUID
	converted []uuid.UUID
}

func (c *stubCart) ActiveCartID(context.Context, uuid.UUID) (*uuid.UUID, error) {
	return &c.cartID, nil
}

func (c *stubCart) Convert(_ context.Context, _ uuid.UUID, orderID uuid.UUID) error {
	c.converted = append(c.converted, orderID)
	return nil
}

type stubCoupons struct {
	recorded [][]string
}

func (c *stubCoupons) RecordUsage(_ context.Context, _ *gorm.DB, codes []string) error {
	c.recorded = append(c.recorded, codes)
	return nil
}

type recordingNotifier struct {
	sent []notifications.Message
}

func (n *recordingNotifier) Dispatch(_ context.Context, msg notifications.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) types() []enums.NotificationType {
	out := make([]enums.NotificationType, 0, len(n.sent))
	for _, msg := range n.sent {
		out = append(out, msg.Type)
	}
	return out
}

type harness struct {
	conn      *gorm.DB
	svc       Service
	repo      Repository
	inventory *inventory.Manager
	pricer    *stubPricer
	cart      *stubCart
	coupons   *stubCoupons
	notifier  *recordingNotifier
	customer  uuid.UUID
	admin     Actor
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromGorm(conn)

	catalog, err := product.NewService(product.NewRepository(conn), logger.Nop())
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	adminID := uuid.New()
	h := &harness{
		conn:     conn,
		repo:     NewRepository(conn),
		pricer:   &stubPricer{cod: checkout.CODEligibility{Eligible: true, MinCompleted: 3}},
		cart:     &stubCart{cartID: uuid.New()},
		coupons:  &stubCoupons{},
		notifier: &recordingNotifier{},
		customer: uuid.New(),
		admin:    Actor{UserID: &adminID, Role: enums.ActorRoleAdmin},
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.inventory, err = inventory.NewManager(inventory.ManagerParams{
		DB:      client,
		Repo:    inventory.NewRepository(conn),
		Ledger:  ledgerSvc,
		Stock:   catalog,
		Metrics: metrics.NewInventoryMetrics(prometheus.NewRegistry()),
		Logger:  logger.Nop(),
		Config: config.InventoryConfig{
			ReservationTTL:     15 * time.Minute,
			CommittedRetention: 365 * 24 * time.Hour,
			CancelledRetention: time.Hour,
		},
		Now: func() time.Time { return h.now },
	})
	require.NoError(t, err)

	h.svc, err = NewService(ServiceParams{
		Repo:          h.repo,
		DB:            client,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Inventory:     h.inventory,
		Pricer:        h.pricer,
		Addresses:     stubAddresses{},
		Cart:          h.cart,
		Coupons:       h.coupons,
		Notifications: h.notifier,
		Catalog:       catalog,
		SigningKey:    testSigningKey,
		Logger:        logger.Nop(),
		Now:           func() time.Time { return h.now },
		Async:         func(task func()) { task() },
	})
	require.NoError(t, err)
	return h
}

func (h *harness) seedProduct(t *testing.T, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:       "Widget",
		Currency:   enums.CurrencyUSD,
		BasePrice:  decimal.NewFromInt(10),
		FinalPrice: decimal.NewFromInt(10),
		TrackStock: true,
		StockQty:   stock,
		Active:     true,
	}
	require.NoError(t, h.conn.Create(p).Error)
	return p
}

func (h *harness) cartOf(p *models.Product, qty int) {
	h.pricer.lines = []checkout.Line{{
		ProductID:      p.ID,
		Name:           p.Name,
		Qty:            qty,
		UnitBasePrice:  p.BasePrice,
		UnitFinalPrice: p.FinalPrice,
		Currency:       p.Currency,
		Active:         true,
	}}
}

func (h *harness) confirm(t *testing.T, method enums.PaymentMethod) *ConfirmCheckoutResult {
	t.Helper()
	input := ConfirmCheckoutInput{
		CustomerID:    h.customer,
		Role:          enums.ActorRoleCustomer,
		AddressID:     uuid.New(),
		Currency:      enums.CurrencyUSD,
		PaymentMethod: method,
	}
	if method == enums.PaymentMethodBankTransfer {
		ref := "TRX-1001"
		input.PaymentReference = &ref
	}
	res, err := h.svc.ConfirmCheckout(context.Background(), input)
	require.NoError(t, err)
	return res
}

func (h *harness) tick() {
	h.now = h.now.Add(time.Second)
}

func (h *harness) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, h.conn.First(&p, "id = ?", productID).Error)
	return p.StockQty
}

func (h *harness) eventTypes(t *testing.T, orderID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Where("aggregate_id = ?", orderID).Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func reservationStatuses(t *testing.T, m *inventory.Manager, orderID uuid.UUID) []enums.ReservationStatus {
	t.Helper()
	rows, err := m.ListReservations(context.Background(), orderID)
	require.NoError(t, err)
	out := make([]enums.ReservationStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Status)
	}
	return out
}

func historyStatuses(order *models.Order) []enums.OrderStatus {
	out := make([]enums.OrderStatus, 0, len(order.StatusHistory))
	for _, entry := range order.StatusHistory {
		out = append(out, entry.Status)
	}
	return out
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestConfirmCheckout_CODConfirmsImmediately(t *testing.T) {
	h := newHarness(t)
	p := h.seedProduct(t, 5)
	h.cartOf(p, 2)

	res := h.confirm(t, enums.PaymentMethodCOD)
	order := res.Order

	assert.Nil(t, res.PaymentIntent)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-20250301-"), order.OrderNumber)
	require.Len(t, order.StatusHistory, 2)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusPendingPayment, enums.OrderStatusConfirmed}, historyStatuses(order))
	assert.True(t, order.StatusHistory[1].CreatedAt.After(order.StatusHistory[0].CreatedAt))
	assert.NotNil(t, order.ConfirmedAt)

	assert.Equal(t, []enums.ReservationStatus{enums.ReservationStatusCommitted}, reservationStatuses(t, h.inventory, order.ID))
	assert.Equal(t, 3, h.stockOf(t, p.ID))
	assert.Equal(t, []uuid.UUID{order.ID}, h.cart.converted)

	events := h.eventTypes(t, order.ID)
	assert.Contains(t, events, enums.EventOrderCreated)
	assert.Contains(t, events, enums.EventOrderStatusChanged)
	assert.Contains(t, events, enums.EventInvoiceRequested)
	assert.ElementsMatch(t, []enums.NotificationType{
		enums.NotificationOrderConfirmed,
		enums.NotificationOrderPlaced,
		enums.NotificationNewOrderAdmin,
	}, h.notifier.types())
}

func TestConfirmCheckout_CODNotEligible(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 1)
	h.pricer.cod = checkout.CODEligibility{Eligible: false, MinCompleted: 3, Remaining: 2, Counts: checkout.OrderCounts{Completed: 1}}

	_, err := h.svc.ConfirmCheckout(context.Background(), ConfirmCheckoutInput{
		CustomerID:    h.customer,
		Role:          enums.ActorRoleCustomer,
		AddressID:     uuid.New(),
		Currency:      enums.CurrencyUSD,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	requireCode(t, err, pkgerrors.CodeCODNotEligible)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, details["remaining"])
}

func TestConfirmCheckout_BankTransferNeedsReference(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 1)
	blank := "  "

	_, err := h.svc.ConfirmCheckout(context.Background(), ConfirmCheckoutInput{
		CustomerID:       h.customer,
		Role:             enums.ActorRoleCustomer,
		AddressID:        uuid.New(),
		Currency:         enums.CurrencyUSD,
		PaymentMethod:    enums.PaymentMethodBankTransfer,
		PaymentReference: &blank,
	})
	requireCode(t, err, pkgerrors.CodePaymentReferenceRequired)
}

func TestConfirmCheckout_BankTransferReservesAndSignsIntent(t *testing.T) {
	h := newHarness(t)
	p := h.seedProduct(t, 5)
	h.cartOf(p, 2)

	res := h.confirm(t, enums.PaymentMethodBankTransfer)
	order := res.Order

	require.NotNil(t, res.PaymentIntent)
	assert.True(t, strings.HasPrefix(res.PaymentIntent.ID, "bt_"))
	assert.Equal(t, *order.PaymentIntentID, res.PaymentIntent.ID)
	assert.True(t, decimal.NewFromInt(20).Equal(res.PaymentIntent.Amount))
	assert.Equal(t, "TRX-1001", *res.PaymentIntent.Reference)

	assert.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Len(t, order.Items, 1)
	assert.Equal(t, []enums.ReservationStatus{enums.ReservationStatusActive}, reservationStatuses(t, h.inventory, order.ID))
	assert.Equal(t, 3, h.stockOf(t, p.ID))
}

func TestConfirmCheckout_ReservationFailureDeletesOrder(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 1), 2)

	_, err := h.svc.ConfirmCheckout(context.Background(), ConfirmCheckoutInput{
		CustomerID:    h.customer,
		Role:          enums.ActorRoleCustomer,
		AddressID:     uuid.New(),
		Currency:      enums.CurrencyUSD,
		PaymentMethod: enums.PaymentMethodCOD,
	})
	requireCode(t, err, pkgerrors.CodeOrderConfirmFailed)

	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, h.cart.converted)
	assert.Empty(t, h.notifier.sent)
}

func TestUpdateOrderStatus_Gates(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 1)
	order := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	ctx := context.Background()

	_, err := h.svc.UpdateOrderStatus(ctx, StatusUpdateInput{OrderID: order.ID, To: enums.OrderStatusCompleted, Actor: h.admin})
	requireCode(t, err, pkgerrors.CodeOrderInvalidStatus)

	_, err = h.svc.UpdateOrderStatus(ctx, StatusUpdateInput{OrderID: order.ID, To: enums.OrderStatusConfirmed, Actor: CustomerActor(h.customer)})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.UpdateOrderStatus(ctx, StatusUpdateInput{OrderID: order.ID, To: enums.OrderStatusConfirmed, Actor: h.admin})
	requireCode(t, err, pkgerrors.CodePaymentRequired)

	_, err = h.svc.UpdateOrderStatus(ctx, StatusUpdateInput{OrderID: order.ID, To: enums.OrderStatusCancelled, Actor: CustomerActor(uuid.New())})
	requireCode(t, err, pkgerrors.CodeOrderNotFound)

	current, err := h.svc.Get(ctx, order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, current.Status)
	assert.Len(t, current.StatusHistory, 1)
}

func TestPaymentWebhook(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 2)
	order := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	intent := *order.PaymentIntentID
	ctx := context.Background()

	deliver := func(status, amount string) (WebhookResult, error) {
		sig, err := security.SignFields(testSigningKey, intent, status, amount)
		require.NoError(t, err)
		return h.svc.HandlePaymentWebhook(ctx, PaymentWebhookInput{IntentID: intent, Status: status, Amount: amount, Signature: sig})
	}

	_, err := h.svc.HandlePaymentWebhook(ctx, PaymentWebhookInput{IntentID: intent, Status: "SUCCESS", Amount: "20.00", Signature: strings.Repeat("0", 64)})
	requireCode(t, err, pkgerrors.CodeBadSignature)

	h.tick()
	res, err := deliver("SUCCESS", "19.99")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, ReasonPaymentFailed, res.Reason)
	assert.Equal(t, enums.OrderStatusPendingPayment, res.Status)

	failed, err := h.svc.Get(ctx, order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, failed.PaymentStatus)
	assert.Len(t, failed.StatusHistory, 2)

	h.tick()
	res, err = deliver("SUCCESS", "20.00")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.Reason)
	assert.Equal(t, enums.OrderStatusConfirmed, res.Status)

	res, err = deliver("SUCCESS", "20.00")
	require.NoError(t, err)
	assert.Equal(t, ReasonAlreadyPaid, res.Reason)

	paid, err := h.svc.Get(ctx, order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, []enums.OrderStatus{
		enums.OrderStatusPendingPayment,
		enums.OrderStatusPendingPayment,
		enums.OrderStatusConfirmed,
	}, historyStatuses(paid))
	assert.Equal(t, []enums.ReservationStatus{enums.ReservationStatusCommitted}, reservationStatuses(t, h.inventory, order.ID))

	events := h.eventTypes(t, order.ID)
	assert.Contains(t, events, enums.EventPaymentFailed)
	assert.Contains(t, events, enums.EventOrderPaid)
}

func TestPaymentWebhook_UnknownIntentAndBadAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sig, err := security.SignFields(testSigningKey, "bt_missing", "SUCCESS", "10")
	require.NoError(t, err)
	res, err := h.svc.HandlePaymentWebhook(ctx, PaymentWebhookInput{IntentID: "bt_missing", Status: "SUCCESS", Amount: "10", Signature: sig})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonOrderNotFound, res.Reason)

	sig, err = security.SignFields(testSigningKey, "bt_missing", "SUCCESS", "ten")
	require.NoError(t, err)
	res, err = h.svc.HandlePaymentWebhook(ctx, PaymentWebhookInput{IntentID: "bt_missing", Status: "SUCCESS", Amount: "ten", Signature: sig})
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidAmount, res.Reason)
}

func TestShipAndShippingWebhook(t *testing.T) {
	h := newHarness(t)
	p := h.seedProduct(t, 5)
	h.cartOf(p, 2)
	order := h.confirm(t, enums.PaymentMethodCOD).Order
	ctx := context.Background()

	_, err := h.svc.Ship(ctx, ShipInput{OrderID: order.ID, Carrier: "DHL", TrackingNumber: "TRK-1", Actor: CustomerActor(h.customer)})
	requireCode(t, err, pkgerrors.CodeForbidden)

	h.tick()
	shipped, err := h.svc.Ship(ctx, ShipInput{OrderID: order.ID, Carrier: "DHL", TrackingNumber: "TRK-1", Actor: h.admin})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, shipped.Status)
	assert.Equal(t, "TRK-1", *shipped.TrackingNumber)
	assert.Contains(t, h.notifier.types(), enums.NotificationOrderShipped)

	res, err := h.svc.HandleShippingWebhook(ctx, ShippingWebhookInput{TrackingNumber: "TRK-1", Status: "teleported"})
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownStatus, res.Reason)

	res, err = h.svc.HandleShippingWebhook(ctx, ShippingWebhookInput{TrackingNumber: "TRK-1", Status: "in_transit"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoChange, res.Reason)

	h.tick()
	res, err = h.svc.HandleShippingWebhook(ctx, ShippingWebhookInput{TrackingNumber: "TRK-1", Status: "delivered"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, enums.OrderStatusCompleted, res.Status)
	assert.Equal(t, 1, res.Updated)

	done, err := h.svc.Get(ctx, order.ID, h.admin)
	require.NoError(t, err)
	assert.NotNil(t, done.DeliveredAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Contains(t, h.eventTypes(t, order.ID), enums.EventCommissionRequested)

	var sold models.Product
	require.NoError(t, h.conn.First(&sold, "id = ?", p.ID).Error)
	assert.Equal(t, 2, sold.SalesCount)

	res, err = h.svc.HandleShippingWebhook(ctx, ShippingWebhookInput{TrackingNumber: "TRK-1", Status: "returned_to_sender"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, string(pkgerrors.CodeOrderInvalidStatus), res.Reason)

	res, err = h.svc.HandleShippingWebhook(ctx, ShippingWebhookInput{TrackingNumber: "TRK-404", Status: "delivered"})
	require.NoError(t, err)
	assert.Equal(t, ReasonOrderNotFound, res.Reason)
}

func TestShippingWebhook_WalksIntermediateStatuses(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 1)
	order := h.confirm(t, enums.PaymentMethodCOD).Order
	require.NoError(t, h.repo.Update(context.Background(), order.ID, map[string]any{"tracking_number": "TRK-2"}))

	h.tick()
	carrier := "Aramex"
	res, err := h.svc.HandleShippingWebhook(context.Background(), ShippingWebhookInput{TrackingNumber: "TRK-2", Status: "DELIVERED", Carrier: &carrier})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Updated)

	done, err := h.svc.Get(context.Background(), order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, []enums.OrderStatus{
		enums.OrderStatusPendingPayment,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusCompleted,
	}, historyStatuses(done))
	assert.Equal(t, "Aramex", *done.Carrier)
}

func TestInventoryWebhook_StockCrossings(t *testing.T) {
	h := newHarness(t)
	p := h.seedProduct(t, 5)
	h.cartOf(p, 2)
	order := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	ctx := context.Background()

	h.tick()
	res, err := h.svc.HandleInventoryWebhook(ctx, InventoryWebhookInput{TargetID: p.ID, Delta: -3})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.Updated)

	held, err := h.svc.Get(ctx, order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOutOfStock, held.Status)
	assert.Equal(t, []enums.ReservationStatus{enums.ReservationStatusActive}, reservationStatuses(t, h.inventory, order.ID))
	assert.Equal(t, 0, h.stockOf(t, p.ID))

	h.tick()
	res, err = h.svc.HandleInventoryWebhook(ctx, InventoryWebhookInput{TargetID: p.ID, Delta: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	resumed, err := h.svc.Get(ctx, order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, resumed.Status)
	assert.Equal(t, 4, h.stockOf(t, p.ID))

	res, err = h.svc.HandleInventoryWebhook(ctx, InventoryWebhookInput{TargetID: uuid.New(), Delta: 1})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonTargetNotFound, res.Reason)
}

func TestInventoryWebhook_ConfirmedOrderGoesOnHold(t *testing.T) {
	h := newHarness(t)
	p := h.seedProduct(t, 3)
	h.cartOf(p, 1)
	order := h.confirm(t, enums.PaymentMethodCOD).Order

	h.tick()
	res, err := h.svc.HandleInventoryWebhook(context.Background(), InventoryWebhookInput{TargetID: p.ID, Delta: -10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	held, err := h.svc.Get(context.Background(), order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOnHold, held.Status)
	assert.NotNil(t, held.OnHoldAt)
}

func TestVerifyLocalPayment(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 2)
	order := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	ctx := context.Background()

	_, err := h.svc.VerifyLocalPayment(ctx, VerifyPaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(20), Currency: enums.CurrencySAR, Actor: h.admin})
	requireCode(t, err, pkgerrors.CodeCurrencyMismatch)

	_, err = h.svc.VerifyLocalPayment(ctx, VerifyPaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(20), Currency: enums.CurrencyUSD, Actor: CustomerActor(h.customer)})
	requireCode(t, err, pkgerrors.CodeForbidden)

	h.tick()
	short, err := h.svc.VerifyLocalPayment(ctx, VerifyPaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(15), Currency: enums.CurrencyUSD, Actor: h.admin})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, short.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPendingPayment, short.Status)
	last := short.StatusHistory[len(short.StatusHistory)-1]
	require.NotNil(t, last.Notes)
	assert.Contains(t, *last.Notes, "short by 5.00 USD")
	assert.Contains(t, h.notifier.types(), enums.NotificationPaymentFailed)

	h.tick()
	paid, err := h.svc.VerifyLocalPayment(ctx, VerifyPaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(20), Currency: enums.CurrencyUSD, Actor: h.admin})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, paid.Status)
	assert.Equal(t, h.admin.UserID, paid.VerifiedBy)

	again, err := h.svc.VerifyLocalPayment(ctx, VerifyPaymentInput{OrderID: order.ID, Amount: decimal.NewFromInt(20), Currency: enums.CurrencyUSD, Actor: h.admin})
	require.NoError(t, err)
	assert.Len(t, again.StatusHistory, len(paid.StatusHistory))
}

func TestCancel_ReleasesStock(t *testing.T) {
	h := newHarness(t)
	p := h.seedProduct(t, 5)
	h.cartOf(p, 2)
	order := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	ctx := context.Background()
	require.Equal(t, 3, h.stockOf(t, p.ID))

	_, err := h.svc.Cancel(ctx, CancelInput{OrderID: order.ID, Actor: CustomerActor(uuid.New())})
	requireCode(t, err, pkgerrors.CodeOrderNotFound)

	h.tick()
	reason := "changed my mind"
	cancelled, err := h.svc.Cancel(ctx, CancelInput{OrderID: order.ID, Actor: CustomerActor(h.customer), Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, h.stockOf(t, p.ID))
	assert.Equal(t, []enums.ReservationStatus{enums.ReservationStatusCancelled}, reservationStatuses(t, h.inventory, order.ID))
	assert.Contains(t, h.notifier.types(), enums.NotificationOrderCancelled)

	_, err = h.svc.Cancel(ctx, CancelInput{OrderID: order.ID, Actor: CustomerActor(h.customer)})
	requireCode(t, err, pkgerrors.CodeOrderCannotCancel)
}

func TestRateAndRefund(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 1)
	ctx := context.Background()

	rated := h.confirm(t, enums.PaymentMethodCOD).Order
	_, err := h.svc.Rate(ctx, RateInput{OrderID: rated.ID, Actor: CustomerActor(h.customer), Score: 5})
	requireCode(t, err, pkgerrors.CodeOrderRatingNotAllowed)

	h.tick()
	_, err = h.svc.Ship(ctx, ShipInput{OrderID: rated.ID, Carrier: "DHL", TrackingNumber: "TRK-R", Actor: h.admin})
	require.NoError(t, err)
	h.tick()
	_, err = h.svc.UpdateOrderStatus(ctx, StatusUpdateInput{OrderID: rated.ID, To: enums.OrderStatusCompleted, Actor: h.admin})
	require.NoError(t, err)

	_, err = h.svc.Rate(ctx, RateInput{OrderID: rated.ID, Actor: CustomerActor(h.customer), Score: 6})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.svc.Rate(ctx, RateInput{OrderID: rated.ID, Actor: CustomerActor(uuid.New()), Score: 4})
	requireCode(t, err, pkgerrors.CodeOrderNotFound)

	out, err := h.svc.Rate(ctx, RateInput{OrderID: rated.ID, Actor: CustomerActor(h.customer), Score: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, *out.RatingScore)
	_, err = h.svc.Rate(ctx, RateInput{OrderID: rated.ID, Actor: CustomerActor(h.customer), Score: 5})
	requireCode(t, err, pkgerrors.CodeOrderRatingNotAllowed)

	returned := h.confirm(t, enums.PaymentMethodCOD).Order
	h.tick()
	_, err = h.svc.Refund(ctx, RefundInput{OrderID: returned.ID, Amount: decimal.NewFromInt(1), Reason: "damaged", Actor: h.admin})
	requireCode(t, err, pkgerrors.CodeOrderInvalidStatus)

	_, err = h.svc.Ship(ctx, ShipInput{OrderID: returned.ID, Carrier: "DHL", TrackingNumber: "TRK-X", Actor: h.admin})
	require.NoError(t, err)
	h.tick()
	res, err := h.svc.HandleShippingWebhook(ctx, ShippingWebhookInput{TrackingNumber: "TRK-X", Status: "returned_to_sender"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusReturned, res.Status)

	_, err = h.svc.Refund(ctx, RefundInput{OrderID: returned.ID, Amount: decimal.NewFromInt(11), Reason: "damaged", Actor: h.admin})
	requireCode(t, err, pkgerrors.CodeValidation)

	h.tick()
	refunded, err := h.svc.Refund(ctx, RefundInput{OrderID: returned.ID, Amount: decimal.NewFromInt(10), Reason: "damaged", Actor: h.admin})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRefunded, refunded.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, refunded.PaymentStatus)
	assert.True(t, refunded.RefundAmount.Decimal.Equal(decimal.NewFromInt(10)))
}

func TestAddNote(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 5), 1)
	order := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	ctx := context.Background()

	_, err := h.svc.AddNote(ctx, NoteInput{OrderID: order.ID, Actor: CustomerActor(h.customer), Notes: " "})
	requireCode(t, err, pkgerrors.CodeValidation)

	h.tick()
	noted, err := h.svc.AddNote(ctx, NoteInput{OrderID: order.ID, Actor: CustomerActor(h.customer), Notes: "leave at the door"})
	require.NoError(t, err)
	require.Len(t, noted.StatusHistory, 2)
	assert.Equal(t, enums.OrderStatusPendingPayment, noted.StatusHistory[1].Status)
	assert.Equal(t, "leave at the door", *noted.StatusHistory[1].Notes)
}

func TestExpireReservations(t *testing.T) {
	h := newHarness(t)
	p := h.seedProduct(t, 5)
	h.cartOf(p, 2)
	order := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	ctx := context.Background()

	h.now = h.now.Add(20 * time.Minute)
	expired, err := h.inventory.ExpiredOrders(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{order.ID}, expired)

	require.NoError(t, h.svc.ExpireReservations(ctx, order.ID))
	cancelled, err := h.svc.Get(ctx, order.ID, h.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	last := cancelled.StatusHistory[len(cancelled.StatusHistory)-1]
	assert.Equal(t, enums.ActorRoleSystem, last.ActorRole)
	assert.Equal(t, "reservation expired", *last.Notes)
	assert.Equal(t, 5, h.stockOf(t, p.ID))

	require.NoError(t, h.svc.ExpireReservations(ctx, uuid.New()))
}

func TestGetAndList(t *testing.T) {
	h := newHarness(t)
	h.cartOf(h.seedProduct(t, 10), 1)
	ctx := context.Background()

	first := h.confirm(t, enums.PaymentMethodBankTransfer).Order
	h.tick()
	second := h.confirm(t, enums.PaymentMethodBankTransfer).Order

	_, err := h.svc.Get(ctx, first.ID, CustomerActor(uuid.New()))
	requireCode(t, err, pkgerrors.CodeOrderNotFound)
	got, err := h.svc.Get(ctx, first.ID, CustomerActor(h.customer))
	require.NoError(t, err)
	assert.Equal(t, first.OrderNumber, got.OrderNumber)

	page, err := h.svc.List(ctx, ListParams{CustomerID: h.customer, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.svc.List(ctx, ListParams{CustomerID: h.customer, Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, []uuid.UUID{page.Items[0].ID, rest.Items[0].ID})

	_, err = h.svc.List(ctx, ListParams{CustomerID: h.customer, Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}
