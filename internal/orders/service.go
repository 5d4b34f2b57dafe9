package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/inventory"
	"github.com/angelmondragon/orderflow-backend/internal/notifications"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// InventoryManager is the reservation surface the lifecycle drives.
type InventoryManager interface {
	Reserve(ctx context.Context, order *models.Order) error
	Commit(ctx context.Context, orderID uuid.UUID) error
	Release(ctx context.Context, orderID uuid.UUID) error
	AdjustOnHand(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, delta int, note string) (inventory.StockChange, error)
}

// Pricer recomputes quotes from the live cart.
type Pricer interface {
	Quote(ctx context.Context, input checkout.QuoteInput) (*checkout.Quote, error)
	CODEligibility(ctx context.Context, customerID uuid.UUID, role enums.ActorRole) (checkout.CODEligibility, error)
}

type AddressBook interface {
	Snapshot(ctx context.Context, customerID, addressID uuid.UUID) (types.Address, error)
}

type CartConverter interface {
	ActiveCartID(ctx context.Context, customerID uuid.UUID) (*uuid.UUID, error)
	Convert(ctx context.Context, customerID, orderID uuid.UUID) error
}

type CouponUsage interface {
	RecordUsage(ctx context.Context, tx *gorm.DB, codes []string) error
}

type Notifier interface {
	Dispatch(ctx context.Context, msg notifications.Message) error
}

type Catalog interface {
	RecordSales(ctx context.Context, lines []product.SaleLine) error
	ResolveTarget(ctx context.Context, targetID uuid.UUID) (uuid.UUID, *uuid.UUID, error)
}

// Service is the order lifecycle: checkout confirmation, status changes,
// gated actions and webhook handling.
type Service interface {
	ConfirmCheckout(ctx context.Context, input ConfirmCheckoutInput) (*ConfirmCheckoutResult, error)
	UpdateOrderStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error)
	Ship(ctx context.Context, input ShipInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	Refund(ctx context.Context, input RefundInput) (*models.Order, error)
	AddNote(ctx context.Context, input NoteInput) (*models.Order, error)
	Rate(ctx context.Context, input RateInput) (*models.Order, error)
	VerifyLocalPayment(ctx context.Context, input VerifyPaymentInput) (*models.Order, error)
	HandlePaymentWebhook(ctx context.Context, input PaymentWebhookInput) (WebhookResult, error)
	HandleShippingWebhook(ctx context.Context, input ShippingWebhookInput) (WebhookResult, error)
	HandleInventoryWebhook(ctx context.Context, input InventoryWebhookInput) (WebhookResult, error)
	ExpireReservations(ctx context.Context, orderID uuid.UUID) error
	Get(ctx context.Context, orderID uuid.UUID, viewer Actor) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// ServiceParams groups the lifecycle's collaborators.
type ServiceParams struct {
	Repo          Repository
	DB            txRunner
	Outbox        outboxPublisher
	Inventory     InventoryManager
	Pricer        Pricer
	Addresses     AddressBook
	Cart          CartConverter
	Coupons       CouponUsage
	Notifications Notifier
	Catalog       Catalog
	SigningKey    string
	Logger        *logger.Logger
	Now           func() time.Time
	// Async runs post-commit side effects. Defaults to a new goroutine.
	Async func(task func())
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	inventory  InventoryManager
	pricer     Pricer
	addresses  AddressBook
	cart       CartConverter
	coupons    CouponUsage
	notifier   Notifier
	catalog    Catalog
	signingKey string
	logg       *logger.Logger
	now        func() time.Time
	async      func(task func())
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case p.Inventory == nil:
		return nil, fmt.Errorf("inventory manager required")
	case p.Pricer == nil:
		return nil, fmt.Errorf("checkout pricer required")
	case p.Addresses == nil:
		return nil, fmt.Errorf("address book required")
	case p.Cart == nil:
		return nil, fmt.Errorf("cart converter required")
	case p.Coupons == nil:
		return nil, fmt.Errorf("coupon usage recorder required")
	case p.Notifications == nil:
		return nil, fmt.Errorf("notifier required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case p.SigningKey == "":
		return nil, fmt.Errorf("payment signing key required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Async == nil {
		p.Async = func(task func()) { go task() }
	}
	return &service{
		repo:       p.Repo,
		tx:         p.DB,
		outbox:     p.Outbox,
		inventory:  p.Inventory,
		pricer:     p.Pricer,
		addresses:  p.Addresses,
		cart:       p.Cart,
		coupons:    p.Coupons,
		notifier:   p.Notifications,
		catalog:    p.Catalog,
		signingKey: p.SigningKey,
		logg:       p.Logger,
		now:        p.Now,
		async:      p.Async,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, viewer Actor) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !viewer.Role.IsPrivileged() && !viewer.owns(order) {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByCustomer(ctx, params.CustomerID, listOrdersParams{
		Limit:  params.Limit,
		Cursor: cursor,
		Status: params.Status,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &ListResult{Items: rows}
	if out.Items == nil {
		out.Items = []models.Order{}
	}
	if next != nil {
		out.NextCursor = next.Encode()
	}
	return out, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").WithDetails(map[string]any{"status": input.To})
	}
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, statusChange{
		to:       input.To,
		actor:    input.Actor,
		notes:    input.Notes,
		metadata: input.Metadata,
	})
}

// ExpireReservations handles an order whose ACTIVE reservations outlived
// their expiry. Unpaid pending orders are cancelled, which releases stock;
// any other order only gets its reservations released.
func (s *service) ExpireReservations(ctx context.Context, orderID uuid.UUID) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	order, err := s.load(ctx, orderID)
	if pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound) {
		return s.inventory.Release(ctx, orderID)
	}
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusPendingPayment && order.PaymentStatus != enums.PaymentStatusPaid {
		note := "reservation expired"
		_, err := s.transition(ctx, order, statusChange{
			to:    enums.OrderStatusCancelled,
			actor: SystemActor(),
			notes: &note,
		})
		return err
	}
	return s.inventory.Release(ctx, orderID)
}

// statusChange describes one persisted move. updates are written in the same
// guarded statement as the status; events are emitted in the same tx.
type statusChange struct {
	to       enums.OrderStatus
	actor    Actor
	notes    *string
	metadata types.JSONMap
	updates  map[string]any
	events   []outbox.DomainEvent
	notify   enums.NotificationType
}

func (s *service) transition(ctx context.Context, order *models.Order, change statusChange) (*models.Order, error) {
	from := order.Status
	to := change.to
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if !CanTransition(from, to) {
		return nil, invalidStatus(from, to)
	}
	if RequiresAdmin(to) && !change.actor.Role.IsPrivileged() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "status change requires an admin").
			WithDetails(map[string]any{"from": from, "to": to})
	}
	if change.actor.Role == enums.ActorRoleCustomer && !change.actor.owns(order) {
		return nil, orderNotFound(order.ID)
	}
	payment := order.PaymentStatus
	if pending, ok := change.updates["payment_status"].(enums.PaymentStatus); ok {
		payment = pending
	}
	if RequiresPayment(to) && payment != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "order must be paid first").
			WithDetails(map[string]any{"from": from, "to": to, "paymentStatus": payment})
	}

	now := s.historyTime(order)
	updates := map[string]any{"status": to}
	for k, v := range change.updates {
		updates[k] = v
	}
	if col := statusTimestampColumn(to); col != "" {
		if _, set := updates[col]; !set {
			updates[col] = now
		}
	}

	entry := &models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    to,
		ActorID:   change.actor.UserID,
		ActorRole: change.actor.Role,
		Notes:     change.notes,
		Metadata:  change.metadata,
		CreatedAt: now,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.UpdateStatus(ctx, order.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
				WithDetails(map[string]any{"from": from, "to": to})
		}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}
		events := append([]outbox.DomainEvent{s.statusChangedEvent(order, from, to, change)}, change.events...)
		if err := s.outbox.Emit(ctx, tx, events...); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order events")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// stock bookkeeping never undoes the status change
	if from == enums.OrderStatusPendingPayment && to == enums.OrderStatusConfirmed {
		if err := s.inventory.Commit(ctx, order.ID); err != nil {
			s.logg.Error(ctx, "commit reservations", err)
		}
	}
	if to == enums.OrderStatusCancelled {
		if err := s.inventory.Release(ctx, order.ID); err != nil {
			s.logg.Error(ctx, "release reservations", err)
		}
	}

	updated, err := s.load(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, updated, from, change)
	return updated, nil
}

func (s *service) statusChangedEvent(order *models.Order, from, to enums.OrderStatus, change statusChange) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         change.actor.ref(),
		Data:          orderStatusChanged(order, from, to, change),
	}
}

// appendNote writes a history row that keeps the current status, together
// with optional column updates.
func (s *service) appendNote(ctx context.Context, order *models.Order, actor Actor, notes *string, metadata types.JSONMap, updates map[string]any, events ...outbox.DomainEvent) (*models.Order, error) {
	entry := &models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    order.Status,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		Notes:     notes,
		Metadata:  metadata,
		CreatedAt: s.historyTime(order),
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if len(updates) > 0 {
			ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, updates)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
			}
		}
		if err := repo.AppendHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}
		if err := s.outbox.Emit(ctx, tx, events...); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order events")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, order.ID)
}

// historyTime keeps history strictly ordered even when the clock does not
// advance between two writes.
func (s *service) historyTime(order *models.Order) time.Time {
	now := s.now().UTC()
	if n := len(order.StatusHistory); n > 0 {
		last := order.StatusHistory[n-1].CreatedAt
		if !now.After(last) {
			now = last.Add(time.Microsecond)
		}
	}
	return now
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func statusTimestampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusConfirmed:
		return "confirmed_at"
	case enums.OrderStatusProcessing:
		return "processing_at"
	case enums.OrderStatusCompleted:
		return "completed_at"
	case enums.OrderStatusOnHold:
		return "on_hold_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	case enums.OrderStatusReturned:
		return "returned_at"
	case enums.OrderStatusRefunded:
		return "refunded_at"
	default:
		return ""
	}
}

func orderNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found").
		WithDetails(map[string]any{"orderId": id})
}

func invalidStatus(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeOrderInvalidStatus, "illegal status transition").
		WithDetails(map[string]any{"from": from, "to": to, "allowed": NextStates(from)})
}
