package orders

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderflow-backend/pkg/security"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

const (
	orderNumberLayout   = "20060102"
	orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	orderNumberSuffix   = 6
	orderNumberAttempts = 5

	orderNumberConstraint   = "ux_orders_order_number"
	paymentIntentConstraint = "ux_orders_payment_intent"
)

// ConfirmCheckout turns the customer's live cart into an order, reserves
// stock for every line and returns the payment intent the client settles.
// Cash on delivery orders are confirmed immediately.
func (s *service) ConfirmCheckout(ctx context.Context, input ConfirmCheckoutInput) (*ConfirmCheckoutResult, error) {
	if err := validateConfirm(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"customer_id":    input.CustomerID.String(),
		"payment_method": string(input.PaymentMethod),
	})

	address, err := s.addresses.Snapshot(ctx, input.CustomerID, input.AddressID)
	if err != nil {
		return nil, err
	}

	switch input.PaymentMethod {
	case enums.PaymentMethodCOD:
		cod, err := s.pricer.CODEligibility(ctx, input.CustomerID, input.Role)
		if err != nil {
			return nil, err
		}
		if !cod.Eligible {
			return nil, pkgerrors.New(pkgerrors.CodeCODNotEligible, "cash on delivery is not available yet").
				WithDetails(map[string]any{
					"completed":    cod.Counts.Completed,
					"minCompleted": cod.MinCompleted,
					"remaining":    cod.Remaining,
				})
		}
	case enums.PaymentMethodBankTransfer:
		if input.PaymentReference == nil || strings.TrimSpace(*input.PaymentReference) == "" {
			return nil, pkgerrors.New(pkgerrors.CodePaymentReferenceRequired, "bank transfer requires a payment reference")
		}
	}

	quote, err := s.pricer.Quote(ctx, checkout.QuoteInput{
		CustomerID:  input.CustomerID,
		Role:        input.Role,
		Currency:    input.Currency,
		CouponCodes: input.CouponCodes,
	})
	if err != nil {
		return nil, err
	}
	cartID, err := s.cart.ActiveCartID(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}

	order, err := s.createOrder(ctx, input, quote, address, cartID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if err := s.inventory.Reserve(ctx, order); err != nil {
		if delErr := s.repo.Delete(ctx, order.ID); delErr != nil {
			s.logg.Error(ctx, "delete unreserved order", delErr)
		}
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if codes := order.AppliedCoupons.Codes(); len(codes) > 0 {
			if err := s.coupons.RecordUsage(ctx, tx, codes); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, orderCreatedEvent(order, CustomerActor(input.CustomerID)))
	})
	if err != nil {
		s.logg.Error(ctx, "record order creation", err)
	}

	if order.PaymentMethod == enums.PaymentMethodCOD {
		note := "cash on delivery"
		confirmed, err := s.transition(ctx, order, statusChange{
			to:      enums.OrderStatusConfirmed,
			actor:   SystemActor(),
			notes:   &note,
			updates: map[string]any{"payment_status": enums.PaymentStatusPaid},
		})
		if err != nil {
			return nil, err
		}
		order = confirmed
	}

	if err := s.cart.Convert(ctx, input.CustomerID, order.ID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "convert cart failed")
	}
	s.notifyPlaced(ctx, order)

	s.logg.Info(ctx, "order placed")
	return &ConfirmCheckoutResult{Order: order, PaymentIntent: paymentIntent(order)}, nil
}

func validateConfirm(input ConfirmCheckoutInput) error {
	switch {
	case input.CustomerID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	case input.AddressID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	case !input.PaymentMethod.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"paymentMethod": input.PaymentMethod})
	case !input.Currency.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid currency").
			WithDetails(map[string]any{"currency": input.Currency})
	}
	return nil
}

// createOrder persists the order with its lines and first history row,
// drawing a new order number when the drawn one is already taken.
func (s *service) createOrder(ctx context.Context, input ConfirmCheckoutInput, quote *checkout.Quote, address types.Address, cartID *uuid.UUID) (*models.Order, error) {
	now := s.now().UTC()
	addressID := input.AddressID

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := newOrderNumber(now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order := &models.Order{
			ID:               uuid.New(),
			OrderNumber:      number,
			CustomerID:       input.CustomerID,
			CartID:           cartID,
			AddressID:        &addressID,
			ShippingAddress:  &address,
			Status:           enums.OrderStatusPendingPayment,
			PaymentStatus:    enums.PaymentStatusPending,
			PaymentMethod:    input.PaymentMethod,
			PaymentReference: trimmed(input.PaymentReference),
			Currency:         quote.Currency,
			Subtotal:         quote.Subtotal,
			ItemsDiscount:    quote.ItemsDiscount,
			CouponDiscount:   quote.CouponDiscount,
			Shipping:         quote.Shipping,
			Tax:              quote.Tax,
			Total:            quote.Total,
			CurrencyTotals:   quote.CurrencyTotals,
			AppliedCoupons:   quote.AppliedCoupons,
			Items:            orderItems(quote),
			StatusHistory: []models.OrderStatusHistory{{
				Status:    enums.OrderStatusPendingPayment,
				ActorID:   &input.CustomerID,
				ActorRole: enums.ActorRoleCustomer,
				Notes:     input.Notes,
				CreatedAt: now,
			}},
		}
		if intent, err := s.intentID(order); err != nil {
			return nil, err
		} else if intent != "" {
			order.PaymentIntentID = &intent
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, order)
		})
		switch {
		case err == nil:
			return order, nil
		case db.IsUniqueViolation(err, orderNumberConstraint), db.IsUniqueViolation(err, paymentIntentConstraint):
			s.logg.Warn(s.logg.WithField(ctx, "order_number", number), "order number collision, retrying")
			continue
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate an order number")
}

// intentID signs the order number, amount and currency so webhook
// deliveries can be matched without trusting the client. COD has no intent.
func (s *service) intentID(order *models.Order) (string, error) {
	var prefix string
	switch order.PaymentMethod {
	case enums.PaymentMethodBankTransfer:
		prefix = "bt_"
	case enums.PaymentMethodCard:
		prefix = "pi_"
	default:
		return "", nil
	}
	sig, err := security.SignFields(s.signingKey, order.OrderNumber, order.Total.StringFixed(2), string(order.Currency))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign payment intent")
	}
	return prefix + sig[:32], nil
}

func paymentIntent(order *models.Order) *PaymentIntent {
	if order.PaymentIntentID == nil {
		return nil
	}
	return &PaymentIntent{
		ID:        *order.PaymentIntentID,
		Method:    order.PaymentMethod,
		Amount:    order.Total,
		Currency:  order.Currency,
		Reference: order.PaymentReference,
		Status:    order.PaymentStatus,
	}
}

func orderItems(quote *checkout.Quote) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		items = append(items, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Name:           line.Name,
			SKU:            line.SKU,
			Qty:            line.Qty,
			UnitBasePrice:  line.UnitBasePrice,
			UnitFinalPrice: line.UnitFinalPrice,
			LineTotal:      line.LineTotal,
			Currency:       line.Currency,
			PromotionID:    line.PromotionID,
		})
	}
	return items
}

func orderCreatedEvent(order *models.Order, actor Actor) outbox.DomainEvent {
	count := 0
	for _, item := range order.Items {
		count += item.Qty
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			PaymentMethod: order.PaymentMethod,
			Currency:      order.Currency,
			Total:         order.Total,
			ItemCount:     count,
		},
	}
}

// newOrderNumber draws ORD-YYYYMMDD-XXXXXX from an unambiguous alphabet.
func newOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderNumberSuffix)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format(orderNumberLayout), buf), nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
