package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/ledger"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
)

var tracer = otel.Tracer("orderflow/inventory")

const (
	opReserve = "reserve"
	opCommit  = "commit"
	opRelease = "release"
	opAdjust  = "adjust"

	outcomeOK      = "ok"
	outcomeSkipped = "skipped"
	outcomeError   = "error"
)

// StockProvider is the catalog's stock surface.
type StockProvider interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) (product.Availability, error)
	AdjustStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, delta int) (int, bool, error)
	SetStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ManagerParams groups the reservation manager's collaborators.
type ManagerParams struct {
	DB      txRunner
	Repo    *Repository
	Ledger  ledger.Service
	Stock   StockProvider
	Metrics *metrics.InventoryMetrics
	Logger  *logger.Logger
	Config  config.InventoryConfig
	Now     func() time.Time
}

// Manager reserves, commits and releases stock for orders. Each target is
// updated by an independent guarded statement; a multi-target reservation is
// made all-or-nothing by an explicit CompensationLog.
type Manager struct {
	db      txRunner
	repo    *Repository
	ledger  ledger.Service
	stock   StockProvider
	metrics *metrics.InventoryMetrics
	logg    *logger.Logger
	cfg     config.InventoryConfig
	now     func() time.Time
}

func NewManager(p ManagerParams) (*Manager, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if p.Stock == nil {
		return nil, fmt.Errorf("stock provider required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Config.ReservationTTL <= 0 {
		p.Config.ReservationTTL = 15 * time.Minute
	}
	if p.Config.CommittedRetention <= 0 {
		p.Config.CommittedRetention = 365 * 24 * time.Hour
	}
	if p.Config.CancelledRetention <= 0 {
		p.Config.CancelledRetention = 24 * time.Hour
	}
	return &Manager{
		db:      p.DB,
		repo:    p.Repo,
		ledger:  p.Ledger,
		stock:   p.Stock,
		metrics: p.Metrics,
		logg:    p.Logger,
		cfg:     p.Config,
		now:     p.Now,
	}, nil
}

// targetLine is the stock demand of an order for one target.
type targetLine struct {
	TargetID  uuid.UUID
	Kind      enums.InventoryTargetKind
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

// collapseTargets merges lines sharing a target, keeping first-seen order.
func collapseTargets(items []models.OrderItem) []targetLine {
	index := map[uuid.UUID]int{}
	var out []targetLine
	for _, item := range items {
		if item.Qty <= 0 {
			continue
		}
		target := item.TargetID()
		if i, ok := index[target]; ok {
			out[i].Qty += item.Qty
			continue
		}
		line := targetLine{
			TargetID:  target,
			Kind:      enums.InventoryTargetProduct,
			ProductID: item.ProductID,
			Qty:       item.Qty,
		}
		if target != item.ProductID {
			variant := target
			line.VariantID = &variant
			line.Kind = enums.InventoryTargetVariant
		}
		index[target] = len(out)
		out = append(out, line)
	}
	return out
}

// Reserve takes stock for every line of the order. A second call for an
// order that already holds reservations is a no-op.
func (m *Manager) Reserve(ctx context.Context, order *models.Order) (err error) {
	if order == nil || order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	ctx = m.logg.WithOrderID(ctx, order.ID.String())
	ctx, span := tracer.Start(ctx, "inventory.reserve", trace.WithAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.Int("order.lines", len(order.Items)),
	))
	defer func() { endSpan(span, err) }()

	open, err := m.repo.HasOpen(ctx, order.ID)
	if err != nil {
		m.metrics.ObserveOperation(opReserve, outcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeOrderConfirmFailed, err, "check existing reservations")
	}
	if open {
		m.metrics.ObserveOperation(opReserve, outcomeSkipped)
		m.logg.Info(ctx, "reservations already exist, skipping reserve")
		return nil
	}

	var comp CompensationLog
	for _, line := range collapseTargets(order.Items) {
		if err := m.reserveTarget(ctx, order.ID, line, &comp); err != nil {
			if rbErr := comp.Rollback(ctx); rbErr != nil {
				m.logg.Error(ctx, "reservation rollback incomplete", rbErr)
			}
			m.metrics.ObserveOperation(opReserve, outcomeError)
			return confirmFailed(err)
		}
	}
	comp.Discard()
	m.metrics.ObserveOperation(opReserve, outcomeOK)
	return nil
}

func (m *Manager) reserveTarget(ctx context.Context, orderID uuid.UUID, line targetLine, comp *CompensationLog) error {
	ctx = m.logg.WithField(ctx, "target_id", line.TargetID.String())

	avail, err := m.stock.CheckAvailability(ctx, line.ProductID, line.VariantID, line.Qty)
	if err != nil {
		return err
	}
	if !avail.Tracked {
		return nil
	}
	if !avail.Available && !avail.AllowBackorder {
		return insufficientStock(line, avail.Stock)
	}

	if err := m.ensureRecord(ctx, line, avail.Stock); err != nil {
		return err
	}

	ok, err := m.repo.ReserveStock(ctx, line.TargetID, line.Qty, avail.AllowBackorder)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if !ok {
		onHand := 0
		if record, ferr := m.repo.FindRecord(ctx, line.TargetID); ferr == nil {
			onHand = record.OnHand
		}
		return insufficientStock(line, onHand)
	}
	comp.Add("return reserved counts", func(ctx context.Context) error {
		return m.returnReserved(ctx, line)
	})

	// a backorder can take fewer units than requested from a shelf that
	// floors at zero; only those are given back later
	applied, adjusted, err := m.stock.AdjustStock(ctx, line.ProductID, line.VariantID, -line.Qty)
	if err != nil {
		return err
	}
	if !adjusted {
		return pkgerrors.New(pkgerrors.CodeDependency, "catalog stock decrement rejected").
			WithDetails(map[string]any{"target": line.TargetID})
	}
	taken := -applied
	comp.Add("restore catalog stock", func(ctx context.Context) error {
		return m.restoreCatalog(ctx, line.ProductID, line.VariantID, taken)
	})

	var reservation *models.Reservation
	var entry *models.InventoryLedgerEntry
	err = m.db.WithTx(ctx, func(tx *gorm.DB) error {
		reservation = &models.Reservation{
			OrderID:    orderID,
			TargetID:   line.TargetID,
			TargetKind: line.Kind,
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			CatalogQty: taken,
			Status:     enums.ReservationStatusActive,
			ExpiresAt:  m.now().UTC().Add(m.cfg.ReservationTTL),
		}
		if err := m.repo.WithTx(tx).CreateReservation(ctx, reservation); err != nil {
			return err
		}
		var err error
		entry, err = m.ledger.WithTx(tx).Record(ctx, ledger.RecordInput{
			TargetID: line.TargetID,
			OrderID:  &orderID,
			Delta:    -line.Qty,
			Reason:   enums.LedgerReasonOrderReserved,
		})
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
	}
	reservationID, entryID := reservation.ID, entry.ID
	comp.Add("delete reservation rows", func(ctx context.Context) error {
		return m.db.WithTx(ctx, func(tx *gorm.DB) error {
			if err := m.repo.WithTx(tx).DeleteReservation(ctx, reservationID); err != nil {
				return err
			}
			return m.ledger.WithTx(tx).Retract(ctx, entryID)
		})
	})
	return nil
}

// ensureRecord creates the target's record from catalog stock when missing.
// Losing a create race to another reservation is success.
func (m *Manager) ensureRecord(ctx context.Context, line targetLine, stock int) error {
	if _, err := m.repo.FindRecord(ctx, line.TargetID); err == nil {
		return nil
	} else if !isNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}

	record := &models.InventoryRecord{
		TargetID:   line.TargetID,
		TargetKind: line.Kind,
		ProductID:  line.ProductID,
		OnHand:     stock,
	}
	if err := m.repo.CreateRecord(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "ux_inventory_records_target") {
			m.metrics.IncAnomaly(metrics.AnomalyDuplicateCreate)
			m.logg.Warn(m.logg.WithField(ctx, "anomaly", metrics.AnomalyDuplicateCreate), "inventory record created concurrently")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory record")
	}
	return nil
}

// returnReserved undoes ReserveStock. A missing record is tolerated and
// reported separately from a failed guard.
func (m *Manager) returnReserved(ctx context.Context, line targetLine) error {
	ok, err := m.repo.ReturnReserved(ctx, line.TargetID, line.Qty)
	if err != nil {
		return err
	}
	if !ok {
		m.reportUnmatched(ctx, line.TargetID, "reserved counts not returned")
	}
	return nil
}

// reportUnmatched distinguishes a missing record from a guard that did not hold.
func (m *Manager) reportUnmatched(ctx context.Context, targetID uuid.UUID, msg string) {
	kind := metrics.AnomalyGuardFailed
	if _, err := m.repo.FindRecord(ctx, targetID); isNotFound(err) {
		kind = metrics.AnomalyRecordMissing
	}
	m.metrics.IncAnomaly(kind)
	m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
		"target_id": targetID.String(),
		"anomaly":   kind,
	}), msg)
}

// Commit settles the order's ACTIVE reservations. Failures are collected and
// returned for logging; processing never stops at the first one.
func (m *Manager) Commit(ctx context.Context, orderID uuid.UUID) (err error) {
	ctx = m.logg.WithOrderID(ctx, orderID.String())
	ctx, span := tracer.Start(ctx, "inventory.commit", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer func() { endSpan(span, err) }()

	rows, err := m.repo.ListByOrder(ctx, orderID, enums.ReservationStatusActive)
	if err != nil {
		m.metrics.ObserveOperation(opCommit, outcomeError)
		return fmt.Errorf("list active reservations: %w", err)
	}

	var errs error
	for _, res := range rows {
		errs = multierr.Append(errs, m.commitOne(ctx, res))
	}
	m.observe(opCommit, errs)
	return errs
}

func (m *Manager) commitOne(ctx context.Context, res models.Reservation) error {
	claimed, err := m.repo.TransitionReservation(ctx, res.ID,
		enums.ReservationStatusActive, enums.ReservationStatusCommitted,
		m.now().UTC().Add(m.cfg.CommittedRetention))
	if err != nil {
		return fmt.Errorf("commit reservation %s: %w", res.ID, err)
	}
	if !claimed {
		return nil
	}

	ok, err := m.repo.CommitReserved(ctx, res.TargetID, res.Qty)
	if err != nil {
		return fmt.Errorf("commit reserved %s: %w", res.TargetID, err)
	}
	if !ok {
		m.reportUnmatched(ctx, res.TargetID, "reserved count below reservation qty at commit")
	}

	orderID := res.OrderID
	if _, err := m.ledger.Record(ctx, ledger.RecordInput{
		TargetID: res.TargetID,
		OrderID:  &orderID,
		Delta:    0,
		Reason:   enums.LedgerReasonOrderCommitted,
	}); err != nil {
		return fmt.Errorf("ledger commit %s: %w", res.TargetID, err)
	}
	return nil
}

// Release returns the stock of every open reservation of the order.
// ACTIVE rows give back on_hand and reserved; COMMITTED rows only on_hand.
func (m *Manager) Release(ctx context.Context, orderID uuid.UUID) (err error) {
	ctx = m.logg.WithOrderID(ctx, orderID.String())
	ctx, span := tracer.Start(ctx, "inventory.release", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer func() { endSpan(span, err) }()

	rows, err := m.repo.ListByOrder(ctx, orderID, enums.ReservationStatusActive, enums.ReservationStatusCommitted)
	if err != nil {
		m.metrics.ObserveOperation(opRelease, outcomeError)
		return fmt.Errorf("list open reservations: %w", err)
	}

	var errs error
	for _, res := range rows {
		errs = multierr.Append(errs, m.releaseOne(ctx, res))
	}
	m.observe(opRelease, errs)
	return errs
}

func (m *Manager) releaseOne(ctx context.Context, res models.Reservation) error {
	// claim the row first so a concurrent release cannot double count
	claimed, err := m.repo.TransitionReservation(ctx, res.ID, res.Status, enums.ReservationStatusCancelled,
		m.now().UTC().Add(m.cfg.CancelledRetention))
	if err != nil {
		return fmt.Errorf("cancel reservation %s: %w", res.ID, err)
	}
	if !claimed {
		return nil
	}

	var ok bool
	if res.Status == enums.ReservationStatusActive {
		ok, err = m.repo.ReturnReserved(ctx, res.TargetID, res.Qty)
	} else {
		ok, err = m.repo.RestockOnHand(ctx, res.TargetID, res.Qty)
	}
	if err != nil {
		return fmt.Errorf("restock %s: %w", res.TargetID, err)
	}
	if !ok {
		m.reportUnmatched(ctx, res.TargetID, "inventory counts not restored on release")
	}

	var errs error
	if err := m.restoreCatalog(ctx, res.ProductID, variantOf(res), res.CatalogQty); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("restore catalog stock %s: %w", res.TargetID, err))
	}

	orderID := res.OrderID
	if _, err := m.ledger.Record(ctx, ledger.RecordInput{
		TargetID: res.TargetID,
		OrderID:  &orderID,
		Delta:    res.Qty,
		Reason:   enums.LedgerReasonOrderCancelledRelease,
	}); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("ledger release %s: %w", res.TargetID, err))
	}
	return errs
}

// restoreCatalog gives back units a reservation took from catalog stock.
func (m *Manager) restoreCatalog(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, taken int) error {
	if taken <= 0 {
		return nil
	}
	_, _, err := m.stock.AdjustStock(ctx, productID, variantID, taken)
	return err
}

// StockChange describes an on_hand adjustment applied outside an order.
type StockChange struct {
	TargetID  uuid.UUID
	ProductID uuid.UUID
	Before    int
	After     int
}

// CrossedToAvailable reports a 0 to positive transition.
func (c StockChange) CrossedToAvailable() bool { return c.Before <= 0 && c.After > 0 }

// CrossedToEmpty reports a positive to 0 transition.
func (c StockChange) CrossedToEmpty() bool { return c.Before > 0 && c.After <= 0 }

// AdjustOnHand applies a signed delta to a target's on_hand, clamped at zero,
// records the applied movement and mirrors the result to catalog stock.
func (m *Manager) AdjustOnHand(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, delta int, note string) (change StockChange, err error) {
	line := targetLine{TargetID: productID, Kind: enums.InventoryTargetProduct, ProductID: productID}
	if variantID != nil && *variantID != uuid.Nil {
		line.TargetID = *variantID
		line.VariantID = variantID
		line.Kind = enums.InventoryTargetVariant
	}
	ctx, span := tracer.Start(ctx, "inventory.adjust", trace.WithAttributes(
		attribute.String("target.id", line.TargetID.String()),
		attribute.Int("delta", delta),
	))
	defer func() { endSpan(span, err) }()

	if _, err := m.repo.FindRecord(ctx, line.TargetID); isNotFound(err) {
		avail, aerr := m.stock.CheckAvailability(ctx, productID, line.VariantID, 0)
		if aerr != nil {
			return StockChange{}, aerr
		}
		if err := m.ensureRecord(ctx, line, avail.Stock); err != nil {
			return StockChange{}, err
		}
	} else if err != nil {
		return StockChange{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}

	change = StockChange{TargetID: line.TargetID, ProductID: productID}
	err = m.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)
		record, err := repo.FindRecordForUpdate(ctx, line.TargetID)
		if err != nil {
			return err
		}
		change.Before = record.OnHand
		change.After = record.OnHand + delta
		if change.After < 0 {
			change.After = 0
		}
		applied := change.After - change.Before
		if applied == 0 {
			return nil
		}
		if err := repo.SetOnHand(ctx, line.TargetID, change.After); err != nil {
			return err
		}
		_, err = m.ledger.WithTx(tx).Record(ctx, ledger.RecordInput{
			TargetID: line.TargetID,
			Delta:    applied,
			Reason:   enums.LedgerReasonStockAdjustment,
			Note:     note,
		})
		return err
	})
	if err != nil {
		m.metrics.ObserveOperation(opAdjust, outcomeError)
		return StockChange{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust on hand")
	}

	if err := m.stock.SetStock(ctx, productID, line.VariantID, change.After); err != nil {
		m.logg.Error(ctx, "mirror stock to catalog", err)
	}
	m.metrics.ObserveOperation(opAdjust, outcomeOK)
	return change, nil
}

// ListReservations returns every reservation row of the order.
func (m *Manager) ListReservations(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error) {
	return m.repo.ListByOrder(ctx, orderID)
}

// ExpiredOrders lists orders holding ACTIVE reservations past their expiry.
func (m *Manager) ExpiredOrders(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return m.repo.ListExpiredActive(ctx, m.now().UTC(), limit)
}

// PurgeCancelled deletes CANCELLED reservations whose retention ended.
// COMMITTED rows are never touched.
func (m *Manager) PurgeCancelled(ctx context.Context) (int64, error) {
	return m.repo.PurgeCancelled(ctx, m.now().UTC())
}

func (m *Manager) observe(op string, err error) {
	if err != nil {
		m.metrics.ObserveOperation(op, outcomeError)
		return
	}
	m.metrics.ObserveOperation(op, outcomeOK)
}

func variantOf(res models.Reservation) *uuid.UUID {
	if res.TargetKind != enums.InventoryTargetVariant {
		return nil
	}
	id := res.TargetID
	return &id
}

func insufficientStock(line targetLine, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"target":    line.TargetID,
			"requested": line.Qty,
			"available": available,
		})
}

func confirmFailed(cause error) error {
	wrapped := pkgerrors.Wrap(pkgerrors.CodeOrderConfirmFailed, cause, "inventory reservation failed")
	if typed := pkgerrors.As(cause); typed != nil && typed.Details() != nil {
		wrapped = wrapped.WithDetails(typed.Details())
	}
	return wrapped
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
