package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Repository holds the guarded stock updates and reservation bookkeeping.
// Every count-changing statement is a single conditional UPDATE; callers
// inspect the boolean to learn whether the guard held.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindRecord returns gorm.ErrRecordNotFound when the target has no record.
func (r *Repository) FindRecord(ctx context.Context, targetID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.db.WithContext(ctx).First(&record, "target_id = ?", targetID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindRecordForUpdate locks the row on Postgres; SQLite serialises writers already.
func (r *Repository) FindRecordForUpdate(ctx context.Context, targetID uuid.UUID) (*models.InventoryRecord, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == db.DriverPostgres {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var record models.InventoryRecord
	if err := query.First(&record, "target_id = ?", targetID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) CreateRecord(ctx context.Context, record *models.InventoryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ReserveStock moves qty from on_hand to reserved. Unless backorder is
// allowed the move only happens while on_hand covers qty.
func (r *Repository) ReserveStock(ctx context.Context, targetID uuid.UUID, qty int, allowBackorder bool) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryRecord{}).Where("target_id = ?", targetID)
	if !allowBackorder {
		query = query.Where("on_hand >= ?", qty)
	}
	res := query.Updates(map[string]any{
		"on_hand":  gorm.Expr("on_hand - ?", qty),
		"reserved": gorm.Expr("reserved + ?", qty),
	})
	return res.RowsAffected > 0, res.Error
}

// ReturnReserved moves qty from reserved back to on_hand, guarded by reserved >= qty.
func (r *Repository) ReturnReserved(ctx context.Context, targetID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("target_id = ? AND reserved >= ?", targetID, qty).
		Updates(map[string]any{
			"on_hand":  gorm.Expr("on_hand + ?", qty),
			"reserved": gorm.Expr("reserved - ?", qty),
		})
	return res.RowsAffected > 0, res.Error
}

// CommitReserved drops qty from reserved, guarded by reserved >= qty.
func (r *Repository) CommitReserved(ctx context.Context, targetID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("target_id = ? AND reserved >= ?", targetID, qty).
		Update("reserved", gorm.Expr("reserved - ?", qty))
	return res.RowsAffected > 0, res.Error
}

// RestockOnHand adds qty to on_hand only.
func (r *Repository) RestockOnHand(ctx context.Context, targetID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("target_id = ?", targetID).
		Update("on_hand", gorm.Expr("on_hand + ?", qty))
	return res.RowsAffected > 0, res.Error
}

// SetOnHand overwrites on_hand after a locked read.
func (r *Repository) SetOnHand(ctx context.Context, targetID uuid.UUID, onHand int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("target_id = ?", targetID).
		Update("on_hand", onHand).Error
}

func (r *Repository) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *Repository) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Reservation{}, "id = ?", id).Error
}

// ListByOrder returns the order's reservations in creation order, optionally
// filtered by status.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID, statuses ...enums.ReservationStatus) ([]models.Reservation, error) {
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var rows []models.Reservation
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HasOpen reports whether the order holds any ACTIVE or COMMITTED reservation.
func (r *Repository) HasOpen(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.ReservationStatus{
			enums.ReservationStatusActive,
			enums.ReservationStatusCommitted,
		}).
		Count(&count).Error
	return count > 0, err
}

// TransitionReservation moves a reservation from one status to another and
// resets its expiry. It reports false when the row was no longer in from.
func (r *Repository) TransitionReservation(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"expires_at": expiresAt,
		})
	return res.RowsAffected > 0, res.Error
}

// ListExpiredActive returns distinct order ids holding ACTIVE reservations
// that expired before cutoff.
func (r *Repository) ListExpiredActive(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Distinct("order_id").
		Where("status = ? AND expires_at < ?", enums.ReservationStatusActive, cutoff)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("order_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// PurgeCancelled deletes CANCELLED reservations whose retention ended.
func (r *Repository) PurgeCancelled(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.ReservationStatusCancelled, cutoff).
		Delete(&models.Reservation{})
	return res.RowsAffected, res.Error
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
