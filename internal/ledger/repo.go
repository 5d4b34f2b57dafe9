package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Repository persists inventory ledger entries. Entries are never updated or
// deleted once written.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.InventoryLedgerEntry) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLedgerEntry, error)
	ListByTargetID(ctx context.Context, targetID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error)
	SumByTargetID(ctx context.Context, targetID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.InventoryLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLedgerEntry, error) {
	var entries []models.InventoryLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByTargetID(ctx context.Context, targetID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.InventoryLedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumByTargetID(ctx context.Context, targetID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.InventoryLedgerEntry{}).
		Where("target_id = ?", targetID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	return total, err
}

// Delete removes an entry. It exists only for compensating a reservation
// that never completed; settled movements stay untouched.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.InventoryLedgerEntry{}, "id = ?", id).Error
}
