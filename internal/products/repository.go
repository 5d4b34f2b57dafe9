package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// maxStockAttempts bounds the compare-and-swap loop in adjust.
const maxStockAttempts = 8

var errStockContention = errors.New("catalog stock kept changing during adjustment")

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariant loads a variant scoped to its product.
func (r *Repository) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).
		First(&variant, "id = ? AND product_id = ?", variantID, productID).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindVariantByID resolves a variant without knowing its product.
func (r *Repository) FindVariantByID(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// AdjustProductStock applies delta to the catalog stock, clamped at zero. It
// returns the delta actually applied and false when the product is missing.
func (r *Repository) AdjustProductStock(ctx context.Context, productID uuid.UUID, delta int) (int, bool, error) {
	return r.adjust(ctx, &models.Product{}, productID, delta)
}

// AdjustVariantStock is AdjustProductStock for a variant.
func (r *Repository) AdjustVariantStock(ctx context.Context, variantID uuid.UUID, delta int) (int, bool, error) {
	return r.adjust(ctx, &models.ProductVariant{}, variantID, delta)
}

// adjust swaps stock_qty only if nobody changed it since it was read, so the
// applied delta is exact even when the clamp swallows part of a decrement.
func (r *Repository) adjust(ctx context.Context, model any, id uuid.UUID, delta int) (int, bool, error) {
	for range maxStockAttempts {
		var stock []int
		if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Pluck("stock_qty", &stock).Error; err != nil {
			return 0, false, err
		}
		if len(stock) == 0 {
			return 0, false, nil
		}
		current := stock[0]
		next := max(current+delta, 0)
		res := r.db.WithContext(ctx).
			Model(model).
			Where("id = ? AND stock_qty = ?", id, current).
			Update("stock_qty", next)
		if res.Error != nil {
			return 0, false, res.Error
		}
		if res.RowsAffected > 0 {
			return next - current, true, nil
		}
	}
	return 0, false, errStockContention
}

// SetStock overwrites the catalog stock of a product or variant.
func (r *Repository) SetStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	if qty < 0 {
		qty = 0
	}
	var res *gorm.DB
	if variantID != nil {
		res = r.db.WithContext(ctx).Model(&models.ProductVariant{}).Where("id = ?", *variantID).Update("stock_qty", qty)
	} else {
		res = r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Update("stock_qty", qty)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementSales bumps the sales counter of the product and, when given, the variant.
func (r *Repository) IncrementSales(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("sales_count", gorm.Expr("sales_count + ?", qty)).Error; err != nil {
		return err
	}
	if variantID == nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", *variantID).
		Update("sales_count", gorm.Expr("sales_count + ?", qty)).Error
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
