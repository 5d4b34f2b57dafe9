package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// Service exposes the catalog surface the order core depends on: line
// pricing, stock availability and stock adjustment.
type Service interface {
	ResolveLine(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*LineSource, error)
	CheckAvailability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) (Availability, error)
	AdjustStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, delta int) (int, bool, error)
	SetStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) error
	RecordSales(ctx context.Context, lines []SaleLine) error
	ResolveTarget(ctx context.Context, targetID uuid.UUID) (uuid.UUID, *uuid.UUID, error)
}

// LineSource is the live catalog data a cart line is priced from.
type LineSource struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Name        string
	SKU         *string
	Currency    enums.Currency
	BasePrice   decimal.Decimal
	FinalPrice  decimal.Decimal
	PromotionID *uuid.UUID
	Active      bool
}

// Availability answers whether qty units of a target can be sold.
type Availability struct {
	Tracked        bool
	Available      bool
	AllowBackorder bool
	Stock          int
}

// SaleLine is one completed line used for sales counters.
type SaleLine struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService wires the catalog service.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) ResolveLine(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*LineSource, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": productID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	line := &LineSource{
		ProductID:   product.ID,
		Name:        product.Name,
		SKU:         product.SKU,
		Currency:    product.Currency,
		BasePrice:   product.BasePrice,
		FinalPrice:  product.FinalPrice,
		PromotionID: product.PromotionID,
		Active:      product.Active,
	}
	if variantID == nil {
		return line, nil
	}

	variant, err := s.repo.FindVariant(ctx, productID, *variantID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"productId": productID, "variantId": *variantID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	id := variant.ID
	line.VariantID = &id
	line.Name = product.Name + " - " + variant.Name
	if variant.SKU != nil {
		line.SKU = variant.SKU
	}
	line.BasePrice = variant.BasePrice
	line.FinalPrice = variant.FinalPrice
	return line, nil
}

// CheckAvailability reads catalog stock. Variants inherit tracking and
// backorder policy from their product.
func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) (Availability, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return Availability{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": productID})
		}
		return Availability{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.TrackStock {
		return Availability{Tracked: false, Available: true}, nil
	}

	stock := product.StockQty
	if variantID != nil {
		variant, err := s.repo.FindVariant(ctx, productID, *variantID)
		if err != nil {
			if isNotFound(err) {
				return Availability{}, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
					WithDetails(map[string]any{"productId": productID, "variantId": *variantID})
			}
			return Availability{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		stock = variant.StockQty
	}

	return Availability{
		Tracked:        true,
		Available:      stock >= qty || product.AllowBackorder,
		AllowBackorder: product.AllowBackorder,
		Stock:          stock,
	}, nil
}

// AdjustStock applies a signed delta to catalog stock, flooring it at zero.
// It returns the delta actually applied and false when the target does not
// exist.
func (s *service) AdjustStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, delta int) (int, bool, error) {
	if delta == 0 {
		return 0, true, nil
	}
	var (
		applied int
		ok      bool
		err     error
	)
	if variantID != nil {
		applied, ok, err = s.repo.AdjustVariantStock(ctx, *variantID, delta)
	} else {
		applied, ok, err = s.repo.AdjustProductStock(ctx, productID, delta)
	}
	if err != nil {
		return 0, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust catalog stock")
	}
	return applied, ok, nil
}

func (s *service) SetStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	if err := s.repo.SetStock(ctx, productID, variantID, qty); err != nil {
		if isNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock target not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set catalog stock")
	}
	return nil
}

// RecordSales bumps sales counters; a failing line is logged and skipped.
func (s *service) RecordSales(ctx context.Context, lines []SaleLine) error {
	var failed int
	for _, line := range lines {
		if err := s.repo.IncrementSales(ctx, line.ProductID, line.VariantID, line.Qty); err != nil {
			failed++
			s.logg.Error(s.logg.WithField(ctx, "product_id", line.ProductID.String()), "increment sales counter", err)
		}
	}
	if failed > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "some sales counters were not updated").
			WithDetails(map[string]any{"failed": failed})
	}
	return nil
}

// ResolveTarget maps a stock target id to its product and, when the target
// is a variant, the variant id.
func (s *service) ResolveTarget(ctx context.Context, targetID uuid.UUID) (uuid.UUID, *uuid.UUID, error) {
	variant, err := s.repo.FindVariantByID(ctx, targetID)
	if err == nil {
		id := variant.ID
		return variant.ProductID, &id, nil
	}
	if !isNotFound(err) {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	product, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		if isNotFound(err) {
			return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock target not found").
				WithDetails(map[string]any{"targetId": targetID})
		}
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product.ID, nil, nil
}
