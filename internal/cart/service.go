package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/cache"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// maximum units of one line
const maxLineQty = 999

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalog interface {
	ResolveLine(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*product.LineSource, error)
	CheckAvailability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) (product.Availability, error)
}

// Service exposes cart operations and the priced snapshot checkout reads.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*View, error)
	UpsertItem(ctx context.Context, customerID uuid.UUID, input UpsertItemInput) (*View, error)
	RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*View, error)
	Lines(ctx context.Context, customerID uuid.UUID) ([]checkout.Line, error)
	ActiveCartID(ctx context.Context, customerID uuid.UUID) (*uuid.UUID, error)
	Convert(ctx context.Context, customerID, orderID uuid.UUID) error
}

// UpsertItemInput sets the quantity of one product line.
type UpsertItemInput struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Qty       int        `json:"qty" validate:"required,min=1,max=999"`
}

// View is the cart as returned to the customer, priced from the live catalog.
type View struct {
	CartID *uuid.UUID `json:"cart_id,omitempty"`
	Items  []ItemView `json:"items"`
}

type ItemView struct {
	ItemID uuid.UUID `json:"item_id"`
	checkout.Line
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog catalog
	cache   cache.Cache
	logg    *logger.Logger
}

// NewService builds a cart service. The cache is the one checkout previews
// and coupon verdicts live in; every mutation clears the customer's entries.
func NewService(repo CartRepository, tx txRunner, catalog catalog, c cache.Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if c == nil {
		c = cache.NewNull()
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		cache:   c,
		logg:    logg,
	}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	cart, err := s.activeCart(ctx, s.repo, customerID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *service) UpsertItem(ctx context.Context, customerID uuid.UUID, input UpsertItemInput) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Qty <= 0 || input.Qty > maxLineQty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").WithDetails(map[string]any{
			"qty": input.Qty,
			"max": maxLineQty,
		})
	}

	line, err := s.catalog.ResolveLine(ctx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}
	if !line.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product not available").WithDetails(map[string]any{
			"productId": input.ProductID,
		})
	}
	avail, err := s.catalog.CheckAvailability(ctx, input.ProductID, input.VariantID, input.Qty)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
			"productId": input.ProductID,
			"requested": input.Qty,
			"available": avail.Stock,
		})
	}

	var cart *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.activeCart(ctx, repo, customerID)
		if err != nil {
			return err
		}
		if current == nil {
			current, err = repo.Create(ctx, &models.Cart{CustomerID: customerID})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
			}
		}

		item, err := repo.FindItem(ctx, current.ID, input.ProductID, input.VariantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if item == nil {
			item = &models.CartItem{CartID: current.ID, ProductID: input.ProductID, VariantID: input.VariantID}
		}
		item.Qty = input.Qty
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}

		cart, err = repo.FindActiveByCustomer(ctx, customerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, customerID)
	return s.view(ctx, cart)
}

func (s *service) RemoveItem(ctx context.Context, customerID, itemID uuid.UUID) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	cart, err := s.activeCart(ctx, s.repo, customerID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	removed, err := s.repo.DeleteItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	s.invalidate(ctx, customerID)
	return s.Get(ctx, customerID)
}

// Lines prices the active cart from the live catalog. Lines whose product
// disappeared are returned inactive so checkout rejects them explicitly.
func (s *service) Lines(ctx context.Context, customerID uuid.UUID) ([]checkout.Line, error) {
	cart, err := s.activeCart(ctx, s.repo, customerID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, nil
	}
	lines := make([]checkout.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		line, err := s.priceItem(ctx, item)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *service) ActiveCartID(ctx context.Context, customerID uuid.UUID) (*uuid.UUID, error) {
	cart, err := s.activeCart(ctx, s.repo, customerID)
	if err != nil || cart == nil {
		return nil, err
	}
	id := cart.ID
	return &id, nil
}

// Convert closes the active cart against orderID and empties it.
func (s *service) Convert(ctx context.Context, customerID, orderID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.activeCart(ctx, repo, customerID)
		if err != nil || cart == nil {
			return err
		}
		if err := repo.MarkConverted(ctx, cart.ID, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart converted")
		}
		if err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, customerID)
	return nil
}

func (s *service) activeCart(ctx context.Context, repo CartRepository, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindActiveByCustomer(ctx, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) priceItem(ctx context.Context, item models.CartItem) (checkout.Line, error) {
	src, err := s.catalog.ResolveLine(ctx, item.ProductID, item.VariantID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return checkout.Line{ProductID: item.ProductID, VariantID: item.VariantID, Qty: item.Qty}, nil
	}
	if err != nil {
		return checkout.Line{}, err
	}
	return checkout.Line{
		ProductID:      src.ProductID,
		VariantID:      src.VariantID,
		Name:           src.Name,
		SKU:            src.SKU,
		Qty:            item.Qty,
		UnitBasePrice:  src.BasePrice,
		UnitFinalPrice: src.FinalPrice,
		Currency:       src.Currency,
		PromotionID:    src.PromotionID,
		Active:         src.Active,
	}, nil
}

func (s *service) view(ctx context.Context, cart *models.Cart) (*View, error) {
	out := &View{Items: []ItemView{}}
	if cart == nil {
		return out, nil
	}
	id := cart.ID
	out.CartID = &id
	for _, item := range cart.Items {
		line, err := s.priceItem(ctx, item)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, ItemView{ItemID: item.ID, Line: line})
	}
	return out, nil
}

func (s *service) invalidate(ctx context.Context, customerID uuid.UUID) {
	if err := checkout.InvalidateCustomer(ctx, s.cache, customerID); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"customer_id": customerID.String(),
			"error":       err.Error(),
		}), "checkout cache invalidation failed")
	}
}
