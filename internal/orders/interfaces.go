package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateWhere(ctx context.Context, id uuid.UUID, guard string, updates map[string]any, args ...any) (bool, error)
	AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, filter listOrdersParams) ([]models.Order, *pagination.Cursor, error)
	ListContainingTarget(ctx context.Context, targetID uuid.UUID, statuses ...enums.OrderStatus) ([]models.Order, error)
	CountByCustomer(ctx context.Context, customerID uuid.UUID) (checkout.OrderCounts, error)
}

type listOrdersParams struct {
	Limit  int
	Cursor *pagination.Cursor
	Status *enums.OrderStatus
}
