// Package address resolves delivery addresses owned by a customer and
// produces the snapshot stored on orders.
package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

type Service interface {
	// Owned returns the address when it belongs to customerID. Foreign and
	// missing addresses are both reported as not found.
	Owned(ctx context.Context, customerID, addressID uuid.UUID) (*models.Address, error)
	Snapshot(ctx context.Context, customerID, addressID uuid.UUID) (types.Address, error)
	List(ctx context.Context, customerID uuid.UUID) ([]models.Address, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Owned(ctx context.Context, customerID, addressID uuid.UUID) (*models.Address, error) {
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	addr, err := s.repo.FindByID(ctx, addressID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(addressID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if addr.CustomerID != customerID {
		return nil, notFound(addressID)
	}
	return addr, nil
}

func (s *service) Snapshot(ctx context.Context, customerID, addressID uuid.UUID) (types.Address, error) {
	addr, err := s.Owned(ctx, customerID, addressID)
	if err != nil {
		return types.Address{}, err
	}
	return addr.Snapshot(), nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID) ([]models.Address, error) {
	rows, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return rows, nil
}

func notFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "address not found").WithDetails(map[string]any{
		"address_id": id,
	})
}
