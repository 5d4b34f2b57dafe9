package address

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

func TestOwnedChecksCustomer(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	owner := uuid.New()
	addr := &models.Address{CustomerID: owner, Recipient: "Sam", Phone: "+967700000000", Line1: "Hadda St", City: "Sanaa", Country: "YE"}
	if err := repo.Create(ctx, addr); err != nil {
		t.Fatalf("create: %v", err)
	}

	snap, err := svc.Snapshot(ctx, owner, addr.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.City != "Sanaa" || snap.Recipient != "Sam" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if _, err := svc.Owned(ctx, uuid.New(), addr.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign customer, got %v", err)
	}
	if _, err := svc.Owned(ctx, owner, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for missing address, got %v", err)
	}
	if _, err := svc.Owned(ctx, owner, uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
