package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/api/controllers/dto"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type reservationLister interface {
	ListReservations(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error)
}

type ledgerReader interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryLedgerEntry, error)
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]models.InventoryLedgerEntry, error)
	NetDelta(ctx context.Context, targetID uuid.UUID) (int, error)
}

// AdminOrderReservations lists the order's reservation rows next to the
// ledger entries they produced.
func AdminOrderReservations(reservations reservationLister, ledger ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reservations == nil || ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := reservations.ListReservations(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations"))
			return
		}
		entries, err := ledger.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries"))
			return
		}

		responses.WriteSuccess(w, dto.OrderReservations{
			OrderID:      orderID,
			Reservations: dto.NewReservations(rows),
			Ledger:       dto.NewLedgerEntries(entries),
		})
	}
}

func AdminTargetLedger(ledger ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		targetID, err := validators.ParseUUIDParam(r, "targetId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePageQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := ledger.ListByTarget(r.Context(), targetID, page.Limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries"))
			return
		}
		net, err := ledger.NetDelta(r.Context(), targetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger entries"))
			return
		}

		responses.WriteSuccess(w, dto.TargetLedger{
			TargetID: targetID,
			NetDelta: net,
			Entries:  dto.NewLedgerEntries(entries),
		})
	}
}
