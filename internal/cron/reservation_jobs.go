package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const defaultReaperBatch = 100

type expiredReservations interface {
	ExpiredOrders(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type reservationExpirer interface {
	ExpireReservations(ctx context.Context, orderID uuid.UUID) error
}

type cancelledReservationPurger interface {
	PurgeCancelled(ctx context.Context) (int64, error)
}

type ReservationReaperParams struct {
	Logger    *logger.Logger
	Source    expiredReservations
	Orders    reservationExpirer
	BatchSize int
}

// NewReservationReaperJob builds the job that expires ACTIVE reservations
// past their deadline. Unpaid orders get cancelled by the order service; the
// rest only lose their holds.
func NewReservationReaperJob(params ReservationReaperParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("reservation source required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReaperBatch
	}
	return &reservationReaperJob{
		logg:   params.Logger,
		source: params.Source,
		orders: params.Orders,
		batch:  batch,
	}, nil
}

type reservationReaperJob struct {
	logg   *logger.Logger
	source expiredReservations
	orders reservationExpirer
	batch  int
}

func (j *reservationReaperJob) Name() string { return "reservation-reaper" }

// Run handles one batch per tick. A failing order does not stop the batch;
// every failure is reported in the combined error.
func (j *reservationReaperJob) Run(ctx context.Context) error {
	orderIDs, err := j.source.ExpiredOrders(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list expired reservations: %w", err)
	}
	var errs error
	expired := 0
	for _, orderID := range orderIDs {
		if err := j.orders.ExpireReservations(ctx, orderID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", orderID, err))
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(orderIDs),
		"expired":    expired,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "reservation reaper pass complete")
	return errs
}

type ReservationPurgeParams struct {
	Logger *logger.Logger
	Purger cancelledReservationPurger
}

// NewReservationPurgeJob builds the job that deletes CANCELLED reservations
// whose retention ended.
func NewReservationPurgeJob(params ReservationPurgeParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("reservation purger required")
	}
	return &reservationPurgeJob{logg: params.Logger, purger: params.Purger}, nil
}

type reservationPurgeJob struct {
	logg   *logger.Logger
	purger cancelledReservationPurger
}

func (j *reservationPurgeJob) Name() string { return "reservation-purge" }

func (j *reservationPurgeJob) Run(ctx context.Context) error {
	deleted, err := j.purger.PurgeCancelled(ctx)
	if err != nil {
		return fmt.Errorf("purge cancelled reservations: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "reservation purge complete")
	return nil
}
