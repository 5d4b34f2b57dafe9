package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type fakeReservations struct {
	expired []uuid.UUID
	limit   int
	purged  int64
	err     error
}

func (f *fakeReservations) ExpiredOrders(_ context.Context, limit int) ([]uuid.UUID, error) {
	f.limit = limit
	return f.expired, f.err
}

func (f *fakeReservations) PurgeCancelled(context.Context) (int64, error) {
	return f.purged, f.err
}

type fakeExpirer struct {
	calls []uuid.UUID
	fail  map[uuid.UUID]error
}

func (f *fakeExpirer) ExpireReservations(_ context.Context, orderID uuid.UUID) error {
	f.calls = append(f.calls, orderID)
	return f.fail[orderID]
}

func TestReservationReaperContinuesPastFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	source := &fakeReservations{expired: []uuid.UUID{a, b, c}}
	expirer := &fakeExpirer{fail: map[uuid.UUID]error{b: errors.New("db down")}}
	job, err := NewReservationReaperJob(ReservationReaperParams{
		Logger:    logger.Nop(),
		Source:    source,
		Orders:    expirer,
		BatchSize: 25,
	})
	if err != nil {
		t.Fatalf("NewReservationReaperJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Fatalf("expected 1 failure, got %d", n)
	}
	if len(expirer.calls) != 3 {
		t.Fatalf("expected every order attempted, got %d", len(expirer.calls))
	}
	if source.limit != 25 {
		t.Fatalf("expected batch 25, got %d", source.limit)
	}
}

func TestReservationReaperDefaultsBatch(t *testing.T) {
	source := &fakeReservations{}
	job, _ := NewReservationReaperJob(ReservationReaperParams{Logger: logger.Nop(), Source: source, Orders: &fakeExpirer{}})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if source.limit != defaultReaperBatch {
		t.Fatalf("expected default batch, got %d", source.limit)
	}
}

func TestReservationPurgePropagatesError(t *testing.T) {
	job, err := NewReservationPurgeJob(ReservationPurgeParams{
		Logger: logger.Nop(),
		Purger: &fakeReservations{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewReservationPurgeJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingPurge struct {
	cutoff time.Time
	err    error
}

func (p *recordingPurge) purge(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 3, p.err
}

func TestRetentionJobUsesCutoff(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	rec := &recordingPurge{}
	jobIface, err := NewRetentionJob(RetentionJobParams{
		Name:      "outbox-retention",
		Logger:    logger.Nop(),
		DB:        passthroughTx{},
		Purge:     rec.purge,
		Retention: 30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	job := jobIface.(*retentionJob)
	job.now = func() time.Time { return now }

	if job.Name() != "outbox-retention" {
		t.Fatalf("unexpected name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.AddDate(0, 0, -30); !rec.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, rec.cutoff)
	}
}

func TestRetentionJobPropagatesError(t *testing.T) {
	rec := &recordingPurge{err: errors.New("boom")}
	job, err := NewRetentionJob(RetentionJobParams{
		Name:      "notification-cleanup",
		Logger:    logger.Nop(),
		DB:        passthroughTx{},
		Purge:     rec.purge,
		Retention: 48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); !errors.Is(err, rec.err) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestNewRetentionJobRequiresRetention(t *testing.T) {
	_, err := NewRetentionJob(RetentionJobParams{
		Name:   "outbox-retention",
		Logger: logger.Nop(),
		DB:     passthroughTx{},
		Purge:  (&recordingPurge{}).purge,
	})
	if err == nil {
		t.Fatal("expected error for zero retention")
	}
}
