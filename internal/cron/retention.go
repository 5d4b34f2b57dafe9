package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PurgeFunc deletes whatever aged out before cutoff and reports the count.
type PurgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type RetentionJobParams struct {
	Name      string
	Logger    *logger.Logger
	DB        txRunner
	Purge     PurgeFunc
	Retention time.Duration
}

// NewRetentionJob runs Purge in one transaction with cutoff = now-Retention.
// Used for published outbox rows and read notifications.
func NewRetentionJob(p RetentionJobParams) (Job, error) {
	switch {
	case p.Name == "":
		return nil, errors.New("retention job name required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Purge == nil:
		return nil, fmt.Errorf("%s: purge func required", p.Name)
	case p.Retention <= 0:
		return nil, fmt.Errorf("%s: retention must be positive", p.Name)
	}
	return &retentionJob{params: p, now: time.Now}, nil
}

type retentionJob struct {
	params RetentionJobParams
	now    func() time.Time
}

func (j *retentionJob) Name() string { return j.params.Name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.params.Retention)
	var deleted int64
	err := j.params.DB.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.params.Purge(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.params.Name, err)
	}
	logg := j.params.Logger
	logg.Info(logg.WithFields(ctx, map[string]any{
		"job":          j.params.Name,
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "retention purge complete")
	return nil
}
