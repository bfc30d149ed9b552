package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
)

const journalRetentionDays = 90

type JournalRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository journalRetentionRepo
	Retention  int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type journalRetentionRepo interface {
	DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewJournalRetentionJob purges dispatch attempts older than the retention window in days.
func NewJournalRetentionJob(params JournalRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("journal repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = journalRetentionDays
	}
	return &journalRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type journalRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      journalRetentionRepo
	retention int
	now       func() time.Time
}

func (j *journalRetentionJob) Name() string { return "journal-retention" }

func (j *journalRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "journal retention cleanup complete")
	return nil
}
