package cron

import (
	"context"
	"fmt"

	"github.com/noor-academy/lessonledger/pkg/logger"
)

type earningsClearer interface {
	ClearMatured(ctx context.Context) (int64, error)
}

// NewEarningsClearingJob moves held earnings past their clear date to
// cleared so teachers can request a payout for them.
func NewEarningsClearingJob(logg *logger.Logger, clearer earningsClearer) (Job, error) {
	if clearer == nil {
		return nil, fmt.Errorf("earnings service required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &earningsClearingJob{logg: logg, clearer: clearer}, nil
}

type earningsClearingJob struct {
	logg    *logger.Logger
	clearer earningsClearer
}

func (j *earningsClearingJob) Name() string { return "earnings-clearing" }

func (j *earningsClearingJob) Run(ctx context.Context) error {
	cleared, err := j.clearer.ClearMatured(ctx)
	if err != nil {
		return fmt.Errorf("clear matured earnings: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "earnings_cleared", cleared), "earnings clearing complete")
	return nil
}
