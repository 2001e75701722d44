package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/logger"
)

const dlqWatchSampleSize = 20

type deadLetterReader interface {
	FailedSince(ctx context.Context, since time.Time, limit int) ([]models.OutboxDLQ, error)
}

// NewOutboxDLQWatchJob surfaces events dead-lettered during the last window
// as a warning so remediation does not depend on someone querying the table.
func NewOutboxDLQWatchJob(logg *logger.Logger, reader deadLetterReader, window time.Duration) (Job, error) {
	if reader == nil {
		return nil, fmt.Errorf("dlq reader required")
	}
	if window <= 0 {
		window = defaultInterval
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &outboxDLQWatchJob{logg: logg, reader: reader, window: window, now: time.Now}, nil
}

type outboxDLQWatchJob struct {
	logg   *logger.Logger
	reader deadLetterReader
	window time.Duration
	now    func() time.Time
}

func (j *outboxDLQWatchJob) Name() string { return "outbox-dlq-watch" }

func (j *outboxDLQWatchJob) Run(ctx context.Context) error {
	rows, err := j.reader.FailedSince(ctx, j.now().UTC().Add(-j.window), dlqWatchSampleSize)
	if err != nil {
		return fmt.Errorf("read dead letters: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	reasons := make(map[string]int, 2)
	eventIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		reasons[string(row.ErrorReason)]++
		eventIDs = append(eventIDs, row.EventID.String())
	}
	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"dead_letters": len(rows),
		"capped":       len(rows) == dlqWatchSampleSize,
		"reasons":      reasons,
		"event_ids":    eventIDs,
	}), "outbox events dead-lettered since last cycle")
	return nil
}
