package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
)

type fakeDeadLetters struct {
	rows  []models.OutboxDLQ
	err   error
	since time.Time
	limit int
}

func (f *fakeDeadLetters) FailedSince(_ context.Context, since time.Time, limit int) ([]models.OutboxDLQ, error) {
	f.since, f.limit = since, limit
	return f.rows, f.err
}

func TestOutboxDLQWatchJobLooksBackOneWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reader := &fakeDeadLetters{rows: []models.OutboxDLQ{
		{EventID: uuid.New(), ErrorReason: enums.OutboxDLQReasonMaxAttempts},
		{EventID: uuid.New(), ErrorReason: enums.OutboxDLQReasonNonRetryable},
	}}
	job, err := NewOutboxDLQWatchJob(nil, reader, time.Hour)
	require.NoError(t, err)
	job.(*outboxDLQWatchJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.True(t, reader.since.Equal(now.Add(-time.Hour)))
	require.Equal(t, dlqWatchSampleSize, reader.limit)
}

func TestOutboxDLQWatchJobPropagatesReadError(t *testing.T) {
	job, err := NewOutboxDLQWatchJob(nil, &fakeDeadLetters{err: errors.New("timeout")}, 0)
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "timeout")

	_, err = NewOutboxDLQWatchJob(nil, nil, time.Hour)
	require.Error(t, err)
}
