package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/config"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/outbox/payloads"
	"github.com/noor-academy/lessonledger/pkg/outbox/registry"
	"github.com/noor-academy/lessonledger/pkg/pubsub"
)

func transferEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCreditsTransferred,
		AggregateType: enums.AggregateCreditTransfer,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t),
		AttemptCount:  attempts,
	}
}

func ledgerResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "ledger-events"},
		Payload:    &payloads.CreditsTransferredEvent{},
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first, second := transferEvent(t, 0), transferEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	recorder := &fakeRecorder{}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: ledgerResolved()}, &fakeDLQRepo{}, recorder, nil)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, repo.published)
	require.Equal(t, []string{"ledger-events"}, recorder.published)
	require.Equal(t, []string{"ledger-events"}, recorder.failed)

	require.Len(t, pub.messages, 2)
	require.Equal(t, first.AggregateID.String(), pub.messages[0].OrderingKey)
	require.Equal(t, string(enums.EventCreditsTransferred), pub.messages[1].Attributes["event_type"])
}

func TestProcessBatchReusesPublisherPerTopic(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{transferEvent(t, 0), transferEvent(t, 0)}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{}}}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: ledgerResolved()}, &fakeDLQRepo{}, nil, nil)

	created := 0
	svc.publisherFactory = func(topic string) publisher {
		require.Equal(t, "ledger-events", topic)
		created++
		return pub
	}

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Len(t, repo.published, 2)

	svc.stopPublishers()
	require.True(t, pub.stopped)
}

func TestProcessBatchDeadLettersUnresolvableRow(t *testing.T) {
	event := transferEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	recorder := &fakeRecorder{}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	svc := newTestService(t, repo, &fakePublisher{}, reg, dlq, recorder, nil)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Len(t, dlq.entries, 1)

	entry := dlq.entries[0]
	require.Equal(t, event.ID, entry.EventID)
	require.JSONEq(t, string(event.Payload), string(entry.Payload))
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	require.Equal(t, []string{string(enums.OutboxDLQReasonNonRetryable)}, recorder.dead)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := transferEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: ledgerResolved()}, dlq, nil, &config.OutboxConfig{
		BatchSize:   1,
		MaxAttempts: 2,
	})

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.Empty(t, repo.failed)
}

func TestProcessBatchEmpty(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil, nil)
	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestFailureBackoffDoublesUpToCap(t *testing.T) {
	b := failureBackoff(time.Second)
	for _, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, maxBackoff, maxBackoff} {
		got, stop := b.Next()
		require.False(t, stop)
		require.InDelta(t, float64(want), float64(got), float64(jitterWindow))
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, recorder publishRecorder, override *config.OutboxConfig) *Service {
	t.Helper()
	cfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		cfg = *override
	}
	params := ServiceParams{
		Outbox:           cfg,
		Logger:           logger.Nop(),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		DLQRepository:    dlq,
		PublisherFactory: func(string) publisher { return pub },
	}
	if recorder != nil {
		params.Metrics = recorder
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func mustEnvelopePayload(t *testing.T) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error                 { return nil }
func (fakePubSubClient) OrderedPublisher(string) pubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	stopped  bool
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func (f *fakePublisher) Stop() { f.stopped = true }

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "msg-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeRecorder struct {
	published, failed, dead []string
}

func (f *fakeRecorder) IncPublished(topic string)     { f.published = append(f.published, topic) }
func (f *fakeRecorder) IncFailed(topic string)        { f.failed = append(f.failed, topic) }
func (f *fakeRecorder) IncDeadLettered(reason string) { f.dead = append(f.dead, reason) }
