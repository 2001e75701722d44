package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/noor-academy/lessonledger/pkg/config"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
// Money movements go to the ledger topic, tier changes to the tiers topic and
// settlement to the earnings topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.LedgerTopic == "" {
		return nil, fmt.Errorf("ledger topic is required")
	}
	if cfg.TiersTopic == "" {
		return nil, fmt.Errorf("tiers topic is required")
	}
	if cfg.EarningsTopic == "" {
		return nil, fmt.Errorf("earnings topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventPurchaseRecorded,
			AggregateType:  enums.AggregateLedgerEntry,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() any { return &payloads.PurchaseRecordedEvent{} },
		},
		{
			EventType:      enums.EventCreditsTransferred,
			AggregateType:  enums.AggregateCreditTransfer,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() any { return &payloads.CreditsTransferredEvent{} },
		},
		{
			EventType:      enums.EventSadaqahDonated,
			AggregateType:  enums.AggregateSadaqah,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() any { return &payloads.SadaqahDonatedEvent{} },
		},
		{
			EventType:      enums.EventSadaqahAllocated,
			AggregateType:  enums.AggregateSadaqah,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() any { return &payloads.SadaqahAllocatedEvent{} },
		},
		{
			EventType:      enums.EventReferralCompleted,
			AggregateType:  enums.AggregateReferral,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() any { return &payloads.ReferralCompletedEvent{} },
		},
		{
			EventType:      enums.EventReferralRewardGranted,
			AggregateType:  enums.AggregateReferral,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() any { return &payloads.ReferralRewardGrantedEvent{} },
		},
	} {
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventTeacherTierPromoted,
			AggregateType:  enums.AggregateTeacher,
			Topic:          cfg.TiersTopic,
			PayloadFactory: func() any { return &payloads.TeacherTierPromotedEvent{} },
		},
		{
			EventType:      enums.EventTierApplicationDecided,
			AggregateType:  enums.AggregateTeacher,
			Topic:          cfg.TiersTopic,
			PayloadFactory: func() any { return &payloads.TierApplicationDecidedEvent{} },
		},
	} {
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventPayoutRequested,
			AggregateType:  enums.AggregateTeacherPayout,
			Topic:          cfg.EarningsTopic,
			PayloadFactory: func() any { return &payloads.PayoutRequestedEvent{} },
		},
		{
			EventType:      enums.EventPayoutCompleted,
			AggregateType:  enums.AggregateTeacherPayout,
			Topic:          cfg.EarningsTopic,
			PayloadFactory: func() any { return &payloads.PayoutCompletedEvent{} },
		},
		{
			EventType:      enums.EventEarningRefunded,
			AggregateType:  enums.AggregateTeacherEarning,
			Topic:          cfg.EarningsTopic,
			PayloadFactory: func() any { return &payloads.EarningRefundedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Topics returns every distinct topic the registry publishes to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		out = append(out, desc.Topic)
	}
	return out
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate id missing for %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch for %s: got %s want %s", event.EventType, event.AggregateType, desc.AggregateType))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
