package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

// ActorRef is whoever caused the event: the user for self-service moves,
// staff for reviews and allocations, service for automated rewards.
type ActorRef struct {
	UserID uuid.UUID       `json:"userId"`
	Role   enums.ActorRole `json:"role,omitempty"`
}

// PayloadEnvelope is what lands in outbox_events.payload_json and, unchanged,
// in the Pub/Sub message body. EventID equals the outbox row id so consumers
// and the dead-letter table agree on identity.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
