package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped on new envelopes. Readers refuse newer versions.
const SchemaVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what the publisher
// sends as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = SchemaVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	env.OccurredAt = env.OccurredAt.UTC()
	return env, nil
}

// DecodeEnvelope parses a stored or published envelope.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > SchemaVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if len(env.Data) == 0 {
		return PayloadEnvelope{}, errors.New("envelope has no data")
	}
	return env, nil
}
