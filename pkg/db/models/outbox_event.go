package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// OutboxEvent is an offer or payment event written in the same transaction
// as the state change. The publisher sets PublishedAt once Pub/Sub acks it.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// Parked is the DLQ row for an event that will not be retried.
func (e OutboxEvent) Parked(reason enums.OutboxDLQErrorReason, message string, attempts int) OutboxDLQ {
	return OutboxDLQ{
		ID:            uuid.New(),
		EventID:       e.ID,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       e.Payload,
		Reason:        reason,
		Message:       message,
		Attempts:      attempts,
	}
}
