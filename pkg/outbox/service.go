package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
)

// DomainEvent is a state change the offers and payment flows announce.
// Data is the typed payload from pkg/outbox/payloads.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	if !e.EventType.IsValid() {
		return fmt.Errorf("unknown outbox event type %q", e.EventType)
	}
	if !e.AggregateType.IsValid() {
		return fmt.Errorf("unknown outbox aggregate type %q", e.AggregateType)
	}
	if e.AggregateID == uuid.Nil {
		return errors.New("outbox aggregate id required")
	}
	return nil
}

// Emitter queues domain events inside the caller's transaction so the event
// exists only if the state change commits.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if err := event.validate(); err != nil {
		return err
	}

	envelope, err := newEnvelope(event, s.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       body,
	}); err != nil {
		return err
	}

	if s.logg != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		})
		s.logg.Info(s.logg.WithEventID(ctx, envelope.EventID), "outbox event queued")
	}
	return nil
}
