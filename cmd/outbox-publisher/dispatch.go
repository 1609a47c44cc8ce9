package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeTerminal
)

// delivery tracks one outbox row through a batch.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	outcome  outcome
	reason   enums.OutboxDLQErrorReason
	err      error
}

func (d *delivery) topic() string {
	if d.resolved == nil {
		return ""
	}
	return d.resolved.Descriptor.Topic
}

func (d *delivery) park(reason enums.OutboxDLQErrorReason, err error) {
	d.outcome, d.reason, d.err = outcomeTerminal, reason, err
}

// dispatch hands every resolvable row to its publisher before waiting on any
// result, so one slow topic does not serialize the batch.
func (s *Service) dispatch(ctx context.Context, events []models.OutboxEvent) []*delivery {
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	deliveries := make([]*delivery, 0, len(events))
	for _, event := range events {
		d := &delivery{event: event}
		deliveries = append(deliveries, d)

		resolved, err := s.registry.Resolve(event)
		if err != nil {
			d.park(enums.OutboxDLQReasonNonRetryable, err)
			continue
		}
		d.resolved = resolved

		pub := s.publisherFor(d.topic())
		if pub == nil {
			d.park(enums.OutboxDLQReasonNonRetryable, fmt.Errorf("publisher not configured for topic %s", d.topic()))
			continue
		}
		if d.result = pub.Publish(publishCtx, message(event, resolved)); d.result == nil {
			d.park(enums.OutboxDLQReasonNonRetryable, fmt.Errorf("publisher returned nil for topic %s", d.topic()))
		}
	}

	for _, d := range deliveries {
		if d.result == nil {
			continue
		}
		_, err := d.result.Get(publishCtx)
		s.classify(d, err)
	}
	return deliveries
}

func (s *Service) classify(d *delivery, err error) {
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		d.outcome = outcomePublished
	case errors.As(err, &nonRetryable):
		d.park(enums.OutboxDLQReasonNonRetryable, err)
	case d.event.AttemptCount+1 >= s.maxAttempts:
		d.park(enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	default:
		d.outcome, d.err = outcomeRetry, err
	}
}

// message carries routing attributes so subscribers can filter without
// decoding the body.
func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, d *delivery) error {
	eventType := string(d.event.EventType)
	logCtx := s.logg.WithFields(ctx, s.fields(d))

	switch d.outcome {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		s.metrics.IncOutbox(eventType, "published")
		s.logg.Info(logCtx, "outbox event published")

	case outcomeRetry:
		s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed")
		s.metrics.IncOutbox(eventType, "retry")
		if err := s.repo.MarkFailedTx(tx, d.event.ID, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", d.event.ID, err)
		}

	case outcomeTerminal:
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"error":           d.err.Error(),
			"terminal_reason": d.reason,
		}), "outbox event will not be retried")
		s.metrics.IncOutbox(eventType, string(d.reason))
		if err := s.repo.MarkTerminalTx(tx, d.event, d.reason, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", d.event.ID, err)
		}
	}
	return nil
}

func (s *Service) fields(d *delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
	}
	if d.outcome == outcomeRetry {
		fields["attempt_count"] = d.event.AttemptCount + 1
	}
	if d.resolved != nil {
		fields["topic"] = d.topic()
		if env := d.resolved.Envelope; env.EventID != "" {
			fields["event_id"] = env.EventID
			fields["occurred_at"] = env.OccurredAt.Format(time.RFC3339Nano)
		}
	}
	return fields
}

func wrapPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := g.p.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return res
}
