package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			paidEvent(t, "event-one", 0),
			paidEvent(t, "event-two", 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: paidResolved()}, nil)

	result, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if result.claimed != 2 || result.retried != 1 {
		t.Fatalf("unexpected batch result %+v", result)
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestDispatchSetsRoutingAttributes(t *testing.T) {
	event := paidEvent(t, "attrs", 0)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: paidResolved()}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["event_type"] != string(enums.EventOfferPaid) {
		t.Fatalf("unexpected event_type attribute %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute %q", attrs["aggregate_id"])
	}
	if attrs["event_id"] == "" {
		t.Fatalf("expected event_id attribute")
	}
}

func TestServiceProcessBatchParksNonRetryable(t *testing.T) {
	event := paidEvent(t, "nonretryable", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	service := newTestService(t, repo, &fakePublisher{}, reg, nil)

	result, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if result.claimed != 1 || result.retried != 0 {
		t.Fatalf("parked row must not count as a retry, got %+v", result)
	}
	if got := len(repo.terminal); got != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected event parked, got %v", repo.terminal)
	}
	if repo.reasons[0] != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected terminal reason %q", repo.reasons[0])
	}
	if len(repo.published) != 0 {
		t.Fatalf("non-retryable event must not be marked published")
	}
}

func TestServiceProcessBatchParksOnMaxAttempts(t *testing.T) {
	event := paidEvent(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: paidResolved()}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := len(repo.terminal); got != 1 {
		t.Fatalf("expected terminal mark, got %d", got)
	}
	if repo.reasons[0] != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected terminal reason %q", repo.reasons[0])
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row should not also be marked failed")
	}
}

func TestServiceProcessBatchParksWithoutPublisher(t *testing.T) {
	event := paidEvent(t, "no-topic", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, nil, &fakeRegistry{resolved: paidResolved()}, nil)
	service.publisherFor = func(string) publisher { return nil }

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.reasons[0] != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected missing publisher to park the row, got %v %v", repo.terminal, repo.reasons)
	}
}

func TestServiceRunBacksOffWhileRowsKeepFailing(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{paidEvent(t, "flaky", 0)}}
	pub := &fakePublisher{fallback: fakePublishResult{err: errors.New("unavailable")}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: paidResolved()}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// The first retry waits at least two poll intervals.
	if got := len(pub.sent); got == 0 || got > 2 {
		t.Fatalf("expected one or two publish attempts, got %d", got)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("retrying rows must not be parked, got %v", repo.terminal)
	}
}

func TestServiceProcessBatchEmpty(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{resolved: paidResolved()}, nil)

	result, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if result != (batchResult{}) {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestWithJitterStaysInWindow(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := withJitter(time.Second)
		if got < time.Second || got >= time.Second+jitterWindow {
			t.Fatalf("jitter out of window: %v", got)
		}
	}
	if withJitter(0) != 0 {
		t.Fatal("zero duration should not gain jitter")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("unexpected first backoff %v", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap, got %v", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub *fakePublisher, reg registryResolver, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(_ string) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func paidEvent(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOfferPaid,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(tb, eventID),
		AttemptCount:  attempts,
	}
}

func paidResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "notification-topic",
			EventType:     enums.EventOfferPaid,
			AggregateType: enums.AggregateTransaction,
		},
		Payload: &payloads.OfferPaidEvent{},
	}
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	reasons   []enums.OutboxDLQErrorReason
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, event.ID)
	f.reasons = append(f.reasons, reason)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	fallback publishResult
	sent     []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return f.fallback
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
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
	return &resolved, f.err
}
