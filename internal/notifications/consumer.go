package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/metrics"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/projectmarket-backend/pkg/sendgrid"
)

// ConsumerName scopes the idempotency keys written by this worker.
const ConsumerName = "notification-worker"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type payloadDecoder interface {
	DecodePayload(eventType enums.OutboxEventType, data json.RawMessage) (interface{}, error)
}

type offerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
}

type projectReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type profileReader interface {
	FindByIDs(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.User, error)
}

type ConsumerParams struct {
	Subscription receiver
	Registry     payloadDecoder
	Idempotency  *idempotency.Guard
	Offers       offerReader
	Projects     projectReader
	Profiles     profileReader
	Sender       sendgrid.Sender
	Logger       *logger.Logger
	Metrics      *metrics.Marketplace
}

// Consumer turns offer lifecycle events into transactional email.
type Consumer struct {
	subscription receiver
	registry     payloadDecoder
	idempotency  *idempotency.Guard
	offers       offerReader
	projects     projectReader
	profiles     profileReader
	sender       sendgrid.Sender
	logg         *logger.Logger
	metrics      *metrics.Marketplace
}

// NewConsumer builds the offer notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Offers == nil || params.Projects == nil || params.Profiles == nil {
		return nil, fmt.Errorf("offer, project and profile readers required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		registry:     params.Registry,
		idempotency:  params.Idempotency,
		offers:       params.Offers,
		projects:     params.Projects,
		profiles:     params.Profiles,
		sender:       params.Sender,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Attributes, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
	sent int
}

func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) processResult {
	rawType := attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unsupported event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, eventID.String())

	claimed, err := c.idempotency.Claim(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	payload, err := c.registry.DecodePayload(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	messages, err := c.compose(ctx, eventType, payload)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "notification subject no longer exists")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to load notification context", err)
		if delErr := c.idempotency.Release(ctx, ConsumerName, eventID); delErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency claim", delErr)
		}
		return processResult{nack: true}
	}

	sent, sendErr := c.deliver(ctx, messages)
	if sendErr != nil {
		c.logg.Error(logCtx, "some notifications were not delivered", sendErr)
	}
	if sent > 0 {
		c.logg.Info(logCtx, fmt.Sprintf("%d notification(s) sent", sent))
	}
	return processResult{ack: true, sent: sent}
}

// deliver attempts every message; one failed send never blocks the others.
func (c *Consumer) deliver(ctx context.Context, messages []notification) (int, error) {
	var (
		sent int
		errs error
	)
	for _, n := range messages {
		if err := c.sender.Send(ctx, n.message); err != nil {
			c.metrics.IncNotification(n.template, "failed")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", n.template, err))
			continue
		}
		c.metrics.IncNotification(n.template, "sent")
		sent++
	}
	return sent, errs
}

func (c *Consumer) compose(ctx context.Context, eventType enums.OutboxEventType, payload interface{}) ([]notification, error) {
	switch p := payload.(type) {
	case *payloads.OfferPaidEvent:
		return c.composePaid(ctx, p)
	case *payloads.OfferDecisionEvent:
		return c.composeDecision(ctx, eventType, p)
	default:
		return nil, nil
	}
}

func (c *Consumer) composePaid(ctx context.Context, p *payloads.OfferPaidEvent) ([]notification, error) {
	offer, err := c.offers.FindByID(ctx, p.OfferID)
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}
	project, err := c.projects.FindByID(ctx, offer.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	people, err := c.profiles.FindByIDs(ctx, offer.BuyerID, project.SellerID)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	amount := p.AmountCents
	currency := p.Currency
	if amount <= 0 {
		amount, currency = offer.AmountCents, offer.Currency
	}

	var out []notification
	if buyer, ok := people[offer.BuyerID]; ok {
		out = append(out, paidBuyerNotification(buyer, *project, amount, currency))
	}
	if seller, ok := people[project.SellerID]; ok {
		out = append(out, paidSellerNotification(seller, *project, amount, currency))
	}
	return out, nil
}

func (c *Consumer) composeDecision(ctx context.Context, eventType enums.OutboxEventType, p *payloads.OfferDecisionEvent) ([]notification, error) {
	project, err := c.projects.FindByID(ctx, p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	people, err := c.profiles.FindByIDs(ctx, p.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	buyer, ok := people[p.BuyerID]
	if !ok {
		return nil, nil
	}

	switch eventType {
	case enums.EventOfferAccepted:
		return []notification{acceptedNotification(buyer, *project, p.AmountCents, p.Currency)}, nil
	case enums.EventOfferRejected:
		return []notification{rejectedNotification(buyer, *project, p.AmountCents, p.Currency)}, nil
	default:
		return nil, nil
	}
}
