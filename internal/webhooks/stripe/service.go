package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/internal/ledger"
	"github.com/angelmondragon/projectmarket-backend/internal/offers"
	"github.com/angelmondragon/projectmarket-backend/internal/repo"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/metrics"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/payloads"
)

const (
	outcomeSettled    = "settled"
	outcomeDuplicate  = "duplicate"
	outcomeIgnored    = "ignored"
	outcomeUnexpected = "unexpected"
	outcomeMalformed  = "malformed"
	outcomeError      = "error"
)

type offerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Ledger            ledger.Service
	Offers            offerReader
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.Marketplace
}

// Service settles verified gateway events into the payment ledger.
type Service struct {
	ledger   ledger.Service
	offers   offerReader
	outbox   outbox.Emitter
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.Marketplace
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Offers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "offer repo required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		ledger:   params.Ledger,
		offers:   params.Offers,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// HandleEvent acts on payment_intent.succeeded and acknowledges everything
// else. Only storage failures are returned, so the gateway redelivers.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			s.warn(ctx, "payment intent payload unreadable", err)
			s.metrics.IncWebhook(string(event.Type), outcomeMalformed)
			return nil
		}
		outcome, err := s.settle(ctx, event, &intent)
		s.metrics.IncWebhook(string(event.Type), outcome)
		return err
	default:
		s.metrics.IncWebhook(string(event.Type), outcomeIgnored)
		return nil
	}
}

func (s *Service) settle(ctx context.Context, event *stripe.Event, intent *stripe.PaymentIntent) (string, error) {
	ref := strings.TrimSpace(intent.ID)
	if ref == "" {
		s.warn(ctx, "payment intent without id", nil)
		return outcomeMalformed, nil
	}
	if s.logg != nil {
		ctx = s.logg.WithPaymentReference(ctx, ref)
	}

	offerID, err := uuid.Parse(strings.TrimSpace(intent.Metadata[offers.MetadataOfferID]))
	if err != nil || offerID == uuid.Nil {
		s.warn(ctx, "payment intent missing offer_id metadata", nil)
		return outcomeIgnored, nil
	}
	if s.logg != nil {
		ctx = s.logg.WithOfferID(ctx, offerID.String())
	}

	existing, err := s.ledger.Lookup(ctx, ref)
	if err != nil {
		return outcomeError, s.unavailable(ctx, err, "lookup ledger")
	}
	if existing != nil {
		return outcomeDuplicate, nil
	}

	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		if repo.IsNotFound(err) {
			s.warn(ctx, "payment for unknown offer", nil)
			return outcomeIgnored, nil
		}
		return outcomeError, s.unavailable(ctx, err, "load offer")
	}
	if !awaitingPayment(offer, ref) {
		s.warn(s.withField(ctx, "offer_status", offer.Status), "payment for offer that is not awaiting it", nil)
		return outcomeUnexpected, nil
	}
	if offer.AmountCents != intent.Amount {
		s.warn(s.withField(ctx, "intent_amount", intent.Amount), "payment amount differs from offer", nil)
	}

	currency := string(intent.Currency)
	if currency == "" {
		currency = offer.Currency
	}
	paidAt := time.Now().UTC()
	if event.Created > 0 {
		paidAt = time.Unix(event.Created, 0).UTC()
	}

	var recorded bool
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txn, created, err := s.ledger.RecordPayment(ctx, tx, ledger.RecordPaymentInput{
			OfferID:          offer.ID,
			PaymentReference: ref,
			AmountCents:      intent.Amount,
			Currency:         currency,
			GatewayEventID:   event.ID,
			OccurredAt:       paidAt,
		})
		if err != nil || !created {
			return err
		}
		recorded = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferPaid,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			OccurredAt:    paidAt,
			Data: payloads.OfferPaidEvent{
				OfferID:          offer.ID,
				TransactionID:    txn.ID,
				PaymentReference: ref,
				AmountCents:      txn.AmountCents,
				Currency:         txn.Currency,
				PaidAt:           paidAt,
			},
		})
	})
	if err != nil {
		return outcomeError, s.unavailable(ctx, err, "record payment")
	}
	if !recorded {
		return outcomeDuplicate, nil
	}

	if s.logg != nil {
		s.logg.Info(ctx, "payment settled")
	}
	return outcomeSettled, nil
}

// awaitingPayment reports whether offer is accepted and bound to ref.
func awaitingPayment(offer *models.Offer, ref string) bool {
	return offer.Status == enums.OfferStatusAccepted &&
		offer.PaymentReference != nil && *offer.PaymentReference == ref
}

func (s *Service) unavailable(ctx context.Context, err error, msg string) error {
	if s.logg != nil {
		s.logg.Error(s.withField(ctx, "db_error", pkgerrors.Dump(err)), msg, err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, msg)
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		ctx = s.logg.WithField(ctx, "error", err.Error())
	}
	s.logg.Warn(ctx, msg)
}

func (s *Service) withField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}
