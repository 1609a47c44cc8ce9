package offers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/internal/repo"
	"github.com/angelmondragon/projectmarket-backend/internal/users"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/metrics"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/projectmarket-backend/pkg/pagination"
	pkgstripe "github.com/angelmondragon/projectmarket-backend/pkg/stripe"
)

const (
	centsPerUnit          = 100
	defaultGatewayTimeout = 5 * time.Second
	cancelTimeout         = 5 * time.Second

	msgAlreadyProcessed   = "offer already processed"
	msgSellerNotConnected = "seller not connected to payment gateway"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ListingStore resolves project ownership.
type ListingStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListIDsBySeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error)
}

// ProfileStore loads marketplace profiles.
type ProfileStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service runs the offer lifecycle: create, decide, read.
type Service interface {
	CreateOffer(ctx context.Context, callerID uuid.UUID, input CreateOfferInput) (*OfferDTO, error)
	ActOnOffer(ctx context.Context, callerID, offerID uuid.UUID, action enums.OfferAction) (*ActionResult, error)
	ListOffers(ctx context.Context, callerID uuid.UUID, query ListQuery) (*OfferListDTO, error)
	GetOffer(ctx context.Context, callerID, offerID uuid.UUID) (*OfferDTO, error)
}

// ServiceParams wires the offer service.
type ServiceParams struct {
	TX               txRunner
	Offers           Repository
	Listings         ListingStore
	Profiles         ProfileStore
	Gateway          Gateway
	Outbox           outbox.Emitter
	Logger           *logger.Logger
	Metrics          *metrics.Marketplace
	FeeBasisPoints   int
	Currency         string
	GatewayTimeout   time.Duration
	DefaultPageLimit int
	MaxPageLimit     int
	Clock            func() time.Time
}

type service struct {
	tx             txRunner
	offers         Repository
	listings       ListingStore
	profiles       ProfileStore
	gateway        Gateway
	outbox         outbox.Emitter
	logg           *logger.Logger
	metrics        *metrics.Marketplace
	feeBasisPoints int
	currency       string
	gatewayTimeout time.Duration
	defaultLimit   int
	maxLimit       int
	now            func() time.Time
}

// NewService validates dependencies and applies defaults.
func NewService(params ServiceParams) (Service, error) {
	if params.TX == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listing store required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.FeeBasisPoints < 0 || params.FeeBasisPoints > 10000 {
		return nil, fmt.Errorf("fee basis points out of range: %d", params.FeeBasisPoints)
	}

	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	timeout := params.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	return &service{
		tx:             params.TX,
		offers:         params.Offers,
		listings:       params.Listings,
		profiles:       params.Profiles,
		gateway:        params.Gateway,
		outbox:         params.Outbox,
		logg:           params.Logger,
		metrics:        params.Metrics,
		feeBasisPoints: params.FeeBasisPoints,
		currency:       currency,
		gatewayTimeout: timeout,
		defaultLimit:   params.DefaultPageLimit,
		maxLimit:       params.MaxPageLimit,
		now:            clock,
	}, nil
}

func (s *service) CreateOffer(ctx context.Context, callerID uuid.UUID, input CreateOfferInput) (*OfferDTO, error) {
	if callerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if input.ProjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "projectId is required")
	}
	if input.Amount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive integer")
	}
	if input.Amount > math.MaxInt64/centsPerUnit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount is too large")
	}

	project, err := s.listings.FindByID(ctx, input.ProjectID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project")
	}

	buyer, err := s.loadProfile(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !buyer.CanBuy() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account cannot make offers")
	}
	if project.SellerID == callerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot offer on own project")
	}

	now := s.now().UTC()
	offer := &models.Offer{
		ID:          uuid.New(),
		BuyerID:     callerID,
		ProjectID:   project.ID,
		AmountCents: input.Amount * centsPerUnit,
		Currency:    s.currency,
		Status:      enums.OfferStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		s.metrics.IncOffer("create", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create offer")
	}
	s.metrics.IncOffer("create", "ok")

	if s.logg != nil {
		logCtx := s.logg.WithOfferID(ctx, offer.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"project_id":   project.ID.String(),
			"amount_cents": offer.AmountCents,
		})
		s.logg.Info(logCtx, "offer created")
	}

	dto := FromModel(*offer)
	return &dto, nil
}

func (s *service) ActOnOffer(ctx context.Context, callerID, offerID uuid.UUID, action enums.OfferAction) (*ActionResult, error) {
	if callerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if offerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id is required")
	}
	if !action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action must be accept or reject")
	}

	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offer")
	}

	project, err := s.listings.FindByID(ctx, offer.ProjectID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project")
	}
	if project.SellerID != callerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can act on this offer")
	}
	if offer.Status.IsTerminal() {
		s.metrics.IncOffer(string(action), "conflict")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, msgAlreadyProcessed)
	}

	if s.logg != nil {
		ctx = s.logg.WithOfferID(ctx, offer.ID.String())
	}

	if action == enums.OfferActionReject {
		return s.reject(ctx, offer, project)
	}
	return s.accept(ctx, offer, project)
}

func (s *service) reject(ctx context.Context, offer *models.Offer, project *models.Project) (*ActionResult, error) {
	now := s.now().UTC()
	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.offers.WithTx(tx).UpdateIfStatus(ctx, offer.ID, enums.OfferStatusPending, map[string]any{
			"status":      enums.OfferStatusRejected,
			"rejected_at": now,
			"updated_at":  now,
		})
		if err != nil || !ok {
			return err
		}
		applied = true
		return s.outbox.Emit(ctx, tx, decisionEvent(enums.EventOfferRejected, offer, project, 0, "", now))
	})
	if err != nil {
		s.metrics.IncOffer("reject", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject offer")
	}
	if !applied {
		s.metrics.IncOffer("reject", "conflict")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, msgAlreadyProcessed)
	}

	s.metrics.IncOffer("reject", "ok")
	if s.logg != nil {
		s.logg.Info(ctx, "offer rejected")
	}
	return &ActionResult{Success: true}, nil
}

func (s *service) accept(ctx context.Context, offer *models.Offer, project *models.Project) (*ActionResult, error) {
	// seller stays nil when the profile is missing, which reads as not connected
	seller, err := s.loadProfile(ctx, project.SellerID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		return nil, err
	}
	if !seller.PaymentsConnected() {
		s.metrics.IncOffer("accept", "precondition")
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, msgSellerNotConnected)
	}

	fee := PlatformFee(offer.AmountCents, s.feeBasisPoints)
	intent, err := s.createIntent(ctx, offer, seller.StripeAccountID, fee)
	if err != nil {
		s.metrics.IncOffer("accept", "gateway_error")
		if s.logg != nil {
			s.logg.Error(ctx, "payment intent creation failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	now := s.now().UTC()
	bps := s.feeBasisPoints
	var applied bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.offers.WithTx(tx).UpdateIfStatus(ctx, offer.ID, enums.OfferStatusPending, map[string]any{
			"status":            enums.OfferStatusAccepted,
			"payment_reference": intent.ID,
			"fee_cents":         fee,
			"fee_basis_points":  bps,
			"accepted_at":       now,
			"updated_at":        now,
		})
		if err != nil || !ok {
			return err
		}
		applied = true
		return s.outbox.Emit(ctx, tx, decisionEvent(enums.EventOfferAccepted, offer, project, fee, intent.ID, now))
	})
	if err != nil {
		// the intent is left open; a retry reuses it through the idempotency key
		s.metrics.IncOffer("accept", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accept offer")
	}
	if !applied {
		s.metrics.IncOffer("accept", "conflict")
		s.releaseIntent(ctx, offer.ID, intent.ID)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, msgAlreadyProcessed)
	}

	s.metrics.IncOffer("accept", "ok")
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_reference": intent.ID,
			"fee_cents":         fee,
		})
		s.logg.Info(logCtx, "offer accepted")
	}
	return &ActionResult{ClientSecret: intent.ClientSecret}, nil
}

func (s *service) createIntent(ctx context.Context, offer *models.Offer, destination string, fee int64) (*pkgstripe.PaymentIntent, error) {
	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	start := time.Now()
	intent, err := s.gateway.CreatePaymentIntent(gctx, pkgstripe.PaymentIntentRequest{
		AmountCents:        offer.AmountCents,
		FeeCents:           fee,
		Currency:           offer.Currency,
		DestinationAccount: destination,
		IdempotencyKey:     acceptIdempotencyKey(offer.ID, s.feeBasisPoints, destination),
		Metadata: map[string]string{
			MetadataOfferID:   offer.ID.String(),
			MetadataProjectID: offer.ProjectID.String(),
			MetadataBuyerID:   offer.BuyerID.String(),
		},
	})
	outcome := "ok"
	if err == nil && (intent == nil || intent.ID == "") {
		err = errors.New("gateway returned an empty payment intent")
	}
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveGateway("create_payment_intent", outcome, time.Since(start))
	return intent, err
}

// releaseIntent cancels an intent created by a request that lost the race,
// unless the winner was a concurrent accept sharing the same intent.
func (s *service) releaseIntent(ctx context.Context, offerID uuid.UUID, intentID string) {
	current, err := s.offers.FindByID(ctx, offerID)
	if err == nil && current.PaymentReference != nil && *current.PaymentReference == intentID {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	start := time.Now()
	cancelErr := s.gateway.CancelPaymentIntent(cctx, intentID)
	outcome := "ok"
	if cancelErr != nil {
		outcome = "error"
	}
	s.metrics.ObserveGateway("cancel_payment_intent", outcome, time.Since(start))
	if cancelErr != nil && s.logg != nil {
		logCtx := s.logg.WithPaymentReference(ctx, intentID)
		s.logg.Warn(s.logg.WithField(logCtx, "error", cancelErr.Error()), "orphaned payment intent not cancelled")
	}
}

func (s *service) ListOffers(ctx context.Context, callerID uuid.UUID, query ListQuery) (*OfferListDTO, error) {
	if callerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimitWithin(query.Limit, s.defaultLimit, s.maxLimit)

	filter := ListFilter{BuyerID: &callerID}
	if query.Received {
		projectIDs, err := s.listings.ListIDsBySeller(ctx, callerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller projects")
		}
		if len(projectIDs) == 0 {
			return &OfferListDTO{Offers: []OfferDTO{}}, nil
		}
		filter = ListFilter{ProjectIDs: projectIDs}
	}

	rows, err := s.offers.List(ctx, filter, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list offers")
	}

	rows, next := pagination.Trim(rows, limit, func(o models.Offer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	result := &OfferListDTO{Offers: make([]OfferDTO, 0, len(rows)), Cursor: next}
	for _, row := range rows {
		result.Offers = append(result.Offers, FromModel(row))
	}
	return result, nil
}

func (s *service) GetOffer(ctx context.Context, callerID, offerID uuid.UUID) (*OfferDTO, error) {
	if callerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offer")
	}
	if offer.BuyerID != callerID {
		project, err := s.listings.FindByID(ctx, offer.ProjectID)
		if err != nil && !repo.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project")
		}
		if project == nil || project.SellerID != callerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "offer belongs to another account")
		}
	}
	dto := FromModel(*offer)
	return &dto, nil
}

func (s *service) loadProfile(ctx context.Context, id uuid.UUID) (*users.Profile, error) {
	user, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}
	return users.FromModel(user), nil
}

func decisionEvent(eventType enums.OutboxEventType, offer *models.Offer, project *models.Project, fee int64, paymentRef string, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Actor:         &outbox.ActorRef{UserID: project.SellerID, Role: "seller"},
		OccurredAt:    at,
		Data: payloads.OfferDecisionEvent{
			OfferID:          offer.ID,
			ProjectID:        offer.ProjectID,
			BuyerID:          offer.BuyerID,
			SellerID:         project.SellerID,
			AmountCents:      offer.AmountCents,
			Currency:         offer.Currency,
			FeeCents:         fee,
			PaymentReference: paymentRef,
			DecidedAt:        at,
		},
	}
}
