package offers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/internal/listings"
	"github.com/angelmondragon/projectmarket-backend/internal/testsupport/sqlitedb"
	"github.com/angelmondragon/projectmarket-backend/internal/users"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/projectmarket-backend/pkg/stripe"
)

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type fakeGateway struct {
	mu        sync.Mutex
	requests  []pkgstripe.PaymentIntentRequest
	cancelled []string
	err       error
	intentID  string
	onCreate  func()
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, req pkgstripe.PaymentIntentRequest) (*pkgstripe.PaymentIntent, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.err != nil {
		return nil, f.err
	}
	id := f.intentID
	if id == "" {
		id = "pi_test_1"
	}
	return &pkgstripe.PaymentIntent{ID: id, ClientSecret: id + "_secret_abc"}, nil
}

func (f *fakeGateway) CancelPaymentIntent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

type fixture struct {
	db        *gorm.DB
	svc       Service
	offers    Repository
	gateway   *fakeGateway
	buyer     models.User
	seller    models.User
	unlinked  models.User
	project   models.Project
	unlinkedP models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := sqlitedb.Open(t)

	acct := "acct_seller"
	f := &fixture{
		db:       db,
		gateway:  &fakeGateway{},
		buyer:    models.User{ID: uuid.New(), Email: "buyer@example.com", FirstName: "Bea", AccountType: enums.AccountTypeBuyer, IsActive: true},
		seller:   models.User{ID: uuid.New(), Email: "seller@example.com", FirstName: "Sol", AccountType: enums.AccountTypeHybrid, StripeAccountID: &acct, IsActive: true},
		unlinked: models.User{ID: uuid.New(), Email: "new@example.com", FirstName: "Nia", AccountType: enums.AccountTypeSeller, IsActive: true},
	}
	f.project = models.Project{ID: uuid.New(), SellerID: f.seller.ID, Title: "Landing page", PriceCents: 120000}
	f.unlinkedP = models.Project{ID: uuid.New(), SellerID: f.unlinked.ID, Title: "Icon set", PriceCents: 4000}

	for _, u := range []models.User{f.buyer, f.seller, f.unlinked} {
		require.NoError(t, db.Create(&u).Error)
	}
	for _, p := range []models.Project{f.project, f.unlinkedP} {
		require.NoError(t, db.Create(&p).Error)
	}

	f.offers = NewRepository(db)
	svc, err := NewService(ServiceParams{
		TX:             gormTx{db: db},
		Offers:         f.offers,
		Listings:       listings.NewRepository(db),
		Profiles:       users.NewRepository(db),
		Gateway:        f.gateway,
		Outbox:         outbox.NewService(outbox.NewRepository(db), nil),
		FeeBasisPoints: DefaultFeeBasisPoints,
		Currency:       "USD",
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) createOffer(t *testing.T, projectID uuid.UUID, amount int64) *OfferDTO {
	t.Helper()
	offer, err := f.svc.CreateOffer(context.Background(), f.buyer.ID, CreateOfferInput{ProjectID: projectID, Amount: amount})
	require.NoError(t, err)
	return offer
}

func (f *fixture) outboxTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows).Error)
	types := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
	}
	return types
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error: %v", err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	f := newFixture(t)
	_, err = NewService(ServiceParams{
		TX:             gormTx{db: f.db},
		Offers:         f.offers,
		Listings:       listings.NewRepository(f.db),
		Profiles:       users.NewRepository(f.db),
		Gateway:        f.gateway,
		Outbox:         outbox.NewService(outbox.NewRepository(f.db), nil),
		FeeBasisPoints: 20000,
	})
	require.Error(t, err)
}

func TestCreateOfferPersistsPendingOffer(t *testing.T) {
	f := newFixture(t)

	offer := f.createOffer(t, f.project.ID, 33)

	assert.Equal(t, enums.OfferStatusPending, offer.Status)
	assert.Equal(t, int64(33), offer.Amount)
	assert.Equal(t, int64(3300), offer.AmountCents)
	assert.Equal(t, "usd", offer.Currency)
	assert.Equal(t, f.buyer.ID, offer.BuyerID)
	assert.Empty(t, f.gateway.requests)
	assert.Empty(t, f.outboxTypes(t))
}

func TestCreateOfferValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOffer(ctx, uuid.Nil, CreateOfferInput{ProjectID: f.project.ID, Amount: 10})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = f.svc.CreateOffer(ctx, f.buyer.ID, CreateOfferInput{ProjectID: f.project.ID, Amount: 0})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.CreateOffer(ctx, f.buyer.ID, CreateOfferInput{ProjectID: uuid.Nil, Amount: 10})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.CreateOffer(ctx, f.buyer.ID, CreateOfferInput{ProjectID: uuid.New(), Amount: 10})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.CreateOffer(ctx, f.unlinked.ID, CreateOfferInput{ProjectID: f.project.ID, Amount: 10})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCreateOfferRejectsSelfDealing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOffer(context.Background(), f.seller.ID, CreateOfferInput{ProjectID: f.project.ID, Amount: 100})
	requireCode(t, err, pkgerrors.CodeForbidden)

	var count int64
	require.NoError(t, f.db.Model(&models.Offer{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRejectOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.project.ID, 500)

	res, err := f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionReject)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, f.gateway.requests)

	got, err := f.offers.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusRejected, got.Status)
	assert.NotNil(t, got.RejectedAt)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOfferRejected}, f.outboxTypes(t))

	_, err = f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Empty(t, f.gateway.requests)
}

func TestAcceptOfferCreatesIntentAndRecordsFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.project.ID, 33)

	res, err := f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionAccept)
	require.NoError(t, err)
	assert.Equal(t, "pi_test_1_secret_abc", res.ClientSecret)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, int64(3300), req.AmountCents)
	assert.Equal(t, int64(330), req.FeeCents)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "acct_seller", req.DestinationAccount)
	assert.Equal(t, "offer-accept-"+offer.ID.String()+"-1000-acct_seller", req.IdempotencyKey)
	assert.Equal(t, offer.ID.String(), req.Metadata[MetadataOfferID])
	assert.Equal(t, f.project.ID.String(), req.Metadata[MetadataProjectID])
	assert.Equal(t, f.buyer.ID.String(), req.Metadata[MetadataBuyerID])

	got, err := f.offers.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusAccepted, got.Status)
	require.NotNil(t, got.PaymentReference)
	assert.Equal(t, "pi_test_1", *got.PaymentReference)
	require.NotNil(t, got.FeeCents)
	assert.Equal(t, int64(330), *got.FeeCents)
	require.NotNil(t, got.FeeBasisPoints)
	assert.Equal(t, DefaultFeeBasisPoints, *got.FeeBasisPoints)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOfferAccepted}, f.outboxTypes(t))

	_, err = f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionReject)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestAcceptIdempotencyKeyTracksFeeAndPayoutAccount(t *testing.T) {
	id := uuid.New()
	base := acceptIdempotencyKey(id, 1000, "acct_a")

	assert.Equal(t, base, acceptIdempotencyKey(id, 1000, "acct_a"))
	assert.NotEqual(t, base, acceptIdempotencyKey(id, 1500, "acct_a"), "fee rate change")
	assert.NotEqual(t, base, acceptIdempotencyKey(id, 1000, "acct_b"), "payout account change")
	assert.NotEqual(t, base, acceptIdempotencyKey(uuid.New(), 1000, "acct_a"))
}

func TestBuyerCannotActOnOwnOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.project.ID, 100)

	_, err := f.svc.ActOnOffer(ctx, f.buyer.ID, offer.ID, enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.ActOnOffer(ctx, uuid.New(), offer.ID, enums.OfferActionReject)
	requireCode(t, err, pkgerrors.CodeForbidden)

	got, err := f.offers.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusPending, got.Status)
	assert.Empty(t, f.gateway.requests)
}

func TestActOnOfferValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ActOnOffer(ctx, f.seller.ID, uuid.New(), enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodeNotFound)

	offer := f.createOffer(t, f.project.ID, 100)
	_, err = f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferAction("cancel"))
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestAcceptRequiresConnectedSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.unlinkedP.ID, 40)

	_, err := f.svc.ActOnOffer(ctx, f.unlinked.ID, offer.ID, enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodePrecondition)
	assert.Empty(t, f.gateway.requests)

	got, err := f.offers.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusPending, got.Status)

	res, err := f.svc.ActOnOffer(ctx, f.unlinked.ID, offer.ID, enums.OfferActionReject)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestAcceptWithoutSellerProfileIsPrecondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orphan := models.Project{ID: uuid.New(), SellerID: uuid.New(), Title: "Logo pack", PriceCents: 900}
	require.NoError(t, f.db.Create(&orphan).Error)
	offer := f.createOffer(t, orphan.ID, 9)

	_, err := f.svc.ActOnOffer(ctx, orphan.SellerID, offer.ID, enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodePrecondition)
	assert.Equal(t, msgSellerNotConnected, pkgerrors.As(err).Message())
	assert.Empty(t, f.gateway.requests)

	got, err := f.offers.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusPending, got.Status)
}

func TestAcceptGatewayFailureLeavesOfferPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.project.ID, 250)
	f.gateway.err = errors.New("card_declined")

	_, err := f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodeDependency)

	got, err := f.offers.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusPending, got.Status)
	assert.Nil(t, got.PaymentReference)
	assert.Empty(t, f.outboxTypes(t))

	f.gateway.err = nil
	res, err := f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionAccept)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ClientSecret)
}

func TestAcceptLosingToRejectCancelsIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.project.ID, 80)

	f.gateway.onCreate = func() {
		_, err := f.offers.UpdateIfStatus(ctx, offer.ID, enums.OfferStatusPending, map[string]any{"status": enums.OfferStatusRejected})
		require.NoError(t, err)
	}

	_, err := f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, []string{"pi_test_1"}, f.gateway.cancelled)

	got, err := f.offers.FindByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusRejected, got.Status)
	assert.Empty(t, f.outboxTypes(t))
}

func TestAcceptLosingToConcurrentAcceptKeepsSharedIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.project.ID, 80)

	f.gateway.onCreate = func() {
		_, err := f.offers.UpdateIfStatus(ctx, offer.ID, enums.OfferStatusPending, map[string]any{
			"status":            enums.OfferStatusAccepted,
			"payment_reference": "pi_test_1",
		})
		require.NoError(t, err)
	}

	_, err := f.svc.ActOnOffer(ctx, f.seller.ID, offer.ID, enums.OfferActionAccept)
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Empty(t, f.gateway.cancelled)
}

func TestListOffersBySide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createOffer(t, f.project.ID, 10)
	time.Sleep(2 * time.Millisecond)
	second := f.createOffer(t, f.project.ID, 20)
	time.Sleep(2 * time.Millisecond)
	other := f.createOffer(t, f.unlinkedP.ID, 30)

	mine, err := f.svc.ListOffers(ctx, f.buyer.ID, ListQuery{})
	require.NoError(t, err)
	require.Len(t, mine.Offers, 3)
	assert.Equal(t, other.ID, mine.Offers[0].ID)
	assert.Empty(t, mine.Cursor)

	received, err := f.svc.ListOffers(ctx, f.seller.ID, ListQuery{Received: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, received.Offers, 1)
	assert.Equal(t, second.ID, received.Offers[0].ID)
	require.NotEmpty(t, received.Cursor)

	next, err := f.svc.ListOffers(ctx, f.seller.ID, ListQuery{Received: true, Limit: 1, Cursor: received.Cursor})
	require.NoError(t, err)
	require.Len(t, next.Offers, 1)
	assert.Equal(t, first.ID, next.Offers[0].ID)
	assert.Empty(t, next.Cursor)

	sent, err := f.svc.ListOffers(ctx, f.seller.ID, ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, sent.Offers)

	nothing, err := f.svc.ListOffers(ctx, f.buyer.ID, ListQuery{Received: true})
	require.NoError(t, err)
	assert.Empty(t, nothing.Offers)

	_, err = f.svc.ListOffers(ctx, f.buyer.ID, ListQuery{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestGetOfferVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offer := f.createOffer(t, f.project.ID, 10)

	got, err := f.svc.GetOffer(ctx, f.buyer.ID, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.ID, got.ID)

	_, err = f.svc.GetOffer(ctx, f.seller.ID, offer.ID)
	require.NoError(t, err)

	_, err = f.svc.GetOffer(ctx, f.unlinked.ID, offer.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.GetOffer(ctx, f.buyer.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}
