package offers

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	pkgstripe "github.com/angelmondragon/projectmarket-backend/pkg/stripe"
)

// Gateway is the payment processor surface used when a seller accepts.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req pkgstripe.PaymentIntentRequest) (*pkgstripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) error
}

// acceptIdempotencyKey collapses concurrent or retried accepts of one offer
// onto a single payment intent. The fee rate and payout account are part of
// the key, so changing either yields a new intent instead of a gateway
// parameter mismatch.
func acceptIdempotencyKey(offerID uuid.UUID, feeBasisPoints int, destination string) string {
	return "offer-accept-" + offerID.String() + "-" + strconv.Itoa(feeBasisPoints) + "-" + destination
}

// Metadata keys attached to payment intents. The webhook reads offer_id back.
const (
	MetadataOfferID   = "offer_id"
	MetadataProjectID = "project_id"
	MetadataBuyerID   = "buyer_id"
)
