package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OfferDecisionEvent is emitted when a seller accepts or rejects an offer.
type OfferDecisionEvent struct {
	OfferID          uuid.UUID `json:"offer_id"`
	ProjectID        uuid.UUID `json:"project_id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	FeeCents         int64     `json:"fee_cents,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	DecidedAt        time.Time `json:"decided_at"`
}

// OfferPaidEvent is emitted once per settled payment, in the same transaction
// that records it in the ledger.
type OfferPaidEvent struct {
	OfferID          uuid.UUID `json:"offer_id"`
	TransactionID    uuid.UUID `json:"transaction_id"`
	PaymentReference string    `json:"payment_reference"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	PaidAt           time.Time `json:"paid_at"`
}
