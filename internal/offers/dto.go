package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// CreateOfferInput carries a buyer's offer. Amount is in whole currency units.
type CreateOfferInput struct {
	ProjectID uuid.UUID
	Amount    int64
}

// ListQuery selects which side of the caller's offers to list.
type ListQuery struct {
	Received bool
	Cursor   string
	Limit    int
}

// OfferDTO is the API representation of an offer.
type OfferDTO struct {
	ID               uuid.UUID         `json:"id"`
	BuyerID          uuid.UUID         `json:"buyerId"`
	ProjectID        uuid.UUID         `json:"projectId"`
	Amount           int64             `json:"amount"`
	AmountCents      int64             `json:"amountCents"`
	Currency         string            `json:"currency"`
	Status           enums.OfferStatus `json:"status"`
	PaymentReference *string           `json:"paymentReference,omitempty"`
	FeeCents         *int64            `json:"feeCents,omitempty"`
	AcceptedAt       *time.Time        `json:"acceptedAt,omitempty"`
	RejectedAt       *time.Time        `json:"rejectedAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// OfferListDTO is one page of offers.
type OfferListDTO struct {
	Offers []OfferDTO `json:"offers"`
	Cursor string     `json:"cursor,omitempty"`
}

// ActionResult is returned from a seller decision. Accepts carry the client
// secret the buyer uses to confirm payment.
type ActionResult struct {
	Success      bool   `json:"success,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// FromModel converts a persisted offer into its API shape.
func FromModel(m models.Offer) OfferDTO {
	return OfferDTO{
		ID:               m.ID,
		BuyerID:          m.BuyerID,
		ProjectID:        m.ProjectID,
		Amount:           m.AmountCents / centsPerUnit,
		AmountCents:      m.AmountCents,
		Currency:         m.Currency,
		Status:           m.Status,
		PaymentReference: m.PaymentReference,
		FeeCents:         m.FeeCents,
		AcceptedAt:       m.AcceptedAt,
		RejectedAt:       m.RejectedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
