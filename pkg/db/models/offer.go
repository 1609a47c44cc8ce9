package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// Offer is a buyer's proposed price on a project. Amounts are minor units.
type Offer struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID          uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	ProjectID        uuid.UUID         `gorm:"column:project_id;type:uuid;not null"`
	AmountCents      int64             `gorm:"column:amount_cents;not null"`
	Currency         string            `gorm:"column:currency;type:text;not null;default:'usd'"`
	Status           enums.OfferStatus `gorm:"column:status;type:offer_status;not null;default:'pending'"`
	PaymentReference *string           `gorm:"column:payment_reference"`
	FeeCents         *int64            `gorm:"column:fee_cents"`
	FeeBasisPoints   *int              `gorm:"column:fee_basis_points"`
	AcceptedAt       *time.Time        `gorm:"column:accepted_at"`
	RejectedAt       *time.Time        `gorm:"column:rejected_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
