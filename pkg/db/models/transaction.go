package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// Transaction records a settled payment. PaymentReference is unique.
type Transaction struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID          uuid.UUID               `gorm:"column:offer_id;type:uuid;not null"`
	PaymentReference string                  `gorm:"column:payment_reference;type:text;not null;uniqueIndex"`
	Status           enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'succeeded'"`
	AmountCents      int64                   `gorm:"column:amount_cents;not null"`
	Currency         string                  `gorm:"column:currency;type:text;not null"`
	GatewayEventID   *string                 `gorm:"column:gateway_event_id"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
}
