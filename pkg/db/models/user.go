package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// User is the marketplace profile. StripeAccountID is set once the seller
// completes gateway onboarding.
type User struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email           string            `gorm:"column:email;type:text;not null;uniqueIndex"`
	FirstName       string            `gorm:"column:first_name;not null"`
	LastName        string            `gorm:"column:last_name;not null"`
	AccountType     enums.AccountType `gorm:"column:account_type;type:account_type;not null"`
	StripeAccountID *string           `gorm:"column:stripe_account_id"`
	IsActive        bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
