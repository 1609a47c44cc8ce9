package users

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// Profile is the slice of a user the offer workflow depends on.
type Profile struct {
	ID              uuid.UUID
	Email           string
	FirstName       string
	AccountType     enums.AccountType
	StripeAccountID string
	Active          bool
}

// FromModel converts a persisted user into a Profile.
func FromModel(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	p := &Profile{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		AccountType: u.AccountType,
		Active:      u.IsActive,
	}
	if u.StripeAccountID != nil {
		p.StripeAccountID = strings.TrimSpace(*u.StripeAccountID)
	}
	return p
}

// CanBuy reports whether the profile may place offers.
func (p *Profile) CanBuy() bool {
	return p != nil && p.Active && p.AccountType.CanBuy()
}

// PaymentsConnected reports whether the seller finished gateway onboarding.
func (p *Profile) PaymentsConnected() bool {
	return p != nil && p.StripeAccountID != ""
}
