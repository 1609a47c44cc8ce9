package enums

import (
	"fmt"
	"strings"
)

// OfferStatus maps to the offer_status enum in Postgres.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

var validOfferStatuses = []OfferStatus{
	OfferStatusPending,
	OfferStatusAccepted,
	OfferStatusRejected,
}

// String implements fmt.Stringer.
func (s OfferStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OfferStatus.
func (s OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s OfferStatus) IsTerminal() bool {
	return s == OfferStatusAccepted || s == OfferStatusRejected
}

// OfferAction is the decision a seller takes on a pending offer.
type OfferAction string

const (
	OfferActionAccept OfferAction = "accept"
	OfferActionReject OfferAction = "reject"
)

// IsValid reports whether the value is a known OfferAction.
func (a OfferAction) IsValid() bool {
	return a == OfferActionAccept || a == OfferActionReject
}

// ParseOfferAction converts raw input into an OfferAction. Input is matched
// exactly after trimming; "Accept" is not an action.
func ParseOfferAction(value string) (OfferAction, error) {
	action := OfferAction(strings.TrimSpace(value))
	if !action.IsValid() {
		return "", fmt.Errorf("invalid offer action %q", value)
	}
	return action, nil
}
