package enums

import "fmt"

// AccountType describes which side of the marketplace a user participates in.
type AccountType string

const (
	AccountTypeBuyer  AccountType = "buyer"
	AccountTypeSeller AccountType = "seller"
	AccountTypeHybrid AccountType = "hybrid"
)

var validAccountTypes = []AccountType{
	AccountTypeBuyer,
	AccountTypeSeller,
	AccountTypeHybrid,
}

// String implements fmt.Stringer.
func (a AccountType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AccountType.
func (a AccountType) IsValid() bool {
	for _, candidate := range validAccountTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// CanBuy reports whether the account may place offers.
func (a AccountType) CanBuy() bool {
	return a == AccountTypeBuyer || a == AccountTypeHybrid
}

// ParseAccountType converts raw input into an AccountType.
func ParseAccountType(value string) (AccountType, error) {
	for _, candidate := range validAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account type %q", value)
}
