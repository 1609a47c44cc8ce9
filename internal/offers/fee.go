package offers

import "github.com/shopspring/decimal"

// DefaultFeeBasisPoints is the platform's cut: 1000 bps = 10%.
const DefaultFeeBasisPoints = 1000

// PlatformFee returns round(amountCents * basisPoints / 10000) with halves
// rounded away from zero. Non-positive inputs yield zero.
func PlatformFee(amountCents int64, basisPoints int) int64 {
	if amountCents <= 0 || basisPoints <= 0 {
		return 0
	}
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(int64(basisPoints))).
		Shift(-4).
		Round(0).
		IntPart()
}
