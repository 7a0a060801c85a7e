// Package quantity provides exact arithmetic for splitting requested
// quantities across partial deliveries.
package quantity

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity occurs when a split amount is not positive or exceeds the total.
var ErrInvalidQuantity = errors.New("quantity: amount must be positive and not exceed total")

// Split holds the two portions of a divided quantity. Deliver + Remainder
// always equals the original total exactly.
type Split struct {
	Deliver   decimal.Decimal
	Remainder decimal.Decimal
}

// SplitQuantity divides total into a delivered portion and a remainder.
// Requires 0 < deliver <= total.
func SplitQuantity(total, deliver decimal.Decimal) (Split, error) {
	if deliver.Sign() <= 0 || deliver.GreaterThan(total) {
		return Split{}, ErrInvalidQuantity
	}
	return Split{Deliver: deliver, Remainder: total.Sub(deliver)}, nil
}

// Round2 rounds a quantity to two decimal places for display. Internal
// computation keeps full precision so repeated splits never drift.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
