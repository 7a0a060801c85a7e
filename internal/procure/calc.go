package procure

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// POTotal computes quantity * unitRate * (1 + gstRate/100) rounded to two
// decimals. The result is stored at issue time and never recalculated.
func POTotal(qty, unitRate, gstRate decimal.Decimal) decimal.Decimal {
	gross := qty.Mul(unitRate)
	tax := gross.Mul(gstRate).Div(hundred)
	return gross.Add(tax).Round(2)
}
