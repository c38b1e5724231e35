package market

import "github.com/shopspring/decimal"

// Percent returns the relative change from old to new as a percentage.
// It is a total function: a missing input or a zero denominator yields
// 0.0, never an error. Callers that need to distinguish "no data" from
// "no change" must check validity before calling (see the aggregator,
// which emits nil percentages for missing anchors).
func Percent(old, new decimal.NullDecimal) float64 {
	if !old.Valid || !new.Valid || old.Decimal.IsZero() {
		return 0.0
	}
	ratio, _ := new.Decimal.Div(old.Decimal).Float64()
	return (ratio - 1) * 100
}
