package orderbookv1

import "github.com/shopspring/decimal"

// TruncateTo drops digits beyond places, rounding toward zero.
// It is the only rounding applied when values leave the exact domain
// (venue command precision, display). A negative places leaves d untouched.
func TruncateTo(d decimal.Decimal, places int32) decimal.Decimal {
	if places < 0 {
		return d
	}
	return d.Truncate(places)
}
