package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeQuote is what the fee inputs display after a reconciliation pass.
type FeeQuote struct {
	DisplayedFee     *int64
	DisplayedFeerate *decimal.Decimal
	Size             int64
	// RoundingDelta is the actual fee minus the displayed one.
	RoundingDelta int64
	ShowRounding  bool
}

// RoundingText describes the rounding delta to the user.
func (q FeeQuote) RoundingText() string {
	return fmt.Sprintf("Additional %d satoshis are going to be added.", q.RoundingDelta)
}

// Reconcile derives the displayed fee and feerate of a built tx of the given size and actual
// fee from the current fee inputs. Derived values are written back into the fields they
// become the new baseline of.
func Reconcile(fields *FeeFields, size, actualFee int64) FeeQuote {
	quote := FeeQuote{Size: size}

	switch {
	case fields.FeerateFrozen() || fields.TargetActive():
		var feerate *decimal.Decimal
		if fields.Feerate != nil {
			rate := Quantize(*fields.Feerate)
			feerate = &rate
		} else if fields.TargetActive() {
			rate := FeerateFromFee(actualFee, size)
			feerate = &rate
			fields.Feerate = &rate
		}
		quote.DisplayedFeerate = feerate
		if feerate != nil {
			fee := FeeForFeerate(*feerate, size)
			quote.DisplayedFee = &fee
		}
		fields.Fee = quote.DisplayedFee

	case fields.FeeFrozen():
		if fields.Fee != nil {
			fee := *fields.Fee
			feerate := FeerateFromFee(fee, size)
			quote.DisplayedFee = &fee
			quote.DisplayedFeerate = &feerate
		}
		fields.Feerate = quote.DisplayedFeerate

	default:
		fee := actualFee
		feerate := FeerateFromFee(fee, size)
		quote.DisplayedFee = &fee
		quote.DisplayedFeerate = &feerate
		fields.Fee = quote.DisplayedFee
		fields.Feerate = quote.DisplayedFeerate
	}

	if actualFee != 0 && quote.DisplayedFee != nil {
		quote.RoundingDelta = actualFee - *quote.DisplayedFee
	}
	quote.ShowRounding = quote.RoundingDelta >= 1 || quote.RoundingDelta <= -1

	return quote
}

// Unavailable is the quote shown while no fee can be computed: nothing is displayed, only the
// size of a fallback tx when one exists.
func Unavailable(size int64) FeeQuote {
	return FeeQuote{Size: size}
}
