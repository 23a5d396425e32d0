package domain

import "github.com/shopspring/decimal"

type FeeInputMode int

const (
	FeeInputModeNone FeeInputMode = iota
	FeeInputModeFixedFee
	FeeInputModeFeerate
)

func (m FeeInputMode) String() string {
	switch m {
	case FeeInputModeFixedFee:
		return "fixed fee"
	case FeeInputModeFeerate:
		return "feerate"
	default:
		return "auto"
	}
}

// FeeFields holds the last values of the fee and feerate inputs and which of them is the
// source of truth. At most one of them is frozen at any time.
type FeeFields struct {
	Fee     *int64
	Feerate *decimal.Decimal

	feeFrozen     bool
	feerateFrozen bool
	targetActive  bool
	hidden        bool
}

// NewFeeFields returns fields in auto mode, optionally seeded with a feerate.
func NewFeeFields(feerate *decimal.Decimal) *FeeFields {
	return &FeeFields{Feerate: feerate}
}

// EditFee records a new fee input value.
// Committing an empty value releases the freeze, anything else makes the fee the source of truth.
func (f *FeeFields) EditFee(value *int64, commit bool) {
	f.Fee = value
	if commit && value == nil {
		f.feeFrozen = false
		return
	}
	f.feeFrozen = true
	f.feerateFrozen = false
	f.targetActive = false
}

// EditFeerate records a new feerate input value (sat/vB).
func (f *FeeFields) EditFeerate(value *decimal.Decimal, commit bool) {
	f.Feerate = value
	if commit && value == nil {
		f.feerateFrozen = false
		return
	}
	f.feerateFrozen = true
	f.feeFrozen = false
	f.targetActive = false
}

// ActivateTarget hands the feerate over to the fee target selector, releasing any frozen
// input. A nil or zero feeratePerKb means the rate is not known yet.
func (f *FeeFields) ActivateTarget(feeratePerKb *int64) {
	f.targetActive = true
	f.feeFrozen = false
	f.feerateFrozen = false
	f.Feerate = nil
	if feeratePerKb != nil && *feeratePerKb != 0 {
		rate := Quantize(decimal.NewFromInt(*feeratePerKb).Div(thousand))
		f.Feerate = &rate
	}
}

// SetHidden reports whether the fee inputs are shown. Hidden inputs are never frozen.
func (f *FeeFields) SetHidden(hidden bool) {
	f.hidden = hidden
}

func (f *FeeFields) FeeFrozen() bool {
	return !f.hidden && f.feeFrozen
}

func (f *FeeFields) FeerateFrozen() bool {
	return !f.hidden && f.feerateFrozen
}

func (f *FeeFields) TargetActive() bool {
	return f.targetActive
}

// Mode reports the current source of truth. An active fee target counts as feerate mode.
func (f *FeeFields) Mode() FeeInputMode {
	switch {
	case f.FeerateFrozen() || f.targetActive:
		return FeeInputModeFeerate
	case f.FeeFrozen():
		return FeeInputModeFixedFee
	default:
		return FeeInputModeNone
	}
}

// Estimator resolves the fee estimator to hand to the tx builder:
// a frozen fee first, then a frozen feerate, otherwise nil.
func (f *FeeFields) Estimator() FeeEstimator {
	if f.FeeFrozen() && f.Fee != nil {
		return FixedFee(*f.Fee)
	}
	if f.FeerateFrozen() && f.Feerate != nil {
		return NewFeeratePerKb(f.Feerate)
	}
	return nil
}
