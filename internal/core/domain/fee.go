package domain

import (
	"github.com/shopspring/decimal"
)

// FeeratePrecision is the number of decimal places kept on a sat/vB feerate.
const FeeratePrecision = 2

var thousand = decimal.NewFromInt(1000)

// Quantize rounds a sat/vB feerate to FeeratePrecision decimal places, half away from zero.
func Quantize(feerate decimal.Decimal) decimal.Decimal {
	return feerate.Round(FeeratePrecision)
}

// RoundFee rounds a fractional satoshi amount to the nearest whole satoshi, half away from zero.
func RoundFee(fee decimal.Decimal) int64 {
	return fee.Round(0).IntPart()
}

// FeerateFromFee returns the quantized sat/vB feerate paid by fee over size.
func FeerateFromFee(fee, size int64) decimal.Decimal {
	if size <= 0 {
		return decimal.Zero
	}
	return Quantize(decimal.NewFromInt(fee).Div(decimal.NewFromInt(size)))
}

// FeeForFeerate returns round(feerate * size) for a sat/vB feerate.
func FeeForFeerate(feerate decimal.Decimal, size int64) int64 {
	return RoundFee(feerate.Mul(decimal.NewFromInt(size)))
}

// FeeEstimator tells the tx builder how much fee to pay for a tx of the given virtual size.
// A nil FeeEstimator leaves the choice to the builder's dynamic estimation.
type FeeEstimator interface {
	EstimateFee(size int64) int64
}

// FixedFee pays the same absolute fee whatever the size.
type FixedFee int64

func (f FixedFee) EstimateFee(int64) int64 {
	return int64(f)
}

// FeeratePerKb pays a sat/kvB feerate, quantized to sat/vB before being applied.
type FeeratePerKb decimal.Decimal

// NewFeeratePerKb converts a sat/vB feerate into its sat/kvB estimator. A nil feerate counts as 0.
func NewFeeratePerKb(feerate *decimal.Decimal) FeeratePerKb {
	if feerate == nil {
		return FeeratePerKb(decimal.Zero)
	}
	return FeeratePerKb(feerate.Mul(thousand))
}

func (f FeeratePerKb) EstimateFee(size int64) int64 {
	perByte := Quantize(decimal.Decimal(f).Div(thousand))
	return FeeForFeerate(perByte, size)
}

func (f FeeratePerKb) String() string {
	return decimal.Decimal(f).String() + " sat/kvB"
}
