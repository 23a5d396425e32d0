package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

const (
	// FeeRatioHighWarning is the fee/amount ratio above which a fee looks too high.
	FeeRatioHighWarning = 0.05
	// FeerateHighWarning is the sat/kvB feerate above which a fee looks too high.
	FeerateHighWarning = 600_000
)

type FeeWarning struct {
	AllowSend    bool
	Message      string
	ShortMessage string
}

// CheckFeeWarning returns a warning when the fee paid for a tx of the given size and
// amount looks wrong, or nil otherwise.
func CheckFeeWarning(
	amount btcutil.Amount, size int64, fee btcutil.Amount, relayFeePerKb btcutil.Amount,
) *FeeWarning {
	if size <= 0 {
		return nil
	}
	feeDec := decimal.NewFromInt(int64(fee))
	feerate := feeDec.Div(decimal.NewFromInt(size))
	feeRatio := decimal.NewFromInt(1)
	if amount != 0 {
		feeRatio = feeDec.Div(decimal.NewFromInt(int64(amount)))
	}

	relayFeerate := decimal.NewFromInt(int64(relayFeePerKb)).Div(thousand)
	if feerate.LessThan(relayFeerate) {
		return &FeeWarning{
			AllowSend: false,
			Message: "This transaction requires a higher fee, or it will not be propagated " +
				"by the network. Try to raise your transaction fee.",
			ShortMessage: "below relay fee!",
		}
	}
	if feeRatio.GreaterThanOrEqual(decimal.NewFromFloat(FeeRatioHighWarning)) {
		return &FeeWarning{
			AllowSend: true,
			Message: fmt.Sprintf(
				"The fee for this transaction seems unusually high. (%s%% of amount)",
				feeRatio.Mul(decimal.NewFromInt(100)).StringFixed(2),
			),
			ShortMessage: "high fee ratio!",
		}
	}
	if feerate.GreaterThan(decimal.NewFromInt(FeerateHighWarning).Div(thousand)) {
		return &FeeWarning{
			AllowSend: true,
			Message: fmt.Sprintf(
				"The fee for this transaction seems unusually high. (feerate: %s sat/vB)",
				feerate.StringFixed(2),
			),
			ShortMessage: "high fee rate!",
		}
	}
	return nil
}
