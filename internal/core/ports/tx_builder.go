package ports

import (
	"context"
	"errors"

	"github.com/arkade-os/txeditor/internal/core/domain"
	txerrors "github.com/arkade-os/txeditor/pkg/errors"
)

type BuildOutcome int

const (
	BuildSuccess BuildOutcome = iota
	BuildInsufficientFunds
	BuildNoFeeEstimate
	BuildAddressCorruption
	BuildOtherFailure
)

func (o BuildOutcome) String() string {
	switch o {
	case BuildSuccess:
		return "success"
	case BuildInsufficientFunds:
		return "insufficient funds"
	case BuildNoFeeEstimate:
		return "no fee estimate available"
	case BuildAddressCorruption:
		return "address corruption"
	default:
		return "failure"
	}
}

// BuildResult is the outcome of one TxBuilder call. Tx is set only on success, Err on failure.
type BuildResult struct {
	Outcome BuildOutcome
	Tx      domain.Tx
	Err     error
}

func (r BuildResult) Ok() bool {
	return r.Outcome == BuildSuccess && r.Tx != nil
}

// Message is the user facing text of a failed build.
func (r BuildResult) Message() string {
	if r.Err == nil {
		return r.Outcome.String()
	}
	return r.Err.Error()
}

func Built(tx domain.Tx) BuildResult {
	return BuildResult{Outcome: BuildSuccess, Tx: tx}
}

// ClassifyBuildError maps a builder error to the tagged result the editor reacts to.
func ClassifyBuildError(err error) BuildResult {
	if err == nil {
		return BuildResult{Outcome: BuildOtherFailure, Err: errors.New("no tx built")}
	}
	switch {
	case txerrors.INSUFFICIENT_FUNDS.Is(err):
		return BuildResult{Outcome: BuildInsufficientFunds, Err: err}
	case txerrors.NO_DYNAMIC_FEE_ESTIMATES.Is(err):
		return BuildResult{Outcome: BuildNoFeeEstimate, Err: err}
	case txerrors.ADDRESS_CORRUPTION.Is(err):
		return BuildResult{Outcome: BuildAddressCorruption, Err: err}
	default:
		return BuildResult{Outcome: BuildOtherFailure, Err: err}
	}
}

type TxBuilder interface {
	// MakeTx builds the tx paying the fee resolved by estimator, nil meaning the builder's
	// own dynamic estimate.
	MakeTx(ctx context.Context, estimator domain.FeeEstimator) BuildResult
}

// TxBuilderFunc adapts a plain function to TxBuilder.
type TxBuilderFunc func(ctx context.Context, estimator domain.FeeEstimator) BuildResult

func (f TxBuilderFunc) MakeTx(ctx context.Context, estimator domain.FeeEstimator) BuildResult {
	return f(ctx, estimator)
}
