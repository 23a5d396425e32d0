package ports

import "context"

// FeeTarget is a position picked on the fee target selector.
type FeeTarget struct {
	Dynamic bool
	Pos     int
	// FeeratePerKb is nil when the rate of the position is not known yet.
	FeeratePerKb *int64
}

type FeeTargetSelector interface {
	// Target describes the current dynamic target, empty when fees are static.
	Target() string
	// Select returns the target at the given position of the current scale.
	Select(ctx context.Context, pos int) (FeeTarget, error)
	// Current returns the target persisted in the preferences.
	Current(ctx context.Context) (FeeTarget, error)
	// FeeratePerKb returns the rate of the current target, used when no fee is given.
	FeeratePerKb(ctx context.Context) (int64, error)
}

// FeeEstimateSource fetches network fee estimates.
type FeeEstimateSource interface {
	// EtaFeeratePerKb returns the sat/kvB feerate to confirm within the given blocks.
	EtaFeeratePerKb(ctx context.Context, blocks int) (int64, error)
	// DepthFeeratePerKb returns the sat/kvB feerate to sit within depth vbytes of the mempool tip.
	DepthFeeratePerKb(ctx context.Context, depth int64) (int64, error)
}
