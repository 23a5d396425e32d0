package feetarget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/arkade-os/txeditor/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// EtaTargets are the confirmation targets, in blocks, of the dynamic eta scale.
	EtaTargets = []int{25, 10, 5, 2}
	// DepthTargets are the mempool depths, in vbytes, of the dynamic mempool scale.
	DepthTargets = []int64{
		10_000_000, 5_000_000, 2_000_000, 1_000_000, 800_000, 600_000, 400_000, 250_000, 100_000,
	}
	// StaticFeerates are the sat/kvB rates of the static scale.
	StaticFeerates = []int64{
		1000, 2000, 5000, 10000, 20000, 30000, 50000, 70000, 100000, 150000, 200000, 300000,
	}
)

const prefsTimeout = 5 * time.Second

type selector struct {
	repo   domain.PreferencesRepository
	source ports.FeeEstimateSource

	lock  sync.RWMutex
	prefs domain.Preferences
}

// NewSelector returns a fee target selector reading its scale and position from the persisted
// preferences. A nil source means dynamic estimates are never available.
func NewSelector(
	repo domain.PreferencesRepository, source ports.FeeEstimateSource,
) (ports.FeeTargetSelector, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing preferences repository")
	}
	return &selector{
		repo:   repo,
		source: source,
		prefs:  *domain.NewPreferences(),
	}, nil
}

func (s *selector) Target() string {
	ctx, cancel := context.WithTimeout(context.Background(), prefsTimeout)
	defer cancel()

	prefs, err := s.loadPreferences(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load preferences, using cached ones")
		prefs = s.cachedPreferences()
	}

	if !prefs.DynamicFees {
		return ""
	}
	if prefs.MempoolFees {
		return DepthTargetText(DepthTargets[clamp(prefs.DepthLevel, len(DepthTargets))])
	}
	return EtaTargetText(EtaTargets[clamp(prefs.FeeLevel, len(EtaTargets))])
}

func (s *selector) Select(ctx context.Context, pos int) (ports.FeeTarget, error) {
	prefs, err := s.loadPreferences(ctx)
	if err != nil {
		return ports.FeeTarget{}, err
	}
	if pos < 0 {
		return ports.FeeTarget{}, fmt.Errorf("invalid fee target position %d", pos)
	}
	return s.target(ctx, prefs, pos), nil
}

func (s *selector) Current(ctx context.Context) (ports.FeeTarget, error) {
	prefs, err := s.loadPreferences(ctx)
	if err != nil {
		return ports.FeeTarget{}, err
	}

	pos := StaticFeeratePos(prefs.FeePerKb)
	if prefs.DynamicFees {
		pos = prefs.FeeLevel
		if prefs.MempoolFees {
			pos = prefs.DepthLevel
		}
	}
	return s.target(ctx, prefs, pos), nil
}

func (s *selector) FeeratePerKb(ctx context.Context) (int64, error) {
	prefs, err := s.loadPreferences(ctx)
	if err != nil {
		return 0, err
	}
	if !prefs.DynamicFees {
		return prefs.FeePerKb, nil
	}

	pos := prefs.FeeLevel
	if prefs.MempoolFees {
		pos = prefs.DepthLevel
	}
	return s.dynamicFeeratePerKb(ctx, prefs, pos)
}

func (s *selector) target(ctx context.Context, prefs domain.Preferences, pos int) ports.FeeTarget {
	if !prefs.DynamicFees {
		pos = clamp(pos, len(StaticFeerates))
		feeratePerKb := StaticFeerates[pos]
		return ports.FeeTarget{Pos: pos, FeeratePerKb: &feeratePerKb}
	}

	size := len(EtaTargets)
	if prefs.MempoolFees {
		size = len(DepthTargets)
	}
	pos = clamp(pos, size)

	target := ports.FeeTarget{Dynamic: true, Pos: pos}
	feeratePerKb, err := s.dynamicFeeratePerKb(ctx, prefs, pos)
	if err != nil {
		log.WithError(err).Debugf("feerate of fee target %d not known yet", pos)
		return target
	}
	target.FeeratePerKb = &feeratePerKb
	return target
}

func (s *selector) dynamicFeeratePerKb(
	ctx context.Context, prefs domain.Preferences, pos int,
) (int64, error) {
	var (
		feeratePerKb int64
		target       string
		err          error
	)
	if prefs.MempoolFees {
		depth := DepthTargets[clamp(pos, len(DepthTargets))]
		target = DepthTargetText(depth)
		if s.source == nil {
			err = fmt.Errorf("no fee estimate source")
		} else {
			feeratePerKb, err = s.source.DepthFeeratePerKb(ctx, depth)
		}
	} else {
		blocks := EtaTargets[clamp(pos, len(EtaTargets))]
		target = EtaTargetText(blocks)
		if s.source == nil {
			err = fmt.Errorf("no fee estimate source")
		} else {
			feeratePerKb, err = s.source.EtaFeeratePerKb(ctx, blocks)
		}
	}
	if err != nil {
		return 0, errors.NO_DYNAMIC_FEE_ESTIMATES.Wrap(err).
			WithMetadata(errors.FeeEstimatesMetadata{Target: target})
	}
	return feeratePerKb, nil
}

func (s *selector) loadPreferences(ctx context.Context) (domain.Preferences, error) {
	prefs, err := s.repo.Get(ctx)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	if prefs == nil {
		prefs = domain.NewPreferences()
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.prefs = *prefs
	return *prefs, nil
}

func (s *selector) cachedPreferences() domain.Preferences {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.prefs
}

func EtaTargetText(blocks int) string {
	return fmt.Sprintf("within %d blocks", blocks)
}

func DepthTargetText(depth int64) string {
	return fmt.Sprintf("%.1f MB from tip", float64(depth)/1_000_000)
}

// StaticFeeratePos returns the position of the static rate closest to feeratePerKb.
func StaticFeeratePos(feeratePerKb int64) int {
	pos := 0
	best := int64(-1)
	for i, rate := range StaticFeerates {
		diff := rate - feeratePerKb
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < best {
			pos, best = i, diff
		}
	}
	return pos
}

func clamp(pos, size int) int {
	if pos < 0 {
		return 0
	}
	if pos >= size {
		return size - 1
	}
	return pos
}
