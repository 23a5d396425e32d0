package domain

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	PrefFeeLevel            = "fee_level"
	PrefDepthLevel          = "depth_level"
	PrefFeePerKb            = "fee_per_kb"
	PrefDynamicFees         = "dynamic_fees"
	PrefMempoolFees         = "mempool_fees"
	PrefShowTxIO            = "show_tx_io"
	PrefShowTxFeeDetails    = "show_tx_fee_details"
	PrefShowTxLockTime      = "show_tx_locktime"
	PrefShowTxPreviewButton = "show_tx_preview_button"
)

const (
	defaultFeeLevel   = 2
	defaultDepthLevel = 2
	// defaultFeePerKb is the static feerate used when no dynamic estimate is wanted.
	defaultFeePerKb = 150_000
)

// Preferences are the persisted choices of the fee editor user.
type Preferences struct {
	FeeLevel            int
	DepthLevel          int
	FeePerKb            int64
	DynamicFees         bool
	MempoolFees         bool
	ShowTxIO            bool
	ShowTxFeeDetails    bool
	ShowTxLockTime      bool
	ShowTxPreviewButton bool
	UpdatedAt           time.Time
}

func NewPreferences() *Preferences {
	return &Preferences{
		FeeLevel:    defaultFeeLevel,
		DepthLevel:  defaultDepthLevel,
		FeePerKb:    defaultFeePerKb,
		DynamicFees: true,
	}
}

// Get returns the value of the given key as a string.
func (p *Preferences) Get(key string) (string, error) {
	switch key {
	case PrefFeeLevel:
		return strconv.Itoa(p.FeeLevel), nil
	case PrefDepthLevel:
		return strconv.Itoa(p.DepthLevel), nil
	case PrefFeePerKb:
		return strconv.FormatInt(p.FeePerKb, 10), nil
	}
	flag, err := p.flag(key)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(*flag), nil
}

// Set parses and assigns the value of the given key.
func (p *Preferences) Set(key, value string) error {
	switch key {
	case PrefFeeLevel, PrefDepthLevel:
		level, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if level < 0 {
			return fmt.Errorf("invalid %s: must not be negative", key)
		}
		if key == PrefFeeLevel {
			p.FeeLevel = level
		} else {
			p.DepthLevel = level
		}
		return nil
	case PrefFeePerKb:
		feePerKb, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if feePerKb <= 0 {
			return fmt.Errorf("invalid %s: must be positive", key)
		}
		p.FeePerKb = feePerKb
		return nil
	}

	flag, err := p.flag(key)
	if err != nil {
		return err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*flag = b
	return nil
}

// Toggle flips a boolean preference and returns its new value.
func (p *Preferences) Toggle(key string) (bool, error) {
	flag, err := p.flag(key)
	if err != nil {
		return false, err
	}
	*flag = !*flag
	return *flag, nil
}

// Keys lists every preference key in display order.
func (p *Preferences) Keys() []string {
	return []string{
		PrefFeeLevel, PrefDepthLevel, PrefFeePerKb, PrefDynamicFees, PrefMempoolFees,
		PrefShowTxIO, PrefShowTxFeeDetails, PrefShowTxLockTime, PrefShowTxPreviewButton,
	}
}

func (p *Preferences) flag(key string) (*bool, error) {
	switch key {
	case PrefDynamicFees:
		return &p.DynamicFees, nil
	case PrefMempoolFees:
		return &p.MempoolFees, nil
	case PrefShowTxIO:
		return &p.ShowTxIO, nil
	case PrefShowTxFeeDetails:
		return &p.ShowTxFeeDetails, nil
	case PrefShowTxLockTime:
		return &p.ShowTxLockTime, nil
	case PrefShowTxPreviewButton:
		return &p.ShowTxPreviewButton, nil
	default:
		return nil, fmt.Errorf("unknown preference %s", key)
	}
}

type PreferencesRepository interface {
	// Get returns nil when nothing has been stored yet.
	Get(ctx context.Context) (*Preferences, error)
	Upsert(ctx context.Context, prefs Preferences) error
	Clear(ctx context.Context) error
	Close()
}
