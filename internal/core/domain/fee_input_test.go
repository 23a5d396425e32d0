package domain_test

import (
	"testing"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFeeFieldsModes(t *testing.T) {
	fee := int64(1500)
	feerate := decimal.RequireFromString("5")

	t.Run("fee_then_feerate", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		require.Equal(t, domain.FeeInputModeNone, fields.Mode())

		fields.EditFee(&fee, true)
		require.Equal(t, domain.FeeInputModeFixedFee, fields.Mode())
		require.True(t, fields.FeeFrozen())

		fields.EditFeerate(&feerate, true)
		require.Equal(t, domain.FeeInputModeFeerate, fields.Mode())
		require.False(t, fields.FeeFrozen())
		require.True(t, fields.FeerateFrozen())
	})

	t.Run("clearing_frozen_field_goes_back_to_auto", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		fields.EditFee(&fee, false)
		require.Equal(t, domain.FeeInputModeFixedFee, fields.Mode())

		fields.EditFee(nil, true)
		require.Equal(t, domain.FeeInputModeNone, fields.Mode())

		fields.EditFeerate(&feerate, true)
		fields.EditFeerate(nil, true)
		require.Equal(t, domain.FeeInputModeNone, fields.Mode())
	})

	t.Run("typing_empty_keeps_field_frozen", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		fields.EditFee(nil, false)
		require.Equal(t, domain.FeeInputModeFixedFee, fields.Mode())
		require.Nil(t, fields.Estimator())
	})

	t.Run("target_activation", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		fields.EditFee(&fee, true)

		feeratePerKb := int64(12345)
		fields.ActivateTarget(&feeratePerKb)
		require.True(t, fields.TargetActive())
		require.False(t, fields.FeeFrozen())
		require.Equal(t, domain.FeeInputModeFeerate, fields.Mode())
		require.Equal(t, "12.35", fields.Feerate.String())

		zero := int64(0)
		fields.ActivateTarget(&zero)
		require.Nil(t, fields.Feerate)

		fields.EditFee(&fee, false)
		require.False(t, fields.TargetActive())
		require.Equal(t, domain.FeeInputModeFixedFee, fields.Mode())
	})

	t.Run("target_releases_frozen_feerate", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		fields.EditFeerate(&feerate, true)
		require.True(t, fields.FeerateFrozen())

		feeratePerKb := int64(8000)
		fields.ActivateTarget(&feeratePerKb)
		require.False(t, fields.FeerateFrozen())
		require.Equal(t, domain.FeeInputModeFeerate, fields.Mode())
		require.Equal(t, "8", fields.Feerate.String())
		// the builder estimates from the selector instead of a pinned rate
		require.Nil(t, fields.Estimator())
	})

	t.Run("clearing_on_commit_keeps_target", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		fields.ActivateTarget(nil)
		fields.EditFeerate(nil, true)
		require.True(t, fields.TargetActive())
	})

	t.Run("hidden_fields_are_never_frozen", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		fields.EditFee(&fee, true)
		fields.SetHidden(true)
		require.Equal(t, domain.FeeInputModeNone, fields.Mode())
		require.Nil(t, fields.Estimator())

		fields.SetHidden(false)
		require.Equal(t, domain.FeeInputModeFixedFee, fields.Mode())
	})

	t.Run("mutual_exclusion", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		edits := []func(){
			func() { fields.EditFee(&fee, false) },
			func() { fields.EditFeerate(&feerate, true) },
			func() { fields.EditFee(nil, true) },
			func() { fields.EditFee(&fee, true) },
			func() { fields.EditFeerate(nil, false) },
			func() { fields.ActivateTarget(nil) },
			func() { fields.EditFeerate(&feerate, false) },
		}
		for _, edit := range edits {
			edit()
			require.False(t, fields.FeeFrozen() && fields.FeerateFrozen())
		}
	})
}

func TestFeeFieldsEstimator(t *testing.T) {
	fee := int64(1500)
	feerate := decimal.RequireFromString("5")

	fields := domain.NewFeeFields(nil)
	require.Nil(t, fields.Estimator())

	fields.EditFee(&fee, true)
	require.Equal(t, domain.FixedFee(1500), fields.Estimator())

	fields.EditFeerate(&feerate, true)
	estimator := fields.Estimator()
	require.IsType(t, domain.FeeratePerKb{}, estimator)
	require.Equal(t, int64(1250), estimator.EstimateFee(250))

	// a target with an unknown rate defers to the builder's dynamic estimate
	fields.ActivateTarget(nil)
	require.Nil(t, fields.Estimator())
}
