package domain_test

import (
	"testing"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestPreferences(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		prefs := domain.NewPreferences()
		require.True(t, prefs.DynamicFees)
		require.False(t, prefs.MempoolFees)
		require.False(t, prefs.ShowTxFeeDetails)

		for _, key := range prefs.Keys() {
			value, err := prefs.Get(key)
			require.NoError(t, err)
			require.NotEmpty(t, value)
		}
	})

	t.Run("toggle", func(t *testing.T) {
		prefs := domain.NewPreferences()
		value, err := prefs.Toggle(domain.PrefShowTxFeeDetails)
		require.NoError(t, err)
		require.True(t, value)
		require.True(t, prefs.ShowTxFeeDetails)

		value, err = prefs.Toggle(domain.PrefShowTxFeeDetails)
		require.NoError(t, err)
		require.False(t, value)

		_, err = prefs.Toggle(domain.PrefFeeLevel)
		require.Error(t, err)
	})

	t.Run("set", func(t *testing.T) {
		prefs := domain.NewPreferences()
		require.NoError(t, prefs.Set(domain.PrefFeeLevel, "3"))
		require.Equal(t, 3, prefs.FeeLevel)
		require.NoError(t, prefs.Set(domain.PrefDepthLevel, "0"))
		require.Equal(t, 0, prefs.DepthLevel)
		require.NoError(t, prefs.Set(domain.PrefFeePerKb, "20000"))
		require.Equal(t, int64(20000), prefs.FeePerKb)
		require.NoError(t, prefs.Set(domain.PrefMempoolFees, "true"))
		require.True(t, prefs.MempoolFees)
	})

	t.Run("invalid", func(t *testing.T) {
		prefs := domain.NewPreferences()
		require.Error(t, prefs.Set(domain.PrefFeeLevel, "-1"))
		require.Error(t, prefs.Set(domain.PrefFeePerKb, "0"))
		require.Error(t, prefs.Set(domain.PrefShowTxIO, "maybe"))
		require.Error(t, prefs.Set("unknown", "1"))
		_, err := prefs.Get("unknown")
		require.Error(t, err)
	})
}
