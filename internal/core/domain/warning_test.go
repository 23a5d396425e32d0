package domain_test

import (
	"testing"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func TestCheckFeeWarning(t *testing.T) {
	const relayFeePerKb = btcutil.Amount(1000)

	tests := []struct {
		name          string
		amount        btcutil.Amount
		size          int64
		fee           btcutil.Amount
		expectedShort string
		allowSend     bool
	}{
		{
			name:   "reasonable_fee",
			amount: 1_000_000,
			size:   200,
			fee:    2000,
		},
		{
			name:          "below_relay_fee",
			amount:        1_000_000,
			size:          200,
			fee:           199,
			expectedShort: "below relay fee!",
			allowSend:     false,
		},
		{
			name:          "high_fee_ratio",
			amount:        20_000,
			size:          200,
			fee:           1000,
			expectedShort: "high fee ratio!",
			allowSend:     true,
		},
		{
			name:          "high_fee_rate",
			amount:        100_000_000,
			size:          200,
			fee:           120_200,
			expectedShort: "high fee rate!",
			allowSend:     true,
		},
		{
			name:          "zero_amount_counts_as_full_ratio",
			amount:        0,
			size:          200,
			fee:           400,
			expectedShort: "high fee ratio!",
			allowSend:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warning := domain.CheckFeeWarning(tt.amount, tt.size, tt.fee, relayFeePerKb)
			if tt.expectedShort == "" {
				require.Nil(t, warning)
				return
			}
			require.NotNil(t, warning)
			require.Equal(t, tt.expectedShort, warning.ShortMessage)
			require.Equal(t, tt.allowSend, warning.AllowSend)
			require.NotEmpty(t, warning.Message)
		})
	}
}
