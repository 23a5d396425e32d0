package domain_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type reconcileFixtures struct {
	Valid []struct {
		Name                 string  `json:"name"`
		Mode                 string  `json:"mode"`
		Fee                  *int64  `json:"fee"`
		Feerate              *string `json:"feerate"`
		FeeratePerKb         *int64  `json:"feeratePerKb"`
		Size                 int64   `json:"size"`
		ActualFee            int64   `json:"actualFee"`
		ExpectedFee          *int64  `json:"expectedFee"`
		ExpectedFeerate      *string `json:"expectedFeerate"`
		ExpectedDelta        int64   `json:"expectedDelta"`
		ExpectedShowRounding bool    `json:"expectedShowRounding"`
	} `json:"valid"`
}

func TestReconcile(t *testing.T) {
	var fixtures reconcileFixtures
	buf, err := os.ReadFile("testdata/reconcile_fixtures.json")
	require.NoError(t, err)
	err = json.Unmarshal(buf, &fixtures)
	require.NoError(t, err)

	for _, v := range fixtures.Valid {
		t.Run(v.Name, func(t *testing.T) {
			fields := domain.NewFeeFields(nil)
			switch v.Mode {
			case "fee":
				fields.EditFee(v.Fee, false)
			case "feerate":
				var feerate *decimal.Decimal
				if v.Feerate != nil {
					rate := decimal.RequireFromString(*v.Feerate)
					feerate = &rate
				}
				fields.EditFeerate(feerate, false)
			case "target":
				fields.ActivateTarget(v.FeeratePerKb)
			}

			quote := domain.Reconcile(fields, v.Size, v.ActualFee)

			require.Equal(t, v.Size, quote.Size)
			require.Equal(t, v.ExpectedDelta, quote.RoundingDelta)
			require.Equal(t, v.ExpectedShowRounding, quote.ShowRounding)

			if v.ExpectedFee == nil {
				require.Nil(t, quote.DisplayedFee)
			} else {
				require.NotNil(t, quote.DisplayedFee)
				require.Equal(t, *v.ExpectedFee, *quote.DisplayedFee)
			}
			if v.ExpectedFeerate == nil {
				require.Nil(t, quote.DisplayedFeerate)
			} else {
				require.NotNil(t, quote.DisplayedFeerate)
				expected := decimal.RequireFromString(*v.ExpectedFeerate)
				require.True(
					t, expected.Equal(*quote.DisplayedFeerate),
					"expected feerate %s, got %s", expected, quote.DisplayedFeerate,
				)
			}
		})
	}
}

func TestReconcileWritesBack(t *testing.T) {
	t.Run("auto", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		domain.Reconcile(fields, 226, 1000)

		require.NotNil(t, fields.Fee)
		require.Equal(t, int64(1000), *fields.Fee)
		require.NotNil(t, fields.Feerate)
		require.Equal(t, "4.42", fields.Feerate.String())
		require.Equal(t, domain.FeeInputModeNone, fields.Mode())
	})

	t.Run("target_fallback", func(t *testing.T) {
		fields := domain.NewFeeFields(nil)
		fields.ActivateTarget(nil)
		domain.Reconcile(fields, 226, 1000)

		require.NotNil(t, fields.Feerate)
		require.Equal(t, "4.42", fields.Feerate.String())
		require.NotNil(t, fields.Fee)
		require.Equal(t, int64(999), *fields.Fee)

		// the adopted feerate is now the baseline and survives a different actual fee
		quote := domain.Reconcile(fields, 226, 1100)
		require.Equal(t, int64(999), *quote.DisplayedFee)
		require.Equal(t, int64(101), quote.RoundingDelta)
	})
}

func TestReconcileConsistency(t *testing.T) {
	for size := int64(100); size <= 1000; size += 37 {
		for actual := int64(0); actual <= 5000; actual += 113 {
			for _, mode := range []string{"auto", "target"} {
				fields := domain.NewFeeFields(nil)
				if mode == "target" {
					fields.ActivateTarget(nil)
				}
				quote := domain.Reconcile(fields, size, actual)
				require.NotNil(t, quote.DisplayedFee)
				require.NotNil(t, quote.DisplayedFeerate)

				implied := quote.DisplayedFeerate.Mul(decimal.NewFromInt(size))
				diff := implied.Sub(decimal.NewFromInt(*quote.DisplayedFee)).Abs()
				// the feerate is rounded to 0.01 sat/vB, so the implied fee can drift by size/200
				tolerance := decimal.NewFromInt(size).Div(decimal.NewFromInt(200)).
					Add(decimal.NewFromInt(1))
				require.True(
					t, diff.LessThanOrEqual(tolerance),
					"size %d actual %d mode %s: fee %d feerate %s",
					size, actual, mode, *quote.DisplayedFee, quote.DisplayedFeerate,
				)
			}
		}
	}
}

func TestRoundingText(t *testing.T) {
	quote := domain.FeeQuote{RoundingDelta: 2}
	require.Equal(t, "Additional 2 satoshis are going to be added.", quote.RoundingText())
}
