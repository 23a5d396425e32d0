package config

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		for _, schedulerType := range []string{"gocron", "interval"} {
			t.Run(schedulerType, func(t *testing.T) {
				cfg := testConfig()
				cfg.SchedulerType = schedulerType

				require.NoError(t, cfg.Validate())
				t.Cleanup(cfg.Close)

				require.NotNil(t, cfg.RepoManager())
				require.NotNil(t, cfg.scheduler)
				require.NotNil(t, cfg.FeeTargetSelector())
				require.NotNil(t, cfg.Notifier())
				require.Equal(t, "regtest", cfg.network.Name)

				// No esplora url means no dynamic estimates.
				_, err := cfg.FeeTargetSelector().FeeratePerKb(context.Background())
				require.Error(t, err)
			})
		}
	})

	t.Run("esplora", func(t *testing.T) {
		cfg := testConfig()
		cfg.EsploraURL = "http://127.0.0.1:3000"

		require.NoError(t, cfg.Validate())
		t.Cleanup(cfg.Close)
		require.NotNil(t, cfg.feeSource)
	})

	t.Run("badger", func(t *testing.T) {
		cfg := testConfig()
		cfg.DbType = "badger"
		cfg.DbDir = t.TempDir()

		require.NoError(t, cfg.Validate())
		t.Cleanup(cfg.Close)

		prefs := domain.NewPreferences()
		prefs.UpdatedAt = time.Now()
		err := cfg.RepoManager().Preferences().Upsert(context.Background(), *prefs)
		require.NoError(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			name          string
			update        func(c *Config)
			expectedError string
		}{
			{
				name:          "db type",
				update:        func(c *Config) { c.DbType = "mysql" },
				expectedError: "db type not supported",
			},
			{
				name:          "scheduler type",
				update:        func(c *Config) { c.SchedulerType = "cron" },
				expectedError: "scheduler type not supported",
			},
			{
				name:          "network",
				update:        func(c *Config) { c.Network = "liquid" },
				expectedError: "network not supported",
			},
			{
				name:          "amount unit",
				update:        func(c *Config) { c.AmountUnit = "bits" },
				expectedError: "amount unit not supported",
			},
			{
				name:          "tick interval",
				update:        func(c *Config) { c.TickInterval = 0 },
				expectedError: "invalid tick interval",
			},
			{
				name:          "esplora timeout",
				update:        func(c *Config) { c.EsploraTimeout = 0 },
				expectedError: "invalid esplora timeout",
			},
			{
				name:          "relay fee",
				update:        func(c *Config) { c.RelayFeePerKb = -1 },
				expectedError: "invalid relay fee",
			},
			{
				name:          "redis retries",
				update:        func(c *Config) { c.RedisTxNumOfRetries = 0 },
				expectedError: "invalid redis number of retries",
			},
			{
				name:          "esplora url",
				update:        func(c *Config) { c.EsploraURL = "://esplora" },
				expectedError: "invalid esplora url",
			},
		}

		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				cfg := testConfig()
				f.update(cfg)

				err := cfg.Validate()
				require.Error(t, err)
				require.ErrorContains(t, err, f.expectedError)
			})
		}
	})
}

func TestEditor(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())
	t.Cleanup(cfg.Close)

	amount := domain.OutputValue{Amount: btcutil.Amount(5000)}

	t.Run("invalid builder", func(t *testing.T) {
		builder, err := cfg.TxBuilder(nil, "", amount)
		require.Error(t, err)
		require.Nil(t, builder)
	})

	t.Run("editor", func(t *testing.T) {
		builder := ports.TxBuilderFunc(
			func(context.Context, domain.FeeEstimator) ports.BuildResult {
				return ports.ClassifyBuildError(nil)
			},
		)
		editor, err := cfg.Editor(builder, amount)
		require.NoError(t, err)
		require.NotNil(t, editor)
		require.NotEmpty(t, editor.Id())
	})
}

func TestEditorTicks(t *testing.T) {
	for _, schedulerType := range []string{"gocron", "interval"} {
		t.Run(schedulerType, func(t *testing.T) {
			cfg := testConfig()
			cfg.SchedulerType = schedulerType
			cfg.TickInterval = 50 * time.Millisecond
			require.NoError(t, cfg.Validate())
			t.Cleanup(cfg.Close)

			var builds atomic.Int64
			builder := ports.TxBuilderFunc(
				func(context.Context, domain.FeeEstimator) ports.BuildResult {
					builds.Add(1)
					return ports.Built(&testTx{})
				},
			)
			amount := domain.OutputValue{Amount: btcutil.Amount(5000)}
			editor, err := cfg.Editor(builder, amount)
			require.NoError(t, err)
			t.Cleanup(editor.Cancel)

			require.NoError(t, editor.Open(context.Background()))
			opened := builds.Load()

			editor.MarkDirty()
			require.Eventually(t, func() bool {
				return builds.Load() > opened && !editor.State().NeedsUpdate
			}, 2*time.Second, 20*time.Millisecond)
		})
	}
}

func TestSupportedType(t *testing.T) {
	types := supportedType{"badger": {}}
	require.True(t, types.supports("badger"))
	require.False(t, types.supports("postgres"))
	require.Equal(t, "badger", types.String())
}

func testConfig() *Config {
	return &Config{
		LogLevel:            4,
		Network:             "regtest",
		DbType:              "inmemory",
		SchedulerType:       "gocron",
		TickInterval:        100 * time.Millisecond,
		AmountUnit:          "sat",
		EsploraTimeout:      time.Second,
		RelayFeePerKb:       1000,
		RedisTxNumOfRetries: 1,
		AllowPreview:        true,
		NotifierBufferSize:  8,
	}
}

type testTx struct {
	rbf bool
}

func (t *testTx) EstimatedSize() int64        { return 200 }
func (t *testTx) Fee() (btcutil.Amount, bool) { return 1000, true }
func (t *testTx) OutputValue() btcutil.Amount { return 5000 }
func (t *testTx) LockTime() uint32            { return 0 }
func (t *testTx) SetRBF(enabled bool)         { t.rbf = enabled }
func (t *testTx) RBF() bool                   { return t.rbf }
