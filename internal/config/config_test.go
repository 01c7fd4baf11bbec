package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, yaml string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "tidewatch-config-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(yaml)
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadConfig(t *testing.T) {
	yaml := `
general:
  instance_id: "test-node"
  environment: "development"
  dry_run: true
  log_level: "debug"

explorer:
  api_key: "test-key"

scanner:
  volume_spike_multiplier: 3.0
  min_volume_usd: 250000
  max_concurrent: 8

engine:
  scan_interval_sec: 60
  top_opportunities: 3

redis:
  enabled: true
  addr: "localhost:16379"
`
	path := writeTempConfig(t, yaml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-node", cfg.General.InstanceID)
	assert.True(t, cfg.General.DryRun)
	assert.Equal(t, "test-key", cfg.Explorer.APIKey)
	assert.Equal(t, 3.0, cfg.Scanner.VolumeSpikeMultiplier)
	assert.Equal(t, 250000.0, cfg.Scanner.MinVolumeUSD)
	assert.Equal(t, 8, cfg.Scanner.MaxConcurrent)
	assert.Equal(t, 60, cfg.Engine.ScanIntervalSec)
	assert.Equal(t, 3, cfg.Engine.TopOpportunities)
	assert.Equal(t, "localhost:16379", cfg.Redis.Addr)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeTempConfig(t, `
explorer:
  api_key: "k"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tidewatch-1", cfg.General.InstanceID)
	assert.Equal(t, "json", cfg.General.LogFormat)
	assert.Equal(t, "https://fapi.binance.com", cfg.Binance.RESTURL)
	assert.Equal(t, 5.0, cfg.Scanner.VolumeSpikeMultiplier)
	assert.Equal(t, 4.0, cfg.Scanner.PriceChangeThreshold)
	assert.Equal(t, 100_000.0, cfg.Scanner.MinVolumeUSD)
	assert.Equal(t, 12, cfg.Scanner.CandleLookback)
	assert.Equal(t, 50, cfg.Inspector.TransferLookback)
	assert.Equal(t, 1_000_000.0, cfg.Inspector.LargeTransferUSD)
	assert.Equal(t, 20, cfg.Inspector.WhaleTransferBoost)
	assert.Equal(t, 30, cfg.Engine.ScanIntervalSec)
	assert.Equal(t, 5, cfg.Engine.TopOpportunities)
	assert.Equal(t, 300, cfg.Engine.CooldownSec)
	assert.Equal(t, 1.0, cfg.Engine.MinShortTermMove)
	assert.Equal(t, 50_000.0, cfg.DexScreen.MinLiquidityUSD)
	assert.Equal(t, 1000, cfg.Dashboard.MaxSignals)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_EXPLORER_KEY", "from-env")

	path := writeTempConfig(t, `
explorer:
  api_key: "${TEST_EXPLORER_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Explorer.APIKey)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TIDEWATCH_TELEGRAM_BOT_TOKEN", "override-token")

	path := writeTempConfig(t, `
explorer:
  api_key: "k"
alerts:
  telegram_bot_token: "file-token"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override-token", cfg.Alerts.TelegramBotToken)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing api key", func(c *Config) { c.Explorer.APIKey = "" }, "explorer.api_key"},
		{"bad spike multiplier", func(c *Config) { c.Scanner.VolumeSpikeMultiplier = 0.5 }, "volume_spike_multiplier"},
		{"bad lookback", func(c *Config) { c.Scanner.CandleLookback = 1 }, "candle_lookback"},
		{"postgres without dsn", func(c *Config) { c.Postgres.Enabled = true; c.Postgres.DSN = "" }, "postgres.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			cfg.Explorer.APIKey = "k"
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
