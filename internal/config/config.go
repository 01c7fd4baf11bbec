package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Tidewatch.
type Config struct {
	General   GeneralConfig   `yaml:"general"`
	Binance   BinanceConfig   `yaml:"binance"`
	Explorer  ExplorerConfig  `yaml:"explorer"`
	Solscan   SolscanConfig   `yaml:"solscan"`
	DexScreen DexScreenConfig `yaml:"dexscreener"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Inspector InspectorConfig `yaml:"inspector"`
	Engine    EngineConfig    `yaml:"engine"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	DryRun      bool   `yaml:"dry_run"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

type BinanceConfig struct {
	RESTURL      string  `yaml:"rest_url"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	TimeoutSec   int     `yaml:"timeout_sec"`
}

type ExplorerConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type SolscanConfig struct {
	APIURL     string `yaml:"api_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type DexScreenConfig struct {
	APIURL          string  `yaml:"api_url"`
	TimeoutSec      int     `yaml:"timeout_sec"`
	MinLiquidityUSD float64 `yaml:"min_liquidity_usd"`
}

type ScannerConfig struct {
	VolumeSpikeMultiplier float64 `yaml:"volume_spike_multiplier"`
	PriceChangeThreshold  float64 `yaml:"price_change_threshold"`
	MinVolumeUSD          float64 `yaml:"min_volume_usd"`
	CandleInterval        string  `yaml:"candle_interval"`
	CandleLookback        int     `yaml:"candle_lookback"`
	MaxConcurrent         int     `yaml:"max_concurrent"`
}

type InspectorConfig struct {
	WalletRegistryPath  string  `yaml:"wallet_registry_path"`
	TransferLookback    int     `yaml:"transfer_lookback"`
	LargeTransferUSD    float64 `yaml:"large_transfer_usd"`
	WhaleTransferBoost  int     `yaml:"whale_transfer_boost"`
	LargeAmountBoost    int     `yaml:"large_amount_boost"`
	RecentActivityBoost int     `yaml:"recent_activity_boost"`
}

type EngineConfig struct {
	ScanIntervalSec  int     `yaml:"scan_interval_sec"`
	TopOpportunities int     `yaml:"top_opportunities"`
	CooldownSec      int     `yaml:"cooldown_sec"`
	MinShortTermMove float64 `yaml:"min_short_term_move"` // percent, last 5m candle
	BollingerPeriod  int     `yaml:"bollinger_period"`
	BollingerStdDev  float64 `yaml:"bollinger_std_dev"`
}

type AlertsConfig struct {
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	DiscordWebhook   string `yaml:"discord_webhook"`
}

type DashboardConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	MaxSignals int    `yaml:"max_signals"`
	RetainHrs  int    `yaml:"retain_hours"`
}

type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads and parses a YAML configuration file. A .env file next to the
// process, if present, is loaded first so that ${VAR} references in the YAML
// resolve to values injected at deploy time.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "tidewatch-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Binance.RESTURL == "" {
		cfg.Binance.RESTURL = "https://fapi.binance.com"
	}
	if cfg.Binance.RateLimitRPS == 0 {
		cfg.Binance.RateLimitRPS = 15
	}
	if cfg.Binance.TimeoutSec == 0 {
		cfg.Binance.TimeoutSec = 10
	}
	if cfg.Explorer.APIURL == "" {
		cfg.Explorer.APIURL = "https://api.etherscan.io/v2/api"
	}
	if cfg.Explorer.TimeoutSec == 0 {
		cfg.Explorer.TimeoutSec = 30
	}
	if cfg.Solscan.APIURL == "" {
		cfg.Solscan.APIURL = "https://public-api.solscan.io"
	}
	if cfg.Solscan.TimeoutSec == 0 {
		cfg.Solscan.TimeoutSec = 20
	}
	if cfg.DexScreen.APIURL == "" {
		cfg.DexScreen.APIURL = "https://api.dexscreener.com"
	}
	if cfg.DexScreen.TimeoutSec == 0 {
		cfg.DexScreen.TimeoutSec = 10
	}
	if cfg.DexScreen.MinLiquidityUSD == 0 {
		cfg.DexScreen.MinLiquidityUSD = 50_000
	}
	if cfg.Scanner.VolumeSpikeMultiplier == 0 {
		cfg.Scanner.VolumeSpikeMultiplier = 5.0
	}
	if cfg.Scanner.PriceChangeThreshold == 0 {
		cfg.Scanner.PriceChangeThreshold = 4.0
	}
	if cfg.Scanner.MinVolumeUSD == 0 {
		cfg.Scanner.MinVolumeUSD = 100_000
	}
	if cfg.Scanner.CandleInterval == "" {
		cfg.Scanner.CandleInterval = "5m"
	}
	if cfg.Scanner.CandleLookback == 0 {
		cfg.Scanner.CandleLookback = 12
	}
	if cfg.Scanner.MaxConcurrent == 0 {
		cfg.Scanner.MaxConcurrent = 15
	}
	if cfg.Inspector.WalletRegistryPath == "" {
		cfg.Inspector.WalletRegistryPath = "data/known_wallets.json"
	}
	if cfg.Inspector.TransferLookback == 0 {
		cfg.Inspector.TransferLookback = 50
	}
	if cfg.Inspector.LargeTransferUSD == 0 {
		cfg.Inspector.LargeTransferUSD = 1_000_000
	}
	if cfg.Inspector.WhaleTransferBoost == 0 {
		cfg.Inspector.WhaleTransferBoost = 20
	}
	if cfg.Inspector.LargeAmountBoost == 0 {
		cfg.Inspector.LargeAmountBoost = 15
	}
	if cfg.Inspector.RecentActivityBoost == 0 {
		cfg.Inspector.RecentActivityBoost = 10
	}
	if cfg.Engine.ScanIntervalSec == 0 {
		cfg.Engine.ScanIntervalSec = 30
	}
	if cfg.Engine.TopOpportunities == 0 {
		cfg.Engine.TopOpportunities = 5
	}
	if cfg.Engine.CooldownSec == 0 {
		cfg.Engine.CooldownSec = 300
	}
	if cfg.Engine.MinShortTermMove == 0 {
		cfg.Engine.MinShortTermMove = 1.0
	}
	if cfg.Engine.BollingerPeriod == 0 {
		cfg.Engine.BollingerPeriod = 20
	}
	if cfg.Engine.BollingerStdDev == 0 {
		cfg.Engine.BollingerStdDev = 2.0
	}
	if cfg.Dashboard.ListenAddr == "" {
		cfg.Dashboard.ListenAddr = "127.0.0.1:5000"
	}
	if cfg.Dashboard.MaxSignals == 0 {
		cfg.Dashboard.MaxSignals = 1000
	}
	if cfg.Dashboard.RetainHrs == 0 {
		cfg.Dashboard.RetainHrs = 5
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = 10
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "tidewatch:alerts"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
}

// applyEnvOverrides lets operators inject secrets without touching the YAML.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Explorer.APIKey, "TIDEWATCH_EXPLORER_API_KEY")
	setStr(&cfg.Alerts.TelegramBotToken, "TIDEWATCH_TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Alerts.TelegramChatID, "TIDEWATCH_TELEGRAM_CHAT_ID")
	setStr(&cfg.Alerts.DiscordWebhook, "TIDEWATCH_DISCORD_WEBHOOK")
	setStr(&cfg.Postgres.DSN, "TIDEWATCH_POSTGRES_DSN")
	setStr(&cfg.Redis.Addr, "TIDEWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TIDEWATCH_REDIS_PASSWORD")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks startup preconditions. Failures here surface once at boot
// rather than per-cycle.
func (c *Config) Validate() error {
	if c.Scanner.VolumeSpikeMultiplier < 1 {
		return fmt.Errorf("scanner.volume_spike_multiplier must be >= 1, got %v", c.Scanner.VolumeSpikeMultiplier)
	}
	if c.Scanner.CandleLookback < 2 {
		return fmt.Errorf("scanner.candle_lookback must be >= 2, got %d", c.Scanner.CandleLookback)
	}
	if c.Scanner.MaxConcurrent < 1 {
		return fmt.Errorf("scanner.max_concurrent must be >= 1, got %d", c.Scanner.MaxConcurrent)
	}
	if c.Engine.TopOpportunities < 1 {
		return fmt.Errorf("engine.top_opportunities must be >= 1, got %d", c.Engine.TopOpportunities)
	}
	if c.Explorer.APIKey == "" {
		return fmt.Errorf("explorer.api_key is required (set TIDEWATCH_EXPLORER_API_KEY)")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres is enabled")
	}
	if c.Engine.BollingerPeriod < 2 {
		return fmt.Errorf("engine.bollinger_period must be >= 2, got %d", c.Engine.BollingerPeriod)
	}
	return nil
}

// ScanInterval returns the engine cycle interval as a Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Engine.ScanIntervalSec) * time.Second
}

// Cooldown returns the per-symbol alert suppression window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Engine.CooldownSec) * time.Second
}
