// Package config loads the executor's runtime configuration. Unlike a
// market-making bot reading a YAML strategy file, this executor is driven
// almost entirely by environment variables (see the Environment table);
// an optional file may seed defaults but env vars always win.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level, env-driven configuration for the executor.
type Config struct {
	SolanaRPCURL  string   `mapstructure:"solana_rpc_url"`
	SolanaRPCURLs []string `mapstructure:"solana_rpc_urls"`
	JupiterAPI    string   `mapstructure:"jupiter_api"`
	KeypairPath   string   `mapstructure:"keypair_path"`
	Platforms     []string `mapstructure:"platforms"`

	RedisURL string `mapstructure:"redis_url"`

	RiskEquityPollMS         int     `mapstructure:"risk_equity_poll_ms"`
	PortfolioStopLossPercent float64 `mapstructure:"portfolio_stop_loss_percent"`
	PositionSizePercent      float64 `mapstructure:"position_size_percent"`
	LiquidityThreshold       float64 `mapstructure:"liquidity_threshold"`
	AutoSellProfitMultiplier float64 `mapstructure:"auto_sell_profit_multiplier"`
	AutoSellLossPercent      float64 `mapstructure:"auto_sell_loss_percent"`

	TradeTip         int64  `mapstructure:"trade_tip"`
	OFACDenylist     string `mapstructure:"ofac_denylist"`
	MetricsBind      string `mapstructure:"metrics_bind"`
	MetricsBasicAuth string `mapstructure:"metrics_basic_auth"`

	Logging LoggingConfig `mapstructure:"logging"`

	// v is kept around so Snapshot can re-read the risk-relevant env vars
	// live on every call instead of replaying the values captured at
	// startup; AutomaticEnv plus BindEnv means v.Get* always reflects the
	// current environment, not whatever was present at Load time.
	v *viper.Viper
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// defaults mirrors the documented defaults from spec.md §6.
var defaults = map[string]interface{}{
	"risk_equity_poll_ms":         5000,
	"portfolio_stop_loss_percent": 25.0,
	"position_size_percent":       2.0,
	"liquidity_threshold":         10000.0,
	"auto_sell_profit_multiplier": 5.0,
	"auto_sell_loss_percent":      20.0,
	"trade_tip":                   0,
	"metrics_bind":                "127.0.0.1:9184",
	"logging.level":               "info",
	"logging.format":              "text",
}

// Load reads configuration from environment variables, optionally seeded
// by a file at path (ignored if empty or unreadable — env vars are
// authoritative either way).
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "solana_rpc_url", "SOLANA_RPC_URL", "SOLANA_URL", "RPC_URL")
	bindEnv(v, "solana_rpc_urls", "SOLANA_RPC_URLS")
	bindEnv(v, "jupiter_api", "JUPITER_API")
	bindEnv(v, "keypair_path", "KEYPAIR_PATH")
	bindEnv(v, "platforms", "PLATFORMS")
	bindEnv(v, "redis_url", "REDIS_URL")
	bindEnv(v, "risk_equity_poll_ms", "RISK_EQUITY_POLL_MS")
	bindEnv(v, "portfolio_stop_loss_percent", "PORTFOLIO_STOP_LOSS_PERCENT")
	bindEnv(v, "position_size_percent", "POSITION_SIZE_PERCENT")
	bindEnv(v, "liquidity_threshold", "LIQUIDITY_THRESHOLD")
	bindEnv(v, "auto_sell_profit_multiplier", "AUTO_SELL_PROFIT_MULTIPLIER")
	bindEnv(v, "auto_sell_loss_percent", "AUTO_SELL_LOSS_PERCENT")
	bindEnv(v, "trade_tip", "TRADE_TIP")
	bindEnv(v, "ofac_denylist", "OFAC_DENYLIST")
	bindEnv(v, "metrics_bind", "METRICS_BIND")
	bindEnv(v, "metrics_basic_auth", "METRICS_BASIC_AUTH")
	bindEnv(v, "logging.level", "LOG_LEVEL")
	bindEnv(v, "logging.format", "LOG_FORMAT")

	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig() // optional: env vars win regardless
	}

	var cfg Config
	cfg.SolanaRPCURL = v.GetString("solana_rpc_url")
	cfg.SolanaRPCURLs = splitCSV(v.GetString("solana_rpc_urls"))
	cfg.JupiterAPI = v.GetString("jupiter_api")
	cfg.KeypairPath = v.GetString("keypair_path")
	cfg.Platforms = splitCSV(v.GetString("platforms"))
	cfg.RedisURL = v.GetString("redis_url")
	cfg.RiskEquityPollMS = v.GetInt("risk_equity_poll_ms")
	cfg.PortfolioStopLossPercent = v.GetFloat64("portfolio_stop_loss_percent")
	cfg.PositionSizePercent = v.GetFloat64("position_size_percent")
	cfg.LiquidityThreshold = v.GetFloat64("liquidity_threshold")
	cfg.AutoSellProfitMultiplier = v.GetFloat64("auto_sell_profit_multiplier")
	cfg.AutoSellLossPercent = v.GetFloat64("auto_sell_loss_percent")
	cfg.TradeTip = v.GetInt64("trade_tip")
	cfg.OFACDenylist = v.GetString("ofac_denylist")
	cfg.MetricsBind = v.GetString("metrics_bind")
	cfg.MetricsBasicAuth = v.GetString("metrics_basic_auth")
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")
	cfg.v = v

	return &cfg, nil
}

func bindEnv(v *viper.Viper, key string, envNames ...string) {
	args := append([]string{key}, envNames...)
	_ = v.BindEnv(args...)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the fields required for the Trader/FeedSource to start.
// RedisURL is not checked here: kv.New rejects an empty URL (invariant
// I7), and the store it builds is required before RiskSupervisor starts.
func (c *Config) Validate() error {
	if c.SolanaRPCURL == "" {
		return fmt.Errorf("no Solana RPC URL configured (set SOLANA_RPC_URL, SOLANA_URL, or RPC_URL)")
	}
	if c.KeypairPath == "" {
		return fmt.Errorf("KEYPAIR_PATH is required")
	}
	if len(c.Platforms) == 0 {
		return fmt.Errorf("PLATFORMS must name at least one platform")
	}
	if c.JupiterAPI == "" {
		return fmt.Errorf("JUPITER_API is required")
	}
	return nil
}

// RiskConfig is the subset of Config that Trader snapshots and refreshes
// on a 5-minute cadence, matching spec.md §3.
type RiskConfig struct {
	PositionSizePercent      float64
	LiquidityThreshold       float64
	AutoSellProfitMultiplier float64
	AutoSellLossPercent      float64
	TradeTip                 int64
}

// Snapshot re-reads the risk-relevant environment variables through the
// viper instance captured at Load and returns their current values, so a
// refresh on Trader's 5-minute cadence actually observes env changes made
// during the process lifetime rather than replaying the values seen at
// startup.
func (c *Config) Snapshot() RiskConfig {
	return RiskConfig{
		PositionSizePercent:      c.v.GetFloat64("position_size_percent"),
		LiquidityThreshold:       c.v.GetFloat64("liquidity_threshold"),
		AutoSellProfitMultiplier: c.v.GetFloat64("auto_sell_profit_multiplier"),
		AutoSellLossPercent:      c.v.GetFloat64("auto_sell_loss_percent"),
		TradeTip:                 c.v.GetInt64("trade_tip"),
	}
}
