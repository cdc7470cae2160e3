package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("KEYPAIR_PATH", "/tmp/keypair.json")
	t.Setenv("PLATFORMS", "pumpfun, letsbonk")
	t.Setenv("JUPITER_API", "https://quote-api.jup.ag")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.PositionSizePercent != 2.0 {
		t.Errorf("PositionSizePercent = %v, want 2.0", cfg.PositionSizePercent)
	}
	if cfg.LiquidityThreshold != 10000.0 {
		t.Errorf("LiquidityThreshold = %v, want 10000.0", cfg.LiquidityThreshold)
	}
	if cfg.AutoSellProfitMultiplier != 5.0 {
		t.Errorf("AutoSellProfitMultiplier = %v, want 5.0", cfg.AutoSellProfitMultiplier)
	}
	if cfg.AutoSellLossPercent != 20.0 {
		t.Errorf("AutoSellLossPercent = %v, want 20.0", cfg.AutoSellLossPercent)
	}
	if cfg.PortfolioStopLossPercent != 25.0 {
		t.Errorf("PortfolioStopLossPercent = %v, want 25.0", cfg.PortfolioStopLossPercent)
	}
	if cfg.MetricsBind != "127.0.0.1:9184" {
		t.Errorf("MetricsBind = %q, want 127.0.0.1:9184", cfg.MetricsBind)
	}
	if len(cfg.Platforms) != 2 || cfg.Platforms[0] != "pumpfun" || cfg.Platforms[1] != "letsbonk" {
		t.Errorf("Platforms = %v, want [pumpfun letsbonk]", cfg.Platforms)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error on a fully-configured Config: %v", err)
	}
}

func TestValidateMissingFields(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail on an empty Config")
	}
}

func TestSnapshotReflectsLiveEnvChanges(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("KEYPAIR_PATH", "/tmp/keypair.json")
	t.Setenv("PLATFORMS", "pumpfun")
	t.Setenv("JUPITER_API", "https://quote-api.jup.ag")
	t.Setenv("POSITION_SIZE_PERCENT", "2.0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got := cfg.Snapshot().PositionSizePercent; got != 2.0 {
		t.Fatalf("initial Snapshot PositionSizePercent = %v, want 2.0", got)
	}

	t.Setenv("POSITION_SIZE_PERCENT", "4.5")
	t.Setenv("TRADE_TIP", "1000")

	snap := cfg.Snapshot()
	if snap.PositionSizePercent != 4.5 {
		t.Errorf("Snapshot after env change PositionSizePercent = %v, want 4.5", snap.PositionSizePercent)
	}
	if snap.TradeTip != 1000 {
		t.Errorf("Snapshot TradeTip = %v, want 1000", snap.TradeTip)
	}
}

func TestRPCURLFallback(t *testing.T) {
	t.Setenv("RPC_URL", "https://fallback.example.com")
	t.Setenv("KEYPAIR_PATH", "/tmp/keypair.json")
	t.Setenv("PLATFORMS", "pumpfun")
	t.Setenv("JUPITER_API", "https://quote-api.jup.ag")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SolanaRPCURL != "https://fallback.example.com" {
		t.Errorf("SolanaRPCURL = %q, want fallback value", cfg.SolanaRPCURL)
	}
}
