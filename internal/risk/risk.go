// Package risk implements RiskSupervisor: three long-lived guards
// (equity-floor, portfolio-stop-loss, slippage-EMA) that read shared
// configuration and a balance oracle, and a broadcast kill-switch they
// share.
package risk

import "context"

// KillSwitch is a tagged, broadcast-only signal. It is never stored.
type KillSwitch string

const (
	EquityFloor       KillSwitch = "equity_floor"
	Slippage          KillSwitch = "slippage"
	PortfolioStopLoss KillSwitch = "portfolio_stop_loss"
)

// BalanceFunc reads the signing key's current equity in USDC. Guards
// depend on this narrow function type rather than a concrete RPC client
// so tests can substitute a deterministic reading.
type BalanceFunc func(ctx context.Context) (float64, error)

// ConfigStore reads the small numeric config keys RiskSupervisor's guards
// refresh independently on every tick (risk:equity_floor, risk:slip_k,
// risk:portfolio_stop_loss_percent). kv.Store implements this.
type ConfigStore interface {
	GetFloat(ctx context.Context, key string, fallback float64) float64
}

// Sink is the subset of metrics.Sink the guards publish to.
type Sink interface {
	SetEquityUSDC(v float64)
	SetLastSlippage(v float64)
	SetSlippageThreshold(v float64)
	SetPortfolioStopLossUSD(v float64)
}
