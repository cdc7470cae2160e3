package risk

import (
	"context"
	"log/slog"
	"time"
)

const portfolioStopLossKey = "risk:portfolio_stop_loss_percent"
const defaultPortfolioStopLossPercent = 25.0

// portfolioState is owned exclusively by PortfolioStopLossGuard.Run's
// goroutine; peak equity only ever increases (I5).
type portfolioState struct {
	peakEquity  float64
	initialised bool
}

// PortfolioStopLossGuard tracks a monotonic peak equity and fires
// KillSwitch::PortfolioStopLoss when equity falls more than pct% below
// that peak. One-shot by design: once breached it terminates its own
// loop and never re-arms (the listener is what actually kills the
// process).
type PortfolioStopLossGuard struct {
	balance      BalanceFunc
	store        ConfigStore
	pollInterval time.Duration
	sink         Sink
	broadcaster  *Broadcaster
	logger       *slog.Logger

	state portfolioState
}

// NewPortfolioStopLossGuard builds the guard. pollInterval defaults to 5s if <= 0.
func NewPortfolioStopLossGuard(balance BalanceFunc, store ConfigStore, pollInterval time.Duration, sink Sink, broadcaster *Broadcaster, logger *slog.Logger) *PortfolioStopLossGuard {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &PortfolioStopLossGuard{
		balance:      balance,
		store:        store,
		pollInterval: pollInterval,
		sink:         sink,
		broadcaster:  broadcaster,
		logger:       logger.With("component", "risk.portfolio_stop_loss"),
	}
}

// Run polls until breached or ctx is cancelled.
func (g *PortfolioStopLossGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.tick(ctx) {
				return
			}
		}
	}
}

// tick returns true once the guard has fired and should stop polling.
func (g *PortfolioStopLossGuard) tick(ctx context.Context) bool {
	balance, err := g.balance(ctx)
	if err != nil {
		g.logger.Warn("balance read failed, retrying next tick", "error", err)
		return false
	}

	if !g.state.initialised {
		g.state.peakEquity = balance
		g.state.initialised = true
	} else if balance > g.state.peakEquity {
		g.state.peakEquity = balance
	}

	pct := g.store.GetFloat(ctx, portfolioStopLossKey, defaultPortfolioStopLossPercent)
	stopLevel := g.state.peakEquity * (1 - pct/100)
	g.sink.SetPortfolioStopLossUSD(stopLevel)

	if balance < stopLevel {
		g.logger.Error("portfolio stop-loss breached", "balance", balance, "peak_equity", g.state.peakEquity, "stop_level", stopLevel)
		g.broadcaster.Publish(PortfolioStopLoss)
		return true
	}
	return false
}
