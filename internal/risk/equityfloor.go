package risk

import (
	"context"
	"log/slog"
	"time"
)

const equityFloorKey = "risk:equity_floor"
const defaultEquityFloor = 300.0

// EquityFloorGuard polls the balance oracle on a fixed cadence and fires
// KillSwitch::EquityFloor when equity drops below a floor refreshed from
// the key-value store on every tick.
type EquityFloorGuard struct {
	balance      BalanceFunc
	store        ConfigStore
	pollInterval time.Duration
	sink         Sink
	broadcaster  *Broadcaster
	logger       *slog.Logger
}

// NewEquityFloorGuard builds the guard. pollInterval defaults to 5s if <= 0.
func NewEquityFloorGuard(balance BalanceFunc, store ConfigStore, pollInterval time.Duration, sink Sink, broadcaster *Broadcaster, logger *slog.Logger) *EquityFloorGuard {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &EquityFloorGuard{
		balance:      balance,
		store:        store,
		pollInterval: pollInterval,
		sink:         sink,
		broadcaster:  broadcaster,
		logger:       logger.With("component", "risk.equity_floor"),
	}
}

// Run polls indefinitely until ctx is cancelled. Oracle errors are logged
// and retried on the next tick; the guard never exits on its own.
func (g *EquityFloorGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

func (g *EquityFloorGuard) tick(ctx context.Context) {
	balance, err := g.balance(ctx)
	if err != nil {
		g.logger.Warn("balance read failed, retrying next tick", "error", err)
		return
	}
	g.sink.SetEquityUSDC(balance)

	floor := g.store.GetFloat(ctx, equityFloorKey, defaultEquityFloor)
	if balance < floor {
		g.logger.Error("equity floor breached", "balance", balance, "floor", floor)
		g.broadcaster.Publish(EquityFloor)
	}
}
