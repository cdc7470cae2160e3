package risk

import (
	"context"
	"sync"
)

// Supervisor runs the three guards concurrently, sharing one Broadcaster.
type Supervisor struct {
	EquityFloor       *EquityFloorGuard
	PortfolioStopLoss *PortfolioStopLossGuard
	Slippage          *SlippageSentinel
}

// Run blocks until ctx is cancelled (the portfolio guard may return
// earlier, having fired once; the other two run until cancellation).
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() { defer wg.Done(); s.EquityFloor.Run(ctx) }()
	go func() { defer wg.Done(); s.PortfolioStopLoss.Run(ctx) }()
	go func() { defer wg.Done(); s.Slippage.Run(ctx) }()

	wg.Wait()
}
