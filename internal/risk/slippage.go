package risk

import (
	"context"
	"log/slog"
	"math"
)

const (
	slipKKey     = "risk:slip_k"
	defaultSlipK = 2.0

	// emaPeriod and emaAlpha implement the 20-period EMA from spec.md
	// §4.4: alpha = 2/(N+1).
	emaPeriod = 20
	emaAlpha  = 2.0 / (emaPeriod + 1)

	// warmupSamples is the minimum sample count before the sentinel may
	// breach (I6).
	warmupSamples = 5
)

// slippageState is owned exclusively by SlippageSentinel.Run's goroutine,
// updated strictly in the receive order of the slippage channel.
type slippageState struct {
	ema, ema2   float64
	initialised bool
	sampleCount int
}

// SlippageSentinel maintains a running EMA/EMA² of realised slippage
// samples and fires KillSwitch::Slippage on a loss-side tail event.
type SlippageSentinel struct {
	in          <-chan float64
	store       ConfigStore
	sink        Sink
	broadcaster *Broadcaster
	logger      *slog.Logger

	state slippageState
}

// NewSlippageSentinel builds the sentinel over the given receive channel.
func NewSlippageSentinel(in <-chan float64, store ConfigStore, sink Sink, broadcaster *Broadcaster, logger *slog.Logger) *SlippageSentinel {
	return &SlippageSentinel{
		in:          in,
		store:       store,
		sink:        sink,
		broadcaster: broadcaster,
		logger:      logger.With("component", "risk.slippage"),
	}
}

// Run consumes samples until the channel closes or ctx is cancelled.
func (s *SlippageSentinel) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-s.in:
			if !ok {
				return
			}
			s.process(ctx, sample)
		}
	}
}

func (s *SlippageSentinel) process(ctx context.Context, sample float64) {
	if !s.state.initialised {
		s.state.ema = sample
		s.state.ema2 = sample * sample
		s.state.initialised = true
	} else {
		s.state.ema = emaAlpha*sample + (1-emaAlpha)*s.state.ema
		s.state.ema2 = emaAlpha*sample*sample + (1-emaAlpha)*s.state.ema2
	}
	s.state.sampleCount++

	variance := s.state.ema2 - s.state.ema*s.state.ema
	if variance < 0 {
		variance = 0
	}
	sigma := math.Sqrt(variance)
	k := s.store.GetFloat(ctx, slipKKey, defaultSlipK)
	threshold := k * sigma

	s.sink.SetLastSlippage(sample)
	s.sink.SetSlippageThreshold(threshold)

	if s.state.sampleCount >= warmupSamples && threshold > 0 && sample < -threshold {
		s.logger.Error("slippage breach", "sample", sample, "threshold", threshold, "sample_count", s.state.sampleCount)
		s.broadcaster.Publish(Slippage)
	}
}
