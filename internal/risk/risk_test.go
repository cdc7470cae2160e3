package risk

import (
	"context"
	"io"
	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStore struct {
	values map[string]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]float64)}
}

func (f *fakeStore) GetFloat(_ context.Context, key string, fallback float64) float64 {
	if v, ok := f.values[key]; ok {
		return v
	}
	return fallback
}

type fakeSink struct {
	equity           float64
	lastSlippage     float64
	slippageThreshold float64
	stopLossUSD      float64
}

func (f *fakeSink) SetEquityUSDC(v float64)           { f.equity = v }
func (f *fakeSink) SetLastSlippage(v float64)         { f.lastSlippage = v }
func (f *fakeSink) SetSlippageThreshold(v float64)    { f.slippageThreshold = v }
func (f *fakeSink) SetPortfolioStopLossUSD(v float64) { f.stopLossUSD = v }
