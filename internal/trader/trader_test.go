package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"launchexec/internal/aggregator"
	"launchexec/internal/classifier"
	"launchexec/internal/config"
	"launchexec/internal/launchevent"
	"launchexec/internal/solanarpc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeAggregator struct {
	quoteErr error
	swapErr  error
	quote    *aggregator.Quote
	swap     *aggregator.SwapResponse
}

func (f *fakeAggregator) Quote(context.Context, string, uint64) (*aggregator.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	if f.quote != nil {
		return f.quote, nil
	}
	return &aggregator.Quote{InAmount: 1_000_000, OutAmount: 2_000_000}, nil
}

func (f *fakeAggregator) Swap(context.Context, string, string, uint64, uint64) (*aggregator.SwapResponse, error) {
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	if f.swap != nil {
		return f.swap, nil
	}
	return &aggregator.SwapResponse{SwapTransaction: "not-valid-base64-tx"}, nil
}

type fakeRPC struct {
	balance     float64
	submitCount int
	confirmErr  error
	tipCount    int
}

func (f *fakeRPC) BalanceUSDC(context.Context, solana.PublicKey) (float64, error) {
	return f.balance, nil
}

func (f *fakeRPC) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (f *fakeRPC) Submit(context.Context, *solana.Transaction) (*solanarpc.SubmitResult, error) {
	f.submitCount++
	return &solanarpc.SubmitResult{Signature: solana.Signature{}}, nil
}

func (f *fakeRPC) SubmitTip(context.Context, *solana.Transaction) { f.tipCount++ }

func (f *fakeRPC) Confirm(context.Context, solana.Signature) error {
	return f.confirmErr
}

type fakeKV struct{}

func (fakeKV) LPopTradeSignal(context.Context) (string, error) { return "", nil }

type fakeClassifier struct{ score float64 }

func (f fakeClassifier) Score(launchevent.LaunchEvent) float64 { return f.score }

type fakeDenylist struct{ sanctioned map[string]bool }

func (f fakeDenylist) IsSanctioned(addr string) bool { return f.sanctioned[addr] }

type fakeMetrics struct {
	submitted int
	confirmed int
}

func (f *fakeMetrics) IncTradesSubmitted(string) { f.submitted++ }
func (f *fakeMetrics) IncTradesConfirmed(string) { f.confirmed++ }

type fakeRiskProvider struct{ cfg config.RiskConfig }

func (f fakeRiskProvider) Snapshot() config.RiskConfig { return f.cfg }

func testSigner(t *testing.T) (solana.PublicKey, func(solana.PublicKey) *solana.PrivateKey) {
	t.Helper()
	wallet := solana.NewWallet()
	return wallet.PublicKey(), func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(wallet.PublicKey()) {
			return &wallet.PrivateKey
		}
		return nil
	}
}

func newTestTrader(t *testing.T, agg AggregatorClient, rpc RPCClient, metrics MetricsSink, slippageOut chan<- float64) *Trader {
	t.Helper()
	pub, lookup := testSigner(t)
	return New(
		rpc,
		agg,
		fakeKV{},
		fakeClassifier{score: 0.9},
		fakeDenylist{},
		metrics,
		pub,
		lookup,
		slippageOut,
		DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{
			PositionSizePercent:      10,
			LiquidityThreshold:       0.5,
			AutoSellProfitMultiplier: 5,
			AutoSellLossPercent:      20,
		}},
		testLogger(),
	)
}

func validEvent() launchevent.LaunchEvent {
	return launchevent.LaunchEvent{
		Mint:        "MINT1",
		Creator:     "CREATOR1",
		HoldersAt60: 100,
		LP:          10,
		Platform:    launchevent.PumpFun,
	}
}

// TestS6OCOFanOutNoopFallback: aggregator rejects both /quote and /swap;
// the pipeline must still submit entry+TP+SL via noop fallback and emit
// exactly one slippage sample of 0.
func TestS6OCOFanOutNoopFallback(t *testing.T) {
	t.Parallel()

	agg := &fakeAggregator{quoteErr: fmt.Errorf("HTTP 500")}
	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	slip := make(chan float64, 1)

	tr := newTestTrader(t, agg, rpc, metrics, slip)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tr.processEvent(ctx, validEvent())

	if metrics.submitted < 3 {
		t.Errorf("trades_submitted incremented %d times, want >= 3", metrics.submitted)
	}
	if metrics.confirmed != 1 {
		t.Errorf("trades_confirmed = %d, want 1", metrics.confirmed)
	}

	select {
	case sample := <-slip:
		if sample != 0 {
			t.Errorf("slippage sample = %v, want 0 (noop legs carry no price)", sample)
		}
	default:
		t.Error("expected one slippage sample to be emitted")
	}
}

func TestProcessEventSkipsDuplicate(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	tr := newTestTrader(t, &fakeAggregator{}, rpc, metrics, make(chan float64, 4))

	ctx := context.Background()
	ev := validEvent()
	tr.processEvent(ctx, ev)
	firstSubmits := metrics.submitted
	tr.processEvent(ctx, ev)

	if metrics.submitted != firstSubmits {
		t.Errorf("duplicate event should have been skipped, submitted went from %d to %d", firstSubmits, metrics.submitted)
	}
}

func TestProcessEventSkipsBelowClassifierThreshold(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	tr := New(
		rpc, &fakeAggregator{}, fakeKV{}, fakeClassifier{score: 0.1}, fakeDenylist{}, metrics,
		solana.PublicKey{}, func(solana.PublicKey) *solana.PrivateKey { return nil },
		make(chan float64, 1), DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{LiquidityThreshold: 0.5}}, testLogger(),
	)

	tr.processEvent(context.Background(), validEvent())

	if metrics.submitted != 0 {
		t.Errorf("low-score event should not have traded, submitted = %d", metrics.submitted)
	}
}

func TestProcessEventSkipsDenylistedAddress(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	tr := New(
		rpc, &fakeAggregator{}, fakeKV{}, fakeClassifier{score: 0.9},
		fakeDenylist{sanctioned: map[string]bool{"CREATOR1": true}}, metrics,
		solana.PublicKey{}, func(solana.PublicKey) *solana.PrivateKey { return nil },
		make(chan float64, 1), DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{LiquidityThreshold: 0.5}}, testLogger(),
	)

	tr.processEvent(context.Background(), validEvent())

	if metrics.submitted != 0 {
		t.Errorf("denylisted event should not have traded, submitted = %d", metrics.submitted)
	}
}

func TestProcessEventSkipsBelowLiquidityThreshold(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	tr := New(
		rpc, &fakeAggregator{}, fakeKV{}, fakeClassifier{score: 0.9}, fakeDenylist{}, metrics,
		solana.PublicKey{}, func(solana.PublicKey) *solana.PrivateKey { return nil },
		make(chan float64, 1), DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{LiquidityThreshold: 100}}, testLogger(),
	)

	ev := validEvent()
	ev.LP = 1
	tr.processEvent(context.Background(), ev)

	if metrics.submitted != 0 {
		t.Errorf("illiquid event should not have traded, submitted = %d", metrics.submitted)
	}
}

func TestProcessEventSkipsPlatformGuardRejection(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	tr := New(
		rpc, &fakeAggregator{}, fakeKV{}, fakeClassifier{score: 0.9}, fakeDenylist{}, metrics,
		solana.PublicKey{}, func(solana.PublicKey) *solana.PrivateKey { return nil },
		make(chan float64, 1), DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{LiquidityThreshold: 0.5}}, testLogger(),
	)

	ev := validEvent()
	ev.Platform = launchevent.LetsBonk
	ev.Mint = "NOTAMATCH"
	tr.processEvent(context.Background(), ev)

	if metrics.submitted != 0 {
		t.Errorf("platform-guard-rejected event should not have traded, submitted = %d", metrics.submitted)
	}
}

func TestManualSignalAppliesComplianceAndPlatformGuard(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	tr := New(
		rpc, &fakeAggregator{}, fakeKV{}, fakeClassifier{score: 0.9},
		fakeDenylist{sanctioned: map[string]bool{"bad-source": true}}, metrics,
		solana.PublicKey{}, func(solana.PublicKey) *solana.PrivateKey { return nil },
		make(chan float64, 1), DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{LiquidityThreshold: 0.5}}, testLogger(),
	)

	payload := `{"action":"buy","token":"MINT9","amount_usdc":50,"max_slippage":100,"source":"bad-source"}`
	var sig ManualSignal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ev := launchevent.LaunchEvent{Mint: sig.Token, Creator: sig.Source, HoldersAt60: 1000, LP: 999999, Platform: launchevent.PumpFun}
	tr.processEvent(context.Background(), ev)

	if metrics.submitted != 0 {
		t.Errorf("manual signal from a denylisted source should not have traded, submitted = %d", metrics.submitted)
	}

	guarded := launchevent.LaunchEvent{Mint: sig.Token, Creator: "clean-source", HoldersAt60: 1000, LP: 999999, Platform: launchevent.LetsBonk}
	tr.processEvent(context.Background(), guarded)

	if metrics.submitted != 0 {
		t.Errorf("manual signal rejected by the LetsBonk platform guard should not have traded, submitted = %d", metrics.submitted)
	}
}

func TestExecuteTradeBroadcastsTipWhenConfigured(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	pub, lookup := testSigner(t)
	tr := New(
		rpc, &fakeAggregator{}, fakeKV{}, fakeClassifier{score: 0.9}, fakeDenylist{}, metrics,
		pub, lookup,
		make(chan float64, 4), DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{
			PositionSizePercent: 10, LiquidityThreshold: 0.5,
			AutoSellProfitMultiplier: 5, AutoSellLossPercent: 20,
			TradeTip: 5000,
		}}, testLogger(),
	)

	tr.processEvent(context.Background(), validEvent())

	if rpc.tipCount != 1 {
		t.Errorf("tipCount = %d, want 1 when TradeTip > 0", rpc.tipCount)
	}
}

func TestExecuteTradeSkipsTipWhenNotConfigured(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{balance: 5000}
	metrics := &fakeMetrics{}
	tr := newTestTrader(t, &fakeAggregator{}, rpc, metrics, make(chan float64, 4))

	tr.processEvent(context.Background(), validEvent())

	if rpc.tipCount != 0 {
		t.Errorf("tipCount = %d, want 0 when TradeTip is unset", rpc.tipCount)
	}
}

func TestBuildExitLegQuotesTokenMint(t *testing.T) {
	t.Parallel()

	var gotMint string
	probe := &quoteCapture{fakeAggregator: &fakeAggregator{}, onQuote: func(outputMint string) { gotMint = outputMint }}
	rpc := &fakeRPC{balance: 5000}
	tr := newTestTrader(t, probe, rpc, &fakeMetrics{}, make(chan float64, 1))

	quote := &aggregator.Quote{InAmount: 1_000_000, OutAmount: 2_000_000}
	if _, _ = tr.buildExitLeg(context.Background(), "TOKENMINT", quote, 1); gotMint != "TOKENMINT" {
		t.Errorf("buildExitLeg quoted outputMint %q, want TOKENMINT", gotMint)
	}
}

type quoteCapture struct {
	*fakeAggregator
	onQuote func(outputMint string)
}

func (q *quoteCapture) Quote(ctx context.Context, outputMint string, amount uint64) (*aggregator.Quote, error) {
	q.onQuote(outputMint)
	return q.fakeAggregator.Quote(ctx, outputMint, amount)
}

func TestClassifierPositiveThresholdIsExclusive(t *testing.T) {
	t.Parallel()
	if classifier.PositiveThreshold != 0.5 {
		t.Fatalf("PositiveThreshold = %v, want 0.5", classifier.PositiveThreshold)
	}

	metrics := &fakeMetrics{}
	tr := New(
		&fakeRPC{balance: 5000}, &fakeAggregator{}, fakeKV{}, fakeClassifier{score: classifier.PositiveThreshold}, fakeDenylist{}, metrics,
		solana.PublicKey{}, func(solana.PublicKey) *solana.PrivateKey { return nil },
		make(chan float64, 1), DefaultPlatformGuards(),
		fakeRiskProvider{cfg: config.RiskConfig{LiquidityThreshold: 0.5}}, testLogger(),
	)
	tr.processEvent(context.Background(), validEvent())

	if metrics.submitted != 0 {
		t.Errorf("score exactly at PositiveThreshold should not trade, submitted = %d", metrics.submitted)
	}
}

