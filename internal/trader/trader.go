// Package trader implements the per-event trading pipeline: dedup,
// enrichment, classification, compliance, liquidity and platform gates,
// position sizing, OCO order construction, submission and confirmation.
// It multiplexes launch events from the feed with a manual-signal inlet
// popped from the key-value store, both converging on the same
// execute-trade procedure.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"

	"launchexec/internal/aggregator"
	"launchexec/internal/classifier"
	"launchexec/internal/config"
	"launchexec/internal/launchevent"
	"launchexec/internal/solanarpc"
)

const (
	dedupFlushInterval   = 60 * time.Second
	manualPollInterval   = time.Second
	riskRefreshInterval  = 5 * time.Minute
	probeAmountUSDCMinor = 10_000_000 // 10 USDC, used to estimate liquidity when the feed didn't carry lp
	minFallbackEquityUSD = 1000.0
	usdcScale            = 1_000_000.0
)

// AggregatorClient is the subset of aggregator.Client the trader needs.
type AggregatorClient interface {
	Quote(ctx context.Context, outputMint string, amount uint64) (*aggregator.Quote, error)
	Swap(ctx context.Context, outputMint, userPubkey string, amount, minOutAmount uint64) (*aggregator.SwapResponse, error)
}

// RPCClient is the subset of solanarpc.Client the trader needs.
type RPCClient interface {
	BalanceUSDC(ctx context.Context, pub solana.PublicKey) (float64, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	Submit(ctx context.Context, tx *solana.Transaction) (*solanarpc.SubmitResult, error)
	SubmitTip(ctx context.Context, tx *solana.Transaction)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// KVStore is the subset of kv.Store the trader needs.
type KVStore interface {
	LPopTradeSignal(ctx context.Context) (string, error)
}

// Classifier scores a launch event; satisfied by *classifier.Classifier.
type Classifier interface {
	Score(e launchevent.LaunchEvent) float64
}

// Denylist checks an address against the compliance denylist.
type Denylist interface {
	IsSanctioned(addr string) bool
}

// MetricsSink is the subset of metrics.Sink the trader needs.
type MetricsSink interface {
	IncTradesSubmitted(platform string)
	IncTradesConfirmed(platform string)
}

// RiskConfigProvider supplies the liquidity/sizing/auto-sell parameters,
// refreshed periodically rather than read per event.
type RiskConfigProvider interface {
	Snapshot() config.RiskConfig
}

// PlatformGuard is a pluggable per-platform acceptance predicate (step 6).
type PlatformGuard func(ev launchevent.LaunchEvent) bool

// DefaultPlatformGuards returns the built-in platform guards: LetsBonk
// requires the mint to contain "bonk" case-insensitively; PumpFun has no
// extra guard beyond the shared pipeline.
func DefaultPlatformGuards() map[launchevent.Platform]PlatformGuard {
	return map[launchevent.Platform]PlatformGuard{
		launchevent.LetsBonk: func(ev launchevent.LaunchEvent) bool {
			return strings.Contains(strings.ToLower(ev.Mint), "bonk")
		},
	}
}

func alwaysAccept(launchevent.LaunchEvent) bool { return true }

// ManualSignal is the JSON payload popped from the trade_signals list.
type ManualSignal struct {
	Action      string  `json:"action"`
	Token       string  `json:"token"`
	AmountUSDC  float64 `json:"amount_usdc"`
	MaxSlippage int     `json:"max_slippage"`
	Source      string  `json:"source"`
	Platform    string  `json:"platform"`
}

// Trader owns the full trading pipeline for one process.
type Trader struct {
	rpc        RPCClient
	aggClient  AggregatorClient
	kv         KVStore
	classifier Classifier
	denylist   Denylist
	metrics    MetricsSink
	logger     *slog.Logger

	signerPub solana.PublicKey
	keyLookup func(solana.PublicKey) *solana.PrivateKey

	slippageOut chan<- float64

	platformGuards map[launchevent.Platform]PlatformGuard

	riskProvider RiskConfigProvider
	riskMu       sync.RWMutex
	risk         config.RiskConfig

	// dedup is owned exclusively by Run's goroutine: both the feed
	// branch and the manual-signal branch of the same select loop
	// mutate it, so no lock is needed.
	dedup map[launchevent.DedupKey]struct{}
}

// New builds a Trader. signerPub/keyLookup come from signer.Signer.
func New(
	rpc RPCClient,
	aggClient AggregatorClient,
	kv KVStore,
	classifier Classifier,
	denylist Denylist,
	metrics MetricsSink,
	signerPub solana.PublicKey,
	keyLookup func(solana.PublicKey) *solana.PrivateKey,
	slippageOut chan<- float64,
	platformGuards map[launchevent.Platform]PlatformGuard,
	riskProvider RiskConfigProvider,
	logger *slog.Logger,
) *Trader {
	t := &Trader{
		rpc:            rpc,
		aggClient:      aggClient,
		kv:             kv,
		classifier:     classifier,
		denylist:       denylist,
		metrics:        metrics,
		logger:         logger.With("component", "trader"),
		signerPub:      signerPub,
		keyLookup:      keyLookup,
		slippageOut:    slippageOut,
		platformGuards: platformGuards,
		riskProvider:   riskProvider,
		dedup:          make(map[launchevent.DedupKey]struct{}),
	}
	t.refreshRiskConfig()
	return t
}

// Run multiplexes the launch-event channel and the manual-signal poll
// until ctx is cancelled. The risk config is already populated by New;
// this loop only needs to keep it refreshed on the ticker cadence.
func (t *Trader) Run(ctx context.Context, events <-chan launchevent.LaunchEvent) {
	dedupFlush := time.NewTicker(dedupFlushInterval)
	defer dedupFlush.Stop()
	manualPoll := time.NewTicker(manualPollInterval)
	defer manualPoll.Stop()
	riskRefresh := time.NewTicker(riskRefreshInterval)
	defer riskRefresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			t.processEvent(ctx, ev)
		case <-manualPoll.C:
			t.pollManualSignal(ctx)
		case <-dedupFlush.C:
			t.dedup = make(map[launchevent.DedupKey]struct{})
		case <-riskRefresh.C:
			t.refreshRiskConfig()
		}
	}
}

func (t *Trader) refreshRiskConfig() {
	snap := t.riskProvider.Snapshot()
	t.riskMu.Lock()
	t.risk = snap
	t.riskMu.Unlock()
}

func (t *Trader) currentRiskConfig() config.RiskConfig {
	t.riskMu.RLock()
	defer t.riskMu.RUnlock()
	return t.risk
}

func (t *Trader) pollManualSignal(ctx context.Context) {
	payload, err := t.kv.LPopTradeSignal(ctx)
	if err != nil {
		t.logger.Warn("manual signal poll failed", "error", err)
		return
	}
	if payload == "" {
		return
	}

	var sig ManualSignal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		t.logger.Warn("manual signal decode failed", "error", err)
		return
	}
	if sig.Action != "buy" {
		return
	}

	platform := launchevent.Platform(sig.Platform)
	if platform == "" {
		platform = launchevent.PumpFun
	}

	ev := launchevent.LaunchEvent{
		Mint:           sig.Token,
		Creator:        sig.Source,
		HoldersAt60:    1000,
		LP:             999999,
		Platform:       platform,
		AmountUSDC:     sig.AmountUSDC,
		MaxSlippageBps: sig.MaxSlippage,
	}
	if !ev.Valid() {
		t.logger.Warn("manual signal missing token or source")
		return
	}

	t.processEvent(ctx, ev)
}

// processEvent runs steps 1-6 of the pipeline and, if all gates pass,
// hands off to executeTrade for steps 7-12.
func (t *Trader) processEvent(ctx context.Context, ev launchevent.LaunchEvent) {
	logger := t.logger.With("mint", ev.Mint, "platform", ev.Platform)

	key := ev.Key()
	if _, seen := t.dedup[key]; seen {
		return
	}
	t.dedup[key] = struct{}{}

	if err := t.enrich(ctx, &ev); err != nil {
		logger.Warn("skip: enrich failed", "error", err)
		return
	}

	if t.classifier.Score(ev) <= classifier.PositiveThreshold {
		return
	}

	if t.denylist.IsSanctioned(ev.Creator) || t.denylist.IsSanctioned(ev.Mint) {
		logger.Warn("skip: denylisted address")
		return
	}

	risk := t.currentRiskConfig()
	if ev.LP < risk.LiquidityThreshold {
		return
	}

	guard, ok := t.platformGuards[ev.Platform]
	if !ok {
		guard = alwaysAccept
	}
	if !guard(ev) {
		logger.Info("skip: platform guard rejected event")
		return
	}

	t.executeTrade(ctx, ev, risk)
}

// enrich fills in lp when the feed didn't carry one, using an aggregator
// quote on a small probe amount as a liquidity-depth proxy. holders_60
// is left as parsed by the feed; no RPC surface in scope here exposes a
// holder count.
func (t *Trader) enrich(ctx context.Context, ev *launchevent.LaunchEvent) error {
	if ev.LP > 0 {
		return nil
	}
	q, err := t.aggClient.Quote(ctx, ev.Mint, probeAmountUSDCMinor)
	if err != nil {
		return fmt.Errorf("quote probe: %w", err)
	}
	ev.LP = q.Price() * probeAmountUSDCMinor / usdcScale
	return nil
}

func (t *Trader) positionSizeMinor(ctx context.Context, risk config.RiskConfig) uint64 {
	equity, err := t.rpc.BalanceUSDC(ctx, t.signerPub)
	if err != nil || equity < minFallbackEquityUSD {
		equity = minFallbackEquityUSD
	}
	sizeUSDC := equity * risk.PositionSizePercent / 100
	return uint64(sizeUSDC * usdcScale)
}

func (t *Trader) executeTrade(ctx context.Context, ev launchevent.LaunchEvent, risk config.RiskConfig) {
	logger := t.logger.With("mint", ev.Mint, "platform", ev.Platform)

	sizeMinor := t.positionSizeMinor(ctx, risk)
	if ev.AmountUSDC > 0 {
		sizeMinor = uint64(ev.AmountUSDC * usdcScale)
	}
	if sizeMinor == 0 {
		logger.Warn("skip: zero position size computed")
		return
	}

	if risk.TradeTip > 0 {
		t.submitTip(ctx, uint64(risk.TradeTip))
	}

	entryQuote, entryTx := t.buildSwap(ctx, ev.Mint, sizeMinor, 0)
	if entryTx == nil {
		logger.Error("fatal: could not build even a noop entry transaction")
		return
	}

	result, err := t.rpc.Submit(ctx, entryTx)
	if err != nil {
		logger.Error("fatal: entry submission rejected by every endpoint", "error", err)
		return
	}
	t.metrics.IncTradesSubmitted(string(ev.Platform))

	if err := t.rpc.Confirm(ctx, result.Signature); err != nil {
		logger.Error("fatal: entry confirmation failed", "error", err, "signature", result.Signature.String())
		return
	}
	t.metrics.IncTradesConfirmed(string(ev.Platform))

	tpMinOut := uint64(float64(sizeMinor) * risk.AutoSellProfitMultiplier)
	slMinOut := uint64(float64(sizeMinor) * (1 - risk.AutoSellLossPercent/100))

	tpQuote, tpTx := t.buildExitLeg(ctx, ev.Mint, entryQuote, tpMinOut)
	_, slTx := t.buildExitLeg(ctx, ev.Mint, entryQuote, slMinOut)

	t.fanOutSubmit(ctx, ev.Platform, tpTx)
	t.fanOutSubmit(ctx, ev.Platform, slTx)

	t.emitSlippageSample(entryQuote, tpQuote)
}

// buildSwap quotes and requests a swap transaction for amount of USDC
// into outputMint, falling back to a signed noop transaction on any
// failure so the telemetry path stays exercised without taking risk.
func (t *Trader) buildSwap(ctx context.Context, outputMint string, amount, minOutAmount uint64) (*aggregator.Quote, *solana.Transaction) {
	quote, err := t.aggClient.Quote(ctx, outputMint, amount)
	if err != nil {
		t.logger.Warn("swap quote failed, falling back to noop", "error", err)
		return nil, t.noopOrNil(ctx)
	}

	resp, err := t.aggClient.Swap(ctx, outputMint, t.signerPub.String(), amount, minOutAmount)
	if err != nil {
		t.logger.Warn("swap build failed, falling back to noop", "error", err)
		return quote, t.noopOrNil(ctx)
	}

	tx, err := t.decodeAndSign(ctx, resp.SwapTransaction)
	if err != nil {
		t.logger.Warn("swap decode/sign failed, falling back to noop", "error", err)
		return quote, t.noopOrNil(ctx)
	}
	return quote, tx
}

// buildExitLeg requotes mint using minOutAmount as the aggregator hint for
// the TP/SL threshold, mirroring the entry leg's wire shape.
func (t *Trader) buildExitLeg(ctx context.Context, mint string, entryQuote *aggregator.Quote, minOutAmount uint64) (*aggregator.Quote, *solana.Transaction) {
	if entryQuote == nil || entryQuote.OutAmount == 0 {
		return nil, t.noopOrNil(ctx)
	}
	return t.buildSwap(ctx, mint, entryQuote.OutAmount, minOutAmount)
}

// submitTip builds and broadcasts a standalone compute-budget-price
// transaction ahead of the entry submission. The configured tip is passed
// unchanged as the compute-unit price, which the compute-budget program
// reads in micro-lamports per CU. Build failures are logged and skip the
// tip; broadcast failures are ignored by SubmitTip without logging: the
// tip carries no nonce relationship to the transaction it precedes and is
// best-effort only.
func (t *Trader) submitTip(ctx context.Context, microLamports uint64) {
	tx, err := t.buildTipTransaction(ctx, microLamports)
	if err != nil {
		t.logger.Warn("tip transaction build failed, skipping tip", "error", err)
		return
	}
	t.rpc.SubmitTip(ctx, tx)
}

func (t *Trader) buildTipTransaction(ctx context.Context, microLamports uint64) (*solana.Transaction, error) {
	blockhash, err := t.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}
	instr := computebudget.NewSetComputeUnitPriceInstruction(microLamports).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{instr}, blockhash, solana.TransactionPayer(t.signerPub))
	if err != nil {
		return nil, fmt.Errorf("build tip transaction: %w", err)
	}
	if _, err := tx.Sign(t.keyLookup); err != nil {
		return nil, fmt.Errorf("sign tip transaction: %w", err)
	}
	return tx, nil
}

func (t *Trader) noopOrNil(ctx context.Context) *solana.Transaction {
	tx, err := t.buildNoopTransaction(ctx)
	if err != nil {
		t.logger.Error("fatal: cannot build noop fallback transaction", "error", err)
		return nil
	}
	return tx
}

func (t *Trader) decodeAndSign(ctx context.Context, swapTransactionBase64 string) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromBase64(swapTransactionBase64)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	blockhash, err := t.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}
	tx.Message.RecentBlockhash = blockhash
	if _, err := tx.Sign(t.keyLookup); err != nil {
		return nil, fmt.Errorf("sign swap transaction: %w", err)
	}
	return tx, nil
}

func (t *Trader) buildNoopTransaction(ctx context.Context) (*solana.Transaction, error) {
	blockhash, err := t.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}
	instr := system.NewTransferInstruction(0, t.signerPub, t.signerPub).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{instr}, blockhash, solana.TransactionPayer(t.signerPub))
	if err != nil {
		return nil, fmt.Errorf("build noop transaction: %w", err)
	}
	if _, err := tx.Sign(t.keyLookup); err != nil {
		return nil, fmt.Errorf("sign noop transaction: %w", err)
	}
	return tx, nil
}

func (t *Trader) fanOutSubmit(ctx context.Context, platform launchevent.Platform, tx *solana.Transaction) {
	if tx == nil {
		return
	}
	if _, err := t.rpc.Submit(ctx, tx); err != nil {
		t.logger.Warn("oco leg submission failed", "error", err)
		return
	}
	t.metrics.IncTradesSubmitted(string(platform))
}

// emitSlippageSample computes slip = (tp.price/entry.price) - 1 when both
// prices are positive, 0 otherwise, and sends it on the slippage channel.
// The send is wrapped in a recover so a closed channel drops the sample
// silently instead of panicking the trading loop.
func (t *Trader) emitSlippageSample(entryQuote, tpQuote *aggregator.Quote) {
	defer func() { _ = recover() }()

	var slip float64
	if entryQuote != nil && tpQuote != nil {
		entryPrice := entryQuote.Price()
		tpPrice := tpQuote.Price()
		if entryPrice > 0 && tpPrice > 0 {
			slip = tpPrice/entryPrice - 1
		}
	}

	select {
	case t.slippageOut <- slip:
	default:
	}
}
