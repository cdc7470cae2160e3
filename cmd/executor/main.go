// Command executor is the entry point for the launch-event trading
// executor.
//
// Architecture:
//
//	main.go                     — entry point: loads config, wires every
//	                               subsystem, waits for SIGINT/SIGTERM
//	internal/feed               — platform log-subscription ingestion
//	internal/classifier         — pure scoring + optional sandboxed module
//	internal/compliance         — denylist gate
//	internal/trader             — the 12-step per-event pipeline
//	internal/risk               — equity floor, slippage sentinel, and
//	                               portfolio stop-loss guards
//	internal/killlistener       — first-signal process termination
//	internal/aggregator         — Jupiter-shaped DEX aggregator client
//	internal/solanarpc          — thin Solana JSON-RPC client
//	internal/signer             — keypair loading
//	internal/kv                 — Redis-backed config/manual-signal store
//	internal/metrics            — Prometheus exposition
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"launchexec/internal/aggregator"
	"launchexec/internal/classifier"
	"launchexec/internal/compliance"
	"launchexec/internal/config"
	"launchexec/internal/denylist"
	"launchexec/internal/feed"
	"launchexec/internal/killlistener"
	"launchexec/internal/launchevent"
	"launchexec/internal/kv"
	"launchexec/internal/metrics"
	"launchexec/internal/risk"
	"launchexec/internal/signer"
	"launchexec/internal/solanarpc"
	"launchexec/internal/trader"
)

func main() {
	solanaURL := flag.String("solana-url", "", "override SOLANA_RPC_URL")
	replayPath := flag.String("replay", "", "replay LaunchEvents from a JSON/JSONL file instead of live feeds")
	configPath := flag.String("config", "", "optional config file read before env overrides")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *solanaURL != "" {
		cfg.SolanaRPCURL = *solanaURL
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	sign, err := signer.Load(cfg.KeypairPath)
	if err != nil {
		logger.Error("failed to load signing key", "error", err)
		os.Exit(1)
	}

	endpoints := append([]string{cfg.SolanaRPCURL}, cfg.SolanaRPCURLs...)
	rpcClient, err := solanarpc.New(endpoints)
	if err != nil {
		logger.Error("failed to build solana RPC client", "error", err)
		os.Exit(1)
	}

	aggClient := aggregator.New(cfg.JupiterAPI)

	store, err := kv.New(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to key-value store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var denylistModule *compliance.Denylist
	if cfg.OFACDenylist != "" {
		denylistModule = compliance.NewDenylist(cfg.OFACDenylist)
	} else {
		denylistModule = denylist.LoadFromEnv()
	}

	clf := classifier.New()

	sink := metrics.New()
	go func() {
		addr := cfg.MetricsBind
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := runMetricsServer(addr, sink.Handler(cfg.MetricsBasicAuth)); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := risk.NewBroadcaster()
	slippageIn := make(chan float64, 64)

	equityGuard := risk.NewEquityFloorGuard(
		func(ctx context.Context) (float64, error) { return rpcClient.BalanceUSDC(ctx, sign.PublicKey()) },
		store, 0, sink, broadcaster, logger,
	)
	portfolioGuard := risk.NewPortfolioStopLossGuard(
		func(ctx context.Context) (float64, error) { return rpcClient.BalanceUSDC(ctx, sign.PublicKey()) },
		store, 0, sink, broadcaster, logger,
	)
	slippageGuard := risk.NewSlippageSentinel(slippageIn, store, sink, broadcaster, logger)

	supervisor := &risk.Supervisor{
		EquityFloor:       equityGuard,
		PortfolioStopLoss: portfolioGuard,
		Slippage:          slippageGuard,
	}
	go supervisor.Run(ctx)

	// listener.Run exits the process directly via os.Exit(1) on the first
	// kill-switch signal; on ctx cancellation it just returns.
	listener := killlistener.New(broadcaster, sink, logger)
	go listener.Run(ctx)

	events := make(chan launchevent.LaunchEvent, feed.EventsBufferSize)

	replayDone := make(chan struct{})
	if *replayPath != "" {
		source := feed.NewReplaySource(*replayPath)
		go func() {
			runSource(ctx, source, events, logger)
			close(replayDone)
		}()
	} else {
		for _, p := range cfg.Platforms {
			platform, err := launchevent.ParsePlatform(p)
			if err != nil {
				logger.Warn("skipping unknown platform", "platform", p, "error", err)
				continue
			}
			programID, ok := launchevent.ProgramIDEnvVar(platform)
			if !ok {
				continue
			}
			pid := os.Getenv(programID)
			if pid == "" {
				logger.Warn("no program id configured for platform, skipping", "platform", platform, "env_var", programID)
				continue
			}
			source := feed.NewPlatformFeed(platform, cfg.SolanaRPCURL, pid, logger)
			go runSource(ctx, source, events, logger)
		}
	}

	t := trader.New(
		rpcClient, aggClient, store, clf, denylistModule, sink,
		sign.PublicKey(), sign.KeyLookup(), slippageIn,
		trader.DefaultPlatformGuards(), cfg, logger,
	)
	go t.Run(ctx, events)

	logger.Info("launch executor started",
		"platforms", strings.Join(cfg.Platforms, ","),
		"replay", *replayPath != "",
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-replayDone:
		logger.Info("replay exhausted, shutting down")
		cancel()
	}
}

func runSource(ctx context.Context, source feed.Source, events chan<- launchevent.LaunchEvent, logger *slog.Logger) {
	if err := source.Run(ctx, events); err != nil && ctx.Err() == nil {
		logger.Error("feed source stopped", "error", err)
	}
}

func runMetricsServer(addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	return http.ListenAndServe(addr, mux)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
