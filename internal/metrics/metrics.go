// Package metrics wraps the Prometheus client library behind a narrow
// Sink interface so the trading/risk core never depends on the metrics
// exposition endpoint directly (the endpoint itself is out of scope; the
// counter/gauge calls the core makes through Sink are in scope).
package metrics

import (
	"crypto/subtle"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink is the narrow API the trading/risk core calls through.
type Sink interface {
	IncTradesSubmitted(platform string)
	IncTradesConfirmed(platform string)
	IncKillSwitch(kind string)
	IncRestarts()
	SetEquityUSDC(v float64)
	SetLastSlippage(v float64)
	SetSlippageThreshold(v float64)
	SetPortfolioStopLossUSD(v float64)
}

// PrometheusSink implements Sink backed by a dedicated registry so tests
// and multiple instances never collide on the default global registry.
type PrometheusSink struct {
	registry *prometheus.Registry

	tradesSubmitted      *prometheus.CounterVec
	tradesConfirmed      *prometheus.CounterVec
	killSwitchTotal      *prometheus.CounterVec
	restartsTotal        prometheus.Counter
	equityUSDC           prometheus.Gauge
	lastSlippage         prometheus.Gauge
	slippageThreshold    prometheus.Gauge
	portfolioStopLossUSD prometheus.Gauge
}

// New builds a PrometheusSink with its own registry.
func New() *PrometheusSink {
	reg := prometheus.NewRegistry()

	s := &PrometheusSink{
		registry: reg,
		tradesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trades_submitted", Help: "Trades submitted for execution, by platform.",
		}, []string{"platform"}),
		tradesConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trades_confirmed", Help: "Trades confirmed on-chain, by platform.",
		}, []string{"platform"}),
		killSwitchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "killswitch_total", Help: "Kill-switch signals emitted, by kind.",
		}, []string{"kind"}),
		restartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restarts_total", Help: "Process restarts observed.",
		}),
		equityUSDC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "risk_equity_usdc", Help: "Current account equity in USDC.",
		}),
		lastSlippage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "risk_last_slippage", Help: "Most recent realised slippage sample.",
		}),
		slippageThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "risk_slippage_threshold", Help: "Current slippage breach threshold (k*sigma).",
		}),
		portfolioStopLossUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "risk_portfolio_stop_loss_usd", Help: "Current portfolio stop-loss level in USD.",
		}),
	}

	reg.MustRegister(
		s.tradesSubmitted, s.tradesConfirmed, s.killSwitchTotal, s.restartsTotal,
		s.equityUSDC, s.lastSlippage, s.slippageThreshold, s.portfolioStopLossUSD,
	)
	return s
}

func (s *PrometheusSink) IncTradesSubmitted(platform string) { s.tradesSubmitted.WithLabelValues(platform).Inc() }
func (s *PrometheusSink) IncTradesConfirmed(platform string) { s.tradesConfirmed.WithLabelValues(platform).Inc() }
func (s *PrometheusSink) IncKillSwitch(kind string)          { s.killSwitchTotal.WithLabelValues(kind).Inc() }
func (s *PrometheusSink) IncRestarts()                       { s.restartsTotal.Inc() }
func (s *PrometheusSink) SetEquityUSDC(v float64)            { s.equityUSDC.Set(v) }
func (s *PrometheusSink) SetLastSlippage(v float64)          { s.lastSlippage.Set(v) }
func (s *PrometheusSink) SetSlippageThreshold(v float64)     { s.slippageThreshold.Set(v) }
func (s *PrometheusSink) SetPortfolioStopLossUSD(v float64)  { s.portfolioStopLossUSD.Set(v) }

// Handler returns the /metrics HTTP handler for this sink's registry,
// wrapped with HTTP basic auth if basicAuth is non-empty ("USER:PASS").
func (s *PrometheusSink) Handler(basicAuth string) http.Handler {
	h := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	if basicAuth == "" {
		return h
	}
	user, pass, ok := splitBasicAuth(basicAuth)
	if !ok {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, hasAuth := r.BasicAuth()
		if !hasAuth || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func splitBasicAuth(s string) (user, pass string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// NoopSink discards every call; useful in tests that don't care about
// metrics but need to satisfy the Sink interface.
type NoopSink struct{}

func (NoopSink) IncTradesSubmitted(string)      {}
func (NoopSink) IncTradesConfirmed(string)      {}
func (NoopSink) IncKillSwitch(string)           {}
func (NoopSink) IncRestarts()                   {}
func (NoopSink) SetEquityUSDC(float64)          {}
func (NoopSink) SetLastSlippage(float64)        {}
func (NoopSink) SetSlippageThreshold(float64)   {}
func (NoopSink) SetPortfolioStopLossUSD(float64) {}
