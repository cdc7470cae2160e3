package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusSinkExposesMetrics(t *testing.T) {
	t.Parallel()

	s := New()
	s.IncTradesSubmitted("pumpfun")
	s.IncKillSwitch("slippage")
	s.SetEquityUSDC(1234.5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler("").ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "trades_submitted") {
		t.Error("expected trades_submitted in exposition output")
	}
	if !strings.Contains(body, "risk_equity_usdc 1234.5") {
		t.Error("expected risk_equity_usdc gauge value in exposition output")
	}
}

func TestHandlerRequiresBasicAuth(t *testing.T) {
	t.Parallel()

	s := New()
	handler := s.Handler("admin:secret")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without credentials", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req2.SetBasicAuth("admin", "secret")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with correct credentials", rec2.Code)
	}
}
