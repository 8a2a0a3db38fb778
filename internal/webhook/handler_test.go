package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrien-king/questrade-bot/internal/cooldown"
	"github.com/adrien-king/questrade-bot/internal/engine"
	"github.com/adrien-king/questrade-bot/internal/execution"
	"github.com/adrien-king/questrade-bot/internal/ledger"
	"github.com/adrien-king/questrade-bot/internal/sizing"
)

func newTestServer(t *testing.T, globalCooldown time.Duration) *Server {
	t.Helper()
	store := ledger.NewMemoryStore()
	eng := engine.New(
		engine.Config{DryRun: true, DefaultStopPct: 2.0},
		engine.Deps{
			Sizer:  sizing.Engine{PositionDollars: 1000, RiskPerTrade: 50},
			Guard:  cooldown.NewGuard(globalCooldown, 0),
			Store:  store,
			Audit:  store,
			Quotes: nil,
			Exec:   execution.NewSimulator(zerolog.Nop()),
		},
		zerolog.Nop(),
	)
	return NewServer(eng, zerolog.Nop(), Health{DryRun: true, Ledger: "memory"})
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tv", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.R.ServeHTTP(rec, req)
	return rec
}

func TestPostAlertDryRunEntry(t *testing.T) {
	s := newTestServer(t, 0)

	rec := post(t, s, `{"symbol":"ABC","event":"BUY","side":"long","risk_stop_pct":2.0,"price":10.00}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var dec engine.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &dec); err != nil {
		t.Fatalf("response did not decode: %v", err)
	}
	if !dec.OK || dec.Status != engine.StatusDryRun || dec.Shares != 100 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
}

func TestPostAlertIgnoredDuplicate(t *testing.T) {
	s := newTestServer(t, 0)
	body := `{"symbol":"ABC","event":"BUY","side":"long","price":10.00}`

	post(t, s, body)
	rec := post(t, s, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("ignored duplicate should be 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already in position") {
		t.Fatalf("expected ignore reason in body, got %s", rec.Body.String())
	}
}

func TestPostAlertBadJSON(t *testing.T) {
	s := newTestServer(t, 0)
	rec := post(t, s, `{"symbol":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestPostAlertUnsupportedSide(t *testing.T) {
	s := newTestServer(t, 0)
	rec := post(t, s, `{"symbol":"ABC","event":"BUY","side":"short","price":10.00}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short side, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported_side") {
		t.Fatalf("expected unsupported_side reason, got %s", rec.Body.String())
	}
}

func TestPostAlertCooldown(t *testing.T) {
	s := newTestServer(t, time.Minute)

	post(t, s, `{"symbol":"ABC","event":"BUY","side":"long","price":10.00}`)
	rec := post(t, s, `{"symbol":"XYZ","event":"BUY","side":"long","price":5.00}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 during cooldown, got %d", rec.Code)
	}
}

func TestGetTVMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/tv", nil)
	rec := httptest.NewRecorder()
	s.R.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /tv, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.R.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("health did not decode: %v", err)
	}
	if out["ok"] != true || out["dry_run"] != true || out["ledger"] != "memory" {
		t.Fatalf("unexpected health payload: %+v", out)
	}
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.R.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("expected plain OK, got %d %q", rec.Code, rec.Body.String())
	}
}
