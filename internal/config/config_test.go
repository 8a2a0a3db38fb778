package config

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "questrade-bot-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.MetricsAddr != ":9100" {
		t.Fatalf("unexpected App.MetricsAddr: %s", cfg.App.MetricsAddr)
	}
	if !cfg.Trading.DryRun {
		t.Fatalf("expected dry_run enabled")
	}
	if !cfg.Trading.UseRiskSizing {
		t.Fatalf("expected risk sizing enabled")
	}
	if cfg.Trading.PositionDollars != 1000 {
		t.Fatalf("unexpected position dollars: %.2f", cfg.Trading.PositionDollars)
	}
	if cfg.Trading.RiskPerTrade != 50 {
		t.Fatalf("unexpected risk per trade: %.2f", cfg.Trading.RiskPerTrade)
	}
	if cfg.Trading.MaxPositionUSD != 2500 {
		t.Fatalf("unexpected max position: %.2f", cfg.Trading.MaxPositionUSD)
	}
	if cfg.Trading.DefaultStopPct != 2.0 {
		t.Fatalf("unexpected default stop pct: %.2f", cfg.Trading.DefaultStopPct)
	}
	if cfg.Cooldown.GlobalSec != 5 || cfg.Cooldown.SymbolSec != 30 {
		t.Fatalf("unexpected cooldowns: %+v", cfg.Cooldown)
	}
	if cfg.Ledger.SQLitePath != "data/ledger.db" {
		t.Fatalf("unexpected sqlite path: %s", cfg.Ledger.SQLitePath)
	}
	if cfg.Questrade.AccountNumber != "12345678" {
		t.Fatalf("unexpected account number: %s", cfg.Questrade.AccountNumber)
	}
	if !cfg.Questrade.Practice {
		t.Fatalf("expected practice flag")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if *reloaded != *cfg {
		t.Fatalf("round trip mismatch: got %+v want %+v", reloaded, cfg)
	}

	if err := Save(path, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	if cfg.App.ListenAddr != ":8000" {
		t.Fatalf("unexpected listen addr default: %s", cfg.App.ListenAddr)
	}
	if cfg.Trading.DefaultStopPct != 2.0 {
		t.Fatalf("unexpected stop pct default: %.2f", cfg.Trading.DefaultStopPct)
	}
	if cfg.Trading.PositionDollars != 1000 {
		t.Fatalf("unexpected position dollars default: %.2f", cfg.Trading.PositionDollars)
	}
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{Questrade: Questrade{RefreshToken: "file-token", AccountNumber: "file-acct"}}

	cfg.ApplySecrets(Secrets{RefreshToken: "env-token"})
	if cfg.Questrade.RefreshToken != "env-token" {
		t.Fatalf("expected env token to win, got %s", cfg.Questrade.RefreshToken)
	}
	if cfg.Questrade.AccountNumber != "file-acct" {
		t.Fatalf("expected unset env var to keep file value, got %s", cfg.Questrade.AccountNumber)
	}
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv("QUESTRADE_REFRESH_TOKEN", "tok-123")
	t.Setenv("QUESTRADE_ACCOUNT_NUMBER", "9999")

	s, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets returned error: %v", err)
	}
	if s.RefreshToken != "tok-123" || s.AccountNumber != "9999" {
		t.Fatalf("unexpected secrets: %+v", s)
	}
}
