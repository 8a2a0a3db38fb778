// Package config exposes strongly typed application configuration loaded from
// YAML, with brokerage credentials overlaid from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Trading holds the sizing policy and execution mode, fixed at startup.
type Trading struct {
	DryRun              bool    `yaml:"dry_run"`
	UseRiskSizing       bool    `yaml:"use_risk_sizing"`
	PositionDollars     float64 `yaml:"position_dollars"`
	RiskPerTrade        float64 `yaml:"risk_per_trade"`
	MaxPositionUSD      float64 `yaml:"max_position_usd"`
	DefaultStopPct      float64 `yaml:"default_stop_pct"`
	QuoteFallbackDryRun bool    `yaml:"quote_fallback_dry_run"`
}

// Cooldown sets the anti-spam windows in seconds; zero disables a window.
type Cooldown struct {
	GlobalSec int `yaml:"global_sec"`
	SymbolSec int `yaml:"symbol_sec"`
}

// Ledger selects where positions, trades, and audit rows persist. An empty
// sqlite path falls back to the in-memory store (state lost on restart).
type Ledger struct {
	SQLitePath     string `yaml:"sqlite_path"`
	AuditJSONLPath string `yaml:"audit_jsonl_path"`
}

// Questrade describes the brokerage connection. The refresh token decides
// practice vs live on the Questrade side; Practice here is informational.
type Questrade struct {
	LoginBaseURL  string `yaml:"login_base_url"`
	AccountNumber string `yaml:"account_number"`
	RefreshToken  string `yaml:"refresh_token"`
	Practice      bool   `yaml:"practice"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Trading   Trading   `yaml:"trading"`
	Cooldown  Cooldown  `yaml:"cooldown"`
	Ledger    Ledger    `yaml:"ledger"`
	Questrade Questrade `yaml:"questrade"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.ListenAddr == "" {
		c.App.ListenAddr = ":8000"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Trading.PositionDollars == 0 {
		c.Trading.PositionDollars = 1000
	}
	if c.Trading.RiskPerTrade == 0 {
		c.Trading.RiskPerTrade = 50
	}
	if c.Trading.DefaultStopPct == 0 {
		c.Trading.DefaultStopPct = 2.0
	}
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Secrets are brokerage credentials sourced from the environment so they stay
// out of the config file. A .env file is honored when present.
type Secrets struct {
	RefreshToken  string `env:"QUESTRADE_REFRESH_TOKEN"`
	AccountNumber string `env:"QUESTRADE_ACCOUNT_NUMBER"`
}

// LoadSecrets loads .env (best effort) and parses the secret env vars.
func LoadSecrets() (Secrets, error) {
	_ = godotenv.Load()
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// ApplySecrets overrides Questrade credentials with any set in the
// environment. Env wins over the file.
func (c *Config) ApplySecrets(s Secrets) {
	if s.RefreshToken != "" {
		c.Questrade.RefreshToken = s.RefreshToken
	}
	if s.AccountNumber != "" {
		c.Questrade.AccountNumber = s.AccountNumber
	}
}
