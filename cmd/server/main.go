package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/adrien-king/questrade-bot/internal/broker"
	"github.com/adrien-king/questrade-bot/internal/config"
	"github.com/adrien-king/questrade-bot/internal/cooldown"
	"github.com/adrien-king/questrade-bot/internal/engine"
	"github.com/adrien-king/questrade-bot/internal/execution"
	"github.com/adrien-king/questrade-bot/internal/ledger"
	"github.com/adrien-king/questrade-bot/internal/metrics"
	"github.com/adrien-king/questrade-bot/internal/sizing"
	"github.com/adrien-king/questrade-bot/internal/util"
	"github.com/adrien-king/questrade-bot/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	secrets, err := config.LoadSecrets()
	if err != nil {
		log.Fatal().Err(err).Msg("load secrets")
	}
	cfg.ApplySecrets(secrets)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Ledger: sqlite is the durable source of truth; the in-memory store is
	// an explicit best-effort fallback that loses state on restart.
	var store ledger.Store
	var auditSinks ledger.MultiSink
	ledgerKind := "memory"
	if cfg.Ledger.SQLitePath != "" {
		sqlStore, err := ledger.NewSQLiteStore(cfg.Ledger.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Ledger.SQLitePath).Msg("open ledger")
		}
		defer sqlStore.Close()
		store = sqlStore
		auditSinks = append(auditSinks, sqlStore)
		ledgerKind = "sqlite"
	} else {
		log.Warn().Msg("no sqlite path configured; positions will not survive restarts")
		memStore := ledger.NewMemoryStore()
		store = memStore
		auditSinks = append(auditSinks, memStore)
	}
	if cfg.Ledger.AuditJSONLPath != "" {
		rec, err := ledger.NewJSONLRecorder(cfg.Ledger.AuditJSONLPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Ledger.AuditJSONLPath).Msg("open audit recorder")
		}
		defer rec.Close()
		auditSinks = append(auditSinks, rec)
	}

	qt := broker.NewQuestradeClient(cfg.Questrade.LoginBaseURL, cfg.Questrade.AccountNumber, cfg.Questrade.RefreshToken)
	if cfg.Questrade.RefreshToken == "" {
		log.Warn().Msg("missing QUESTRADE_REFRESH_TOKEN; quote and live order calls will fail")
	}
	if cfg.Questrade.AccountNumber == "" {
		log.Warn().Msg("missing QUESTRADE_ACCOUNT_NUMBER; live order calls will fail")
	}

	var exec execution.Adapter
	if cfg.Trading.DryRun {
		exec = execution.NewSimulator(log)
	} else {
		exec = execution.NewLiveBroker(qt, log)
	}

	guard := cooldown.NewGuard(
		time.Duration(cfg.Cooldown.GlobalSec)*time.Second,
		time.Duration(cfg.Cooldown.SymbolSec)*time.Second,
	)

	eng := engine.New(
		engine.Config{
			DryRun:              cfg.Trading.DryRun,
			DefaultStopPct:      cfg.Trading.DefaultStopPct,
			QuoteFallbackDryRun: cfg.Trading.QuoteFallbackDryRun,
		},
		engine.Deps{
			Sizer:  sizingEngine(cfg),
			Guard:  guard,
			Store:  store,
			Audit:  auditSinks,
			Quotes: qt,
			Exec:   exec,
		},
		log,
	)

	srv := webhook.NewServer(eng, log, webhook.Health{
		DryRun:     cfg.Trading.DryRun,
		Ledger:     ledgerKind,
		AuditJSONL: cfg.Ledger.AuditJSONLPath != "",
	})

	log.Info().
		Bool("dry_run", cfg.Trading.DryRun).
		Bool("use_risk_sizing", cfg.Trading.UseRiskSizing).
		Float64("position_dollars", cfg.Trading.PositionDollars).
		Float64("risk_per_trade", cfg.Trading.RiskPerTrade).
		Float64("max_position_usd", cfg.Trading.MaxPositionUSD).
		Int("global_cooldown_sec", cfg.Cooldown.GlobalSec).
		Int("symbol_cooldown_sec", cfg.Cooldown.SymbolSec).
		Str("ledger", ledgerKind).
		Str("addr", cfg.App.ListenAddr).
		Msg("config loaded")

	httpSrv := &http.Server{Addr: cfg.App.ListenAddr, Handler: srv.R}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			cancel()
		}
	}()
	log.Info().Msg("webhook server started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

func sizingEngine(cfg *config.Config) sizing.Engine {
	return sizing.Engine{
		UseRiskSizing:   cfg.Trading.UseRiskSizing,
		PositionDollars: cfg.Trading.PositionDollars,
		RiskPerTrade:    cfg.Trading.RiskPerTrade,
		MaxPositionUSD:  cfg.Trading.MaxPositionUSD,
	}
}
