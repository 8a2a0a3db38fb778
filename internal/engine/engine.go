// Package engine turns normalized signals into sized, idempotent trade
// decisions: one atomic decision per request, serialized per symbol.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/adrien-king/questrade-bot/internal/broker"
	"github.com/adrien-king/questrade-bot/internal/cooldown"
	"github.com/adrien-king/questrade-bot/internal/execution"
	"github.com/adrien-king/questrade-bot/internal/ledger"
	"github.com/adrien-king/questrade-bot/internal/metrics"
	"github.com/adrien-king/questrade-bot/internal/signal"
	"github.com/adrien-king/questrade-bot/internal/sizing"
)

// Final statuses recorded on every audit row.
const (
	StatusDryRun   = "dry_run"
	StatusLive     = "live"
	StatusIgnored  = "ignored"
	StatusCooldown = "cooldown"
	StatusError    = "error"
)

// Config holds the engine knobs fixed at startup.
type Config struct {
	DryRun         bool
	DefaultStopPct float64
	// QuoteFallbackDryRun lets dry-run requests without a price fetch a real
	// quote instead of failing fast. Off by default so simulations stay
	// deterministic.
	QuoteFallbackDryRun bool
}

// Deps collects the engine's collaborators.
type Deps struct {
	Sizer  sizing.Engine
	Guard  *cooldown.Guard
	Store  ledger.Store
	Audit  ledger.AuditSink
	Quotes broker.QuoteProvider
	Exec   execution.Adapter
}

// Decision is the outcome of one signal, echoed to the caller as JSON.
type Decision struct {
	OK            bool          `json:"ok"`
	Status        string        `json:"status"`
	DryRun        bool          `json:"dry_run"`
	Ignored       bool          `json:"ignored,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Symbol        string        `json:"symbol,omitempty"`
	Action        signal.Action `json:"action,omitempty"`
	Price         float64       `json:"price,omitempty"`
	Shares        int           `json:"shares,omitempty"`
	StopPrice     float64       `json:"stop_price,omitempty"`
	PositionValue float64       `json:"position_value,omitempty"`
	RiskUSD       float64       `json:"risk_usd,omitempty"`
	PnL           *float64      `json:"pnl,omitempty"`
	OrderID       string        `json:"order_id,omitempty"`
	Note          string        `json:"note,omitempty"`
}

// Engine orchestrates normalization, cooldowns, the position state machine,
// sizing, and execution. It is the only writer of the position ledger.
type Engine struct {
	cfg    Config
	sizer  sizing.Engine
	guard  *cooldown.Guard
	store  ledger.Store
	audit  ledger.AuditSink
	quotes broker.QuoteProvider
	exec   execution.Adapter
	log    zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	symLocks map[string]*sync.Mutex
}

// Option configures Engine construction parameters.
type Option func(*Engine)

// WithClock overrides the engine's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New wires an engine from its collaborators.
func New(cfg Config, deps Deps, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		sizer:    deps.Sizer,
		guard:    deps.Guard,
		store:    deps.Store,
		audit:    deps.Audit,
		quotes:   deps.Quotes,
		exec:     deps.Exec,
		log:      log,
		now:      time.Now,
		symLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lockFor returns the mutex serializing work for one symbol. The ledger
// read-check-write sequence is not atomic, so concurrent signals for the
// same symbol must not interleave.
func (e *Engine) lockFor(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.symLocks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		e.symLocks[symbol] = lock
	}
	return lock
}

// Handle processes one inbound payload end to end. The returned Decision is
// always populated; err carries the classification when Decision.OK is false.
//
// The step order is load-bearing: normalize, cooldown check, position read,
// idempotency check, price resolution, sizing, cooldown mark, execute,
// persist, audit. Reordering changes observable behavior under duplicate
// signals.
func (e *Engine) Handle(ctx context.Context, p signal.Payload) (Decision, error) {
	sig, err := signal.Normalize(p, e.cfg.DefaultStopPct)
	if err != nil {
		dec := Decision{Status: StatusError, DryRun: e.cfg.DryRun, Reason: err.Error()}
		e.appendAudit(ctx, ledger.AuditRow{
			Timestamp: e.now().UTC(),
			Symbol:    p.Symbol,
			Event:     p.Event,
			Side:      p.Side,
			Status:    StatusError,
			Note:      err.Error(),
		})
		return dec, &Error{Kind: KindInput, Reason: err.Error(), Err: err}
	}

	now := e.now()
	if blocked, reason := e.guard.Check(sig.Symbol, now); blocked {
		dec := Decision{
			Status: StatusCooldown,
			DryRun: e.cfg.DryRun,
			Symbol: sig.Symbol,
			Action: sig.Action,
			Reason: reason,
		}
		e.appendAudit(ctx, e.baseRow(sig, p, now).WithStatus(StatusCooldown, reason))
		return dec, &Error{Kind: KindThrottle, Reason: reason}
	}

	lock := e.lockFor(sig.Symbol)
	lock.Lock()
	defer lock.Unlock()

	pos, found, err := e.store.GetPosition(ctx, sig.Symbol)
	if err != nil {
		return e.fail(ctx, sig, p, now, KindLedger, "ledger_read_failed", err)
	}
	if !found {
		pos = ledger.Position{Symbol: sig.Symbol, State: ledger.Flat}
	}

	// Hard idempotency: duplicate entries and exits are valid no-ops.
	if sig.Action == signal.Entry && pos.State == ledger.Long {
		return e.ignore(ctx, sig, p, now, "already in position")
	}
	if sig.Action == signal.Exit && pos.State == ledger.Flat {
		return e.ignore(ctx, sig, p, now, "no open position")
	}

	price := sig.Price
	if price <= 0 {
		if e.cfg.DryRun && !e.cfg.QuoteFallbackDryRun {
			return e.fail(ctx, sig, p, now, KindInput, "missing_price", nil)
		}
		price, err = e.quotes.LastPrice(ctx, sig.Symbol)
		if err != nil {
			return e.fail(ctx, sig, p, now, KindQuote, "quote_failed", err)
		}
	}

	sized, err := e.sizer.Compute(price, sig.StopPercent)
	if err != nil {
		return e.fail(ctx, sig, p, now, KindSizing, err.Error(), err)
	}

	e.guard.Mark(sig.Symbol, now)

	if sig.Action == signal.Entry {
		return e.enter(ctx, sig, p, now, price, sized)
	}
	return e.exit(ctx, sig, p, now, price, pos)
}

func (e *Engine) enter(ctx context.Context, sig signal.Signal, p signal.Payload, now time.Time, price float64, sized sizing.Result) (Decision, error) {
	fill, err := e.exec.Execute(ctx, execution.Order{
		Symbol: sig.Symbol,
		Side:   broker.Buy,
		Shares: sized.Shares,
		Price:  price,
	})
	if err != nil {
		return e.fail(ctx, sig, p, now, KindExecution, "order_failed", err)
	}

	pos := ledger.Position{
		Symbol:     sig.Symbol,
		State:      ledger.Long,
		EntryTime:  fill.Time,
		EntryPrice: fill.Price,
		Shares:     sized.Shares,
		StopPrice:  sized.StopPrice,
		RiskUSD:    sized.RiskUSD,
		TradeID:    uuid.NewString(),
	}
	if err := e.store.PutPosition(ctx, pos); err != nil {
		// The order already executed; the operator must reconcile by hand.
		e.log.Error().Err(err).Str("sym", sig.Symbol).Str("order_id", fill.OrderID).
			Msg("position write failed after execution")
		return e.fail(ctx, sig, p, now, KindLedger, "ledger_write_failed", err)
	}

	status := e.liveStatus()
	dec := Decision{
		OK:            true,
		Status:        status,
		DryRun:        e.cfg.DryRun,
		Symbol:        sig.Symbol,
		Action:        sig.Action,
		Price:         fill.Price,
		Shares:        sized.Shares,
		StopPrice:     sized.StopPrice,
		PositionValue: sized.PositionValue,
		RiskUSD:       sized.RiskUSD,
		OrderID:       fill.OrderID,
		Note:          sized.Note,
	}
	row := e.baseRow(sig, p, now).WithStatus(status, sized.Note)
	row.Price = fill.Price
	row.Shares = sized.Shares
	row.PositionValue = sized.PositionValue
	row.StopPrice = sized.StopPrice
	row.RiskUSD = sized.RiskUSD
	e.appendAudit(ctx, row)

	e.log.Info().Str("sym", sig.Symbol).Int("shares", sized.Shares).
		Float64("px", fill.Price).Str("status", status).Msg("entered long")
	return dec, nil
}

func (e *Engine) exit(ctx context.Context, sig signal.Signal, p signal.Payload, now time.Time, price float64, pos ledger.Position) (Decision, error) {
	// Exits close the stored position in full; the exit order size comes
	// from the ledger, never from re-sizing at the current price.
	fill, err := e.exec.Execute(ctx, execution.Order{
		Symbol: sig.Symbol,
		Side:   broker.Sell,
		Shares: pos.Shares,
		Price:  price,
	})
	if err != nil {
		return e.fail(ctx, sig, p, now, KindExecution, "order_failed", err)
	}

	pnl := roundCurrency((fill.Price - pos.EntryPrice) * float64(pos.Shares))
	tradeID := pos.TradeID
	if tradeID == "" {
		tradeID = uuid.NewString()
	}
	trade := ledger.Trade{
		TradeID:    tradeID,
		Symbol:     sig.Symbol,
		EntryTime:  pos.EntryTime,
		ExitTime:   fill.Time,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill.Price,
		Shares:     pos.Shares,
		GrossPnL:   pnl,
	}

	if err := e.store.PutPosition(ctx, pos.Flatten()); err != nil {
		e.log.Error().Err(err).Str("sym", sig.Symbol).Str("order_id", fill.OrderID).
			Msg("position clear failed after execution")
		return e.fail(ctx, sig, p, now, KindLedger, "ledger_write_failed", err)
	}
	if err := e.store.AppendTrade(ctx, trade); err != nil {
		e.log.Error().Err(err).Str("sym", sig.Symbol).Str("trade_id", tradeID).
			Msg("trade record write failed")
		return e.fail(ctx, sig, p, now, KindLedger, "ledger_write_failed", err)
	}

	status := e.liveStatus()
	note := "closed round trip"
	dec := Decision{
		OK:      true,
		Status:  status,
		DryRun:  e.cfg.DryRun,
		Symbol:  sig.Symbol,
		Action:  sig.Action,
		Price:   fill.Price,
		Shares:  pos.Shares,
		PnL:     &pnl,
		OrderID: fill.OrderID,
		Note:    note,
	}
	row := e.baseRow(sig, p, now).WithStatus(status, note)
	row.Price = fill.Price
	row.Shares = pos.Shares
	row.PositionValue = roundCurrency(fill.Price * float64(pos.Shares))
	e.appendAudit(ctx, row)

	e.log.Info().Str("sym", sig.Symbol).Int("shares", pos.Shares).
		Float64("px", fill.Price).Float64("pnl", pnl).Str("status", status).Msg("exited long")
	return dec, nil
}

func (e *Engine) ignore(ctx context.Context, sig signal.Signal, p signal.Payload, now time.Time, reason string) (Decision, error) {
	dec := Decision{
		OK:      true,
		Status:  StatusIgnored,
		DryRun:  e.cfg.DryRun,
		Ignored: true,
		Reason:  reason,
		Symbol:  sig.Symbol,
		Action:  sig.Action,
	}
	e.appendAudit(ctx, e.baseRow(sig, p, now).WithStatus(StatusIgnored, reason))
	e.log.Info().Str("sym", sig.Symbol).Str("action", string(sig.Action)).Str("reason", reason).Msg("signal ignored")
	return dec, nil
}

func (e *Engine) fail(ctx context.Context, sig signal.Signal, p signal.Payload, now time.Time, kind Kind, reason string, cause error) (Decision, error) {
	dec := Decision{
		Status: StatusError,
		DryRun: e.cfg.DryRun,
		Symbol: sig.Symbol,
		Action: sig.Action,
		Reason: reason,
	}
	note := reason
	if cause != nil {
		note = reason + ": " + cause.Error()
	}
	e.appendAudit(ctx, e.baseRow(sig, p, now).WithStatus(StatusError, note))
	return dec, &Error{Kind: kind, Reason: reason, Err: cause}
}

func (e *Engine) liveStatus() string {
	if e.cfg.DryRun {
		return StatusDryRun
	}
	return StatusLive
}

func (e *Engine) baseRow(sig signal.Signal, p signal.Payload, now time.Time) ledger.AuditRow {
	return ledger.AuditRow{
		Timestamp: now.UTC(),
		Symbol:    sig.Symbol,
		Event:     p.Event,
		Side:      p.Side,
		Price:     sig.Price,
	}
}

func (e *Engine) appendAudit(ctx context.Context, row ledger.AuditRow) {
	metrics.SignalsTotal.WithLabelValues(row.Symbol, row.Status).Inc()
	if e.audit == nil {
		return
	}
	if err := e.audit.Append(ctx, row); err != nil {
		// Audit failures never change a trading decision.
		e.log.Warn().Err(err).Str("sym", row.Symbol).Str("status", row.Status).Msg("audit append failed")
	}
}

// roundCurrency rounds dollar amounts to cents.
func roundCurrency(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
