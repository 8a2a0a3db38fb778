// Package ledger defines the durable position, trade, and audit records the
// decision engine reads and writes, plus the stores that hold them.
package ledger

import (
	"context"
	"time"
)

// State is the per-symbol position state machine value.
type State string

const (
	// Flat means no open position for the symbol.
	Flat State = "FLAT"
	// Long means an open long position exists.
	Long State = "LONG"
)

// Position is the current state for one symbol. Exactly one Position exists
// per symbol; fields other than Symbol and State are meaningful only while
// Long and are cleared on exit.
type Position struct {
	Symbol     string
	State      State
	EntryTime  time.Time
	EntryPrice float64
	Shares     int
	StopPrice  float64
	RiskUSD    float64
	TradeID    string
}

// Flatten clears entry data, returning the FLAT position for the symbol.
func (p Position) Flatten() Position {
	return Position{Symbol: p.Symbol, State: Flat}
}

// Trade is one completed round trip, written once at exit and immutable.
type Trade struct {
	TradeID    string
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Shares     int
	GrossPnL   float64
}

// AuditRow is one append-only record of an inbound signal and its outcome.
// The column set and order mirror the offline review sheet.
type AuditRow struct {
	Timestamp     time.Time `json:"timestamp"`
	Symbol        string    `json:"symbol"`
	Event         string    `json:"event"`
	Side          string    `json:"side"`
	Price         float64   `json:"price,omitempty"`
	Shares        int       `json:"shares,omitempty"`
	PositionValue float64   `json:"position_value,omitempty"`
	StopPrice     float64   `json:"stop_price,omitempty"`
	RiskUSD       float64   `json:"risk_usd,omitempty"`
	Status        string    `json:"status"`
	Note          string    `json:"note,omitempty"`
}

// WithStatus returns a copy of the row stamped with its final status and note.
func (r AuditRow) WithStatus(status, note string) AuditRow {
	r.Status = status
	r.Note = note
	return r
}

// Store is the durable source of truth for positions and trades across
// requests and restarts.
type Store interface {
	// GetPosition returns the position for symbol; ok is false when the
	// symbol has never traded.
	GetPosition(ctx context.Context, symbol string) (Position, bool, error)
	// PutPosition upserts the position for its symbol.
	PutPosition(ctx context.Context, pos Position) error
	// AppendTrade records a completed round trip.
	AppendTrade(ctx context.Context, trade Trade) error
}

// AuditSink receives the append-only decision log. Sink failures must never
// change a trading decision; callers log them and move on.
type AuditSink interface {
	Append(ctx context.Context, row AuditRow) error
}
