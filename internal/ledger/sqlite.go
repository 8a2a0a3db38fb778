package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore persists positions, trades, and the audit log in a local
// SQLite database. It is the durable source of truth across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path with WAL mode
// enabled and ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			entry_time INTEGER NOT NULL DEFAULT 0,
			entry_price REAL NOT NULL DEFAULT 0,
			shares INTEGER NOT NULL DEFAULT 0,
			stop_price REAL NOT NULL DEFAULT 0,
			risk_usd REAL NOT NULL DEFAULT 0,
			trade_id TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			entry_time INTEGER NOT NULL,
			exit_time INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			shares INTEGER NOT NULL,
			gross_pnl REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			event TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			shares INTEGER NOT NULL DEFAULT 0,
			position_value REAL NOT NULL DEFAULT 0,
			stop_price REAL NOT NULL DEFAULT 0,
			risk_usd REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT ''
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// GetPosition loads the position row for symbol.
func (s *SQLiteStore) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	var pos Position
	var entryMillis int64
	err := s.db.QueryRowContext(ctx,
		`SELECT symbol, state, entry_time, entry_price, shares, stop_price, risk_usd, trade_id
		 FROM positions WHERE symbol = ?`, symbol,
	).Scan(&pos.Symbol, &pos.State, &entryMillis, &pos.EntryPrice, &pos.Shares, &pos.StopPrice, &pos.RiskUSD, &pos.TradeID)
	if err == sql.ErrNoRows {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("select position: %w", err)
	}
	pos.EntryTime = fromMillis(entryMillis)
	return pos, true, nil
}

// PutPosition upserts the position keyed by its symbol.
func (s *SQLiteStore) PutPosition(ctx context.Context, pos Position) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions (symbol, state, entry_time, entry_price, shares, stop_price, risk_usd, trade_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET
			state=excluded.state,
			entry_time=excluded.entry_time,
			entry_price=excluded.entry_price,
			shares=excluded.shares,
			stop_price=excluded.stop_price,
			risk_usd=excluded.risk_usd,
			trade_id=excluded.trade_id`,
		pos.Symbol, string(pos.State), toMillis(pos.EntryTime), pos.EntryPrice, pos.Shares, pos.StopPrice, pos.RiskUSD, pos.TradeID,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// AppendTrade inserts one immutable round-trip record.
func (s *SQLiteStore) AppendTrade(ctx context.Context, trade Trade) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (trade_id, symbol, entry_time, exit_time, entry_price, exit_price, shares, gross_pnl)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.TradeID, trade.Symbol, toMillis(trade.EntryTime), toMillis(trade.ExitTime),
		trade.EntryPrice, trade.ExitPrice, trade.Shares, trade.GrossPnL,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Append inserts an audit row, satisfying AuditSink.
func (s *SQLiteStore) Append(ctx context.Context, row AuditRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (ts, symbol, event, side, price, shares, position_value, stop_price, risk_usd, status, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(row.Timestamp), row.Symbol, row.Event, row.Side,
		row.Price, row.Shares, row.PositionValue, row.StopPrice, row.RiskUSD, row.Status, row.Note,
	)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// Trades returns all trade records, oldest first.
func (s *SQLiteStore) Trades(ctx context.Context) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id, symbol, entry_time, exit_time, entry_price, exit_price, shares, gross_pnl
		 FROM trades ORDER BY exit_time`)
	if err != nil {
		return nil, fmt.Errorf("select trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var tr Trade
		var entryMillis, exitMillis int64
		if err := rows.Scan(&tr.TradeID, &tr.Symbol, &entryMillis, &exitMillis, &tr.EntryPrice, &tr.ExitPrice, &tr.Shares, &tr.GrossPnL); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		tr.EntryTime = fromMillis(entryMillis)
		tr.ExitTime = fromMillis(exitMillis)
		trades = append(trades, tr)
	}
	return trades, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
