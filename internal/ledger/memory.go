package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps positions, trades, and audit rows in process memory. It
// backs tests and serves as the explicit best-effort fallback when no sqlite
// path is configured (state is lost on restart).
type MemoryStore struct {
	mu        sync.Mutex
	positions map[string]Position
	trades    []Trade
	rows      []AuditRow
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: make(map[string]Position)}
}

// GetPosition returns the stored position for symbol, if any.
func (m *MemoryStore) GetPosition(_ context.Context, symbol string) (Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[symbol]
	return pos, ok, nil
}

// PutPosition upserts the position keyed by its symbol.
func (m *MemoryStore) PutPosition(_ context.Context, pos Position) error {
	m.mu.Lock()
	m.positions[pos.Symbol] = pos
	m.mu.Unlock()
	return nil
}

// AppendTrade records a completed round trip.
func (m *MemoryStore) AppendTrade(_ context.Context, trade Trade) error {
	m.mu.Lock()
	m.trades = append(m.trades, trade)
	m.mu.Unlock()
	return nil
}

// Append records an audit row, satisfying AuditSink.
func (m *MemoryStore) Append(_ context.Context, row AuditRow) error {
	m.mu.Lock()
	m.rows = append(m.rows, row)
	m.mu.Unlock()
	return nil
}

// Trades returns a copy of the recorded trades.
func (m *MemoryStore) Trades() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// AuditRows returns a copy of the recorded audit rows.
func (m *MemoryStore) AuditRows() []AuditRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditRow, len(m.rows))
	copy(out, m.rows)
	return out
}

// Reset clears all stored state.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	m.positions = make(map[string]Position)
	m.trades = m.trades[:0]
	m.rows = m.rows[:0]
	m.mu.Unlock()
}
