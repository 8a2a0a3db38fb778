// Package cooldown throttles how often accepted signals may act, globally and
// per symbol. It is a soft anti-spam measure; the position state machine in
// the engine is the hard idempotency guarantee.
package cooldown

import (
	"fmt"
	"sync"
	"time"
)

// Guard tracks the last accepted action, process-wide and per symbol. A zero
// duration disables the corresponding check. State lives in memory only and
// resets on restart.
type Guard struct {
	mu         sync.Mutex
	global     time.Duration
	perSymbol  time.Duration
	lastGlobal time.Time
	lastSymbol map[string]time.Time
}

// NewGuard constructs a guard with the given global and per-symbol windows.
func NewGuard(global, perSymbol time.Duration) *Guard {
	return &Guard{
		global:     global,
		perSymbol:  perSymbol,
		lastSymbol: make(map[string]time.Time),
	}
}

// Check reports whether a signal for symbol is currently throttled. The
// global window is consulted before the per-symbol one. Check never mutates
// state.
func (g *Guard) Check(symbol string, now time.Time) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.global > 0 && !g.lastGlobal.IsZero() {
		if elapsed := now.Sub(g.lastGlobal); elapsed < g.global {
			return true, fmt.Sprintf("global cooldown active (%.0fs remaining)", (g.global - elapsed).Seconds())
		}
	}
	if g.perSymbol > 0 {
		if last, ok := g.lastSymbol[symbol]; ok {
			if elapsed := now.Sub(last); elapsed < g.perSymbol {
				return true, fmt.Sprintf("symbol cooldown active for %s (%.0fs remaining)", symbol, (g.perSymbol - elapsed).Seconds())
			}
		}
	}
	return false, ""
}

// Mark records an accepted action for symbol. Callers must invoke it only
// once a signal has passed every check and is about to execute: marking on
// rejects or ignores would throttle legitimate retries.
func (g *Guard) Mark(symbol string, now time.Time) {
	g.mu.Lock()
	g.lastGlobal = now
	g.lastSymbol[symbol] = now
	g.mu.Unlock()
}
