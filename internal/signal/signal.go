// Package signal normalizes inbound alert payloads into canonical trade actions.
package signal

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Action is the canonical intent derived from an alert's event/side pair.
type Action string

const (
	// Entry opens a long position.
	Entry Action = "ENTRY"
	// Exit closes a long position.
	Exit Action = "EXIT"
)

// Payload mirrors the JSON body the alerting service posts to the webhook.
// Numeric fields are decoded loosely because TradingView templates often
// interpolate them as strings (e.g. "price":"{{close}}").
type Payload struct {
	Symbol      string `json:"symbol"`
	Event       string `json:"event"`
	Side        string `json:"side"`
	RiskStopPct any    `json:"risk_stop_pct"`
	Price       any    `json:"price"`
}

// Signal is a normalized alert ready for the decision engine.
type Signal struct {
	Symbol      string
	Action      Action
	StopPercent float64
	Price       float64 // 0 when the alert carried no usable price
}

// RejectError reports a payload that cannot be normalized. Code is a stable
// machine-readable reason; Detail is for humans.
type RejectError struct {
	Code   string
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Event synonyms collapse into one table so adding a vocabulary entry is a
// one-line change.
var actionByEvent = map[string]Action{
	"BUY":   Entry,
	"ENTRY": Entry,
	"SELL":  Exit,
	"EXIT":  Exit,
}

const sideLong = "long"

// Normalize validates a payload and maps it onto the canonical long-only
// vocabulary. An absent or non-numeric stop percent falls back to
// defaultStopPct; an explicit zero is kept as-is so sizing can degrade to
// fixed notional.
func Normalize(p Payload, defaultStopPct float64) (Signal, error) {
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if symbol == "" {
		return Signal{}, &RejectError{Code: "missing_symbol"}
	}

	side := strings.ToLower(strings.TrimSpace(p.Side))
	if side != sideLong {
		return Signal{}, &RejectError{Code: "unsupported_side", Detail: fmt.Sprintf("side %q (long only)", p.Side)}
	}

	event := strings.ToUpper(strings.TrimSpace(p.Event))
	action, ok := actionByEvent[event]
	if !ok {
		return Signal{}, &RejectError{Code: "unsupported_event", Detail: fmt.Sprintf("event %q", p.Event)}
	}

	stopPct := defaultStopPct
	if p.RiskStopPct != nil {
		if v, err := cast.ToFloat64E(p.RiskStopPct); err == nil {
			stopPct = v
		}
	}

	var price float64
	if p.Price != nil {
		if v, err := cast.ToFloat64E(p.Price); err == nil && v > 0 {
			price = v
		}
	}

	return Signal{Symbol: symbol, Action: action, StopPercent: stopPct, Price: price}, nil
}
