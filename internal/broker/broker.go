// Package broker defines the quote and order-routing boundaries and the
// Questrade REST client that implements them.
package broker

import (
	"context"
	"encoding/json"
)

// Side enumerates order directions accepted by the brokerage.
type Side string

const (
	// Buy opens or adds to a long position.
	Buy Side = "BUY"
	// Sell closes a long position.
	Sell Side = "SELL"
)

// OrderResult reports a broker-accepted order. Raw carries the untouched
// broker response for the audit trail.
type OrderResult struct {
	OrderID string
	Raw     json.RawMessage
}

// QuoteProvider resolves a current reference price for a ticker.
type QuoteProvider interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// Broker submits market orders. Any error is terminal for the request; the
// engine does not retry.
type Broker interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, shares int) (OrderResult, error)
}
