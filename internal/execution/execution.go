// Package execution handles order execution against either the local
// simulator or a live broker. The engine is parameterized by Adapter and
// never branches on dry-run itself.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adrien-king/questrade-bot/internal/broker"
	"github.com/adrien-king/questrade-bot/internal/metrics"
)

// Order represents a placement request an adapter can process. Price is the
// sizing reference price; market orders carry it for fill bookkeeping only.
type Order struct {
	Symbol string
	Side   broker.Side
	Shares int
	Price  float64
}

// Fill reports the executed order.
type Fill struct {
	Price     float64
	Time      time.Time
	OrderID   string
	Simulated bool
}

// Adapter executes orders. Implementations must treat any failure as
// terminal for the request; retries are an external policy.
type Adapter interface {
	Execute(ctx context.Context, order Order) (Fill, error)
}

// Simulator fills every order locally at the reference price. It is
// deterministic and never fails.
type Simulator struct {
	log zerolog.Logger
	now func() time.Time
}

// NewSimulator wraps a logger for simulated fills.
func NewSimulator(log zerolog.Logger) *Simulator {
	return &Simulator{log: log, now: time.Now}
}

// Execute produces a synthetic fill at the order price.
func (s *Simulator) Execute(_ context.Context, order Order) (Fill, error) {
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	fill := Fill{
		Price:     order.Price,
		Time:      s.now().UTC(),
		OrderID:   "sim-" + uuid.NewString(),
		Simulated: true,
	}
	s.log.Info().
		Str("sym", order.Symbol).
		Str("side", string(order.Side)).
		Int("shares", order.Shares).
		Float64("px", order.Price).
		Msg("simulated fill")
	return fill, nil
}

// LiveBroker submits orders through a brokerage connection.
type LiveBroker struct {
	broker broker.Broker
	log    zerolog.Logger
	now    func() time.Time
}

// NewLiveBroker wraps a broker client for live submissions.
func NewLiveBroker(b broker.Broker, log zerolog.Logger) *LiveBroker {
	return &LiveBroker{broker: b, log: log, now: time.Now}
}

// Execute places a market order and reports the broker-assigned id. The fill
// price echoes the sizing reference price; Questrade does not return an
// execution price synchronously.
func (l *LiveBroker) Execute(ctx context.Context, order Order) (Fill, error) {
	result, err := l.broker.PlaceMarketOrder(ctx, order.Symbol, order.Side, order.Shares)
	if err != nil {
		return Fill{}, err
	}
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	l.log.Info().
		Str("sym", order.Symbol).
		Str("side", string(order.Side)).
		Int("shares", order.Shares).
		Str("order_id", result.OrderID).
		Msg("live order accepted")
	return Fill{Price: order.Price, Time: l.now().UTC(), OrderID: result.OrderID}, nil
}
