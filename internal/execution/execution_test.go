package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrien-king/questrade-bot/internal/broker"
)

func TestSimulatorFillsAtOrderPrice(t *testing.T) {
	sim := NewSimulator(zerolog.Nop())
	sim.now = func() time.Time { return time.Unix(1000, 0) }

	fill, err := sim.Execute(context.Background(), Order{Symbol: "ABC", Side: broker.Buy, Shares: 100, Price: 10.00})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fill.Price != 10.00 {
		t.Fatalf("expected fill at order price, got %.4f", fill.Price)
	}
	if !fill.Simulated {
		t.Fatalf("expected simulated flag")
	}
	if fill.OrderID == "" {
		t.Fatalf("expected synthetic order id")
	}
	if !fill.Time.Equal(time.Unix(1000, 0).UTC()) {
		t.Fatalf("unexpected fill time %v", fill.Time)
	}
}

type fakeBroker struct {
	result broker.OrderResult
	err    error

	gotSymbol string
	gotSide   broker.Side
	gotShares int
}

func (f *fakeBroker) PlaceMarketOrder(_ context.Context, symbol string, side broker.Side, shares int) (broker.OrderResult, error) {
	f.gotSymbol, f.gotSide, f.gotShares = symbol, side, shares
	return f.result, f.err
}

func TestLiveBrokerPassesOrderThrough(t *testing.T) {
	fake := &fakeBroker{result: broker.OrderResult{OrderID: "7788"}}
	live := NewLiveBroker(fake, zerolog.Nop())

	fill, err := live.Execute(context.Background(), Order{Symbol: "ABC", Side: broker.Sell, Shares: 50, Price: 10.50})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fake.gotSymbol != "ABC" || fake.gotSide != broker.Sell || fake.gotShares != 50 {
		t.Fatalf("broker saw wrong order: %s %s %d", fake.gotSymbol, fake.gotSide, fake.gotShares)
	}
	if fill.OrderID != "7788" || fill.Simulated {
		t.Fatalf("unexpected fill: %+v", fill)
	}
}

func TestLiveBrokerErrorIsTerminal(t *testing.T) {
	fake := &fakeBroker{err: errors.New("rejected")}
	live := NewLiveBroker(fake, zerolog.Nop())

	if _, err := live.Execute(context.Background(), Order{Symbol: "ABC", Side: broker.Buy, Shares: 1, Price: 1}); err == nil {
		t.Fatalf("expected broker error to propagate")
	}
}
