// Package sizing computes share counts from a reference price under either a
// fixed-notional or a fixed-risk policy, with an optional notional cap.
package sizing

import (
	"errors"
	"math"
)

// ErrInvalidPrice is returned when the reference price is not positive.
var ErrInvalidPrice = errors.New("invalid_price")

// Engine holds the process-wide sizing policy. It is pure: Compute has no
// side effects and is deterministic for a given input.
type Engine struct {
	UseRiskSizing   bool
	PositionDollars float64
	RiskPerTrade    float64
	MaxPositionUSD  float64
}

// Result describes one sizing computation.
type Result struct {
	Shares        int
	StopPrice     float64
	PositionValue float64
	RiskUSD       float64
	Note          string
}

// Compute sizes an order for the given price and stop percentage.
//
// Risk sizing divides the per-trade risk budget by the stop distance. A
// non-positive stop distance under risk sizing falls back to fixed-notional
// sizing instead of failing: a degenerate stop means "risk" is undefined, and
// refusing the trade outright would turn a tuning mistake into an outage.
// In fixed-notional mode RiskUSD reports the configured RiskPerTrade constant;
// it is informational there, not the sizing driver.
func (e Engine) Compute(price, stopPercent float64) (Result, error) {
	if price <= 0 {
		return Result{}, ErrInvalidPrice
	}

	var stopPrice, stopDist float64
	if stopPercent > 0 {
		stopPrice = price * (1 - stopPercent/100)
		stopDist = price - stopPrice
	}

	var shares int
	var note string
	riskUSD := e.RiskPerTrade

	if e.UseRiskSizing && stopDist > 0 {
		shares = flooredShares(e.RiskPerTrade / stopDist)
		note = "risk sizing (risk per trade / stop distance)"
	} else {
		shares = flooredShares(e.PositionDollars / price)
		note = "fixed notional sizing (position dollars / price)"
		if e.UseRiskSizing {
			note += "; degenerate stop distance, fell back from risk sizing"
		}
	}

	positionValue := float64(shares) * price
	if e.MaxPositionUSD > 0 && positionValue > e.MaxPositionUSD {
		shares = flooredShares(e.MaxPositionUSD / price)
		positionValue = float64(shares) * price
		if e.UseRiskSizing && stopDist > 0 {
			riskUSD = float64(shares) * stopDist
		}
		note += "; clamped by max position cap"
	}

	return Result{
		Shares:        shares,
		StopPrice:     stopPrice,
		PositionValue: positionValue,
		RiskUSD:       riskUSD,
		Note:          note,
	}, nil
}

func flooredShares(raw float64) int {
	shares := int(math.Floor(raw))
	if shares < 1 {
		shares = 1
	}
	return shares
}
