// Package backtest implements the risk-managed position lifecycle engine.
package backtest

import (
	"math"

	apperrors "flowtrader/internal/errors"
)

// PositionSizer converts entry price, stop price and account equity into
// a share count using fixed fractional risk.
type PositionSizer struct {
	riskPct float64
}

// NewPositionSizer creates a sizer risking the given fraction of equity
// per trade.
func NewPositionSizer(riskPct float64) *PositionSizer {
	return &PositionSizer{riskPct: riskPct}
}

// Size returns the largest whole share count such that a fill at
// stopPrice loses no more than equity * riskPct. The dollar risked is
// identical across instruments regardless of price or volatility; that
// equivalence is what R-multiples downstream rely on.
//
// A stop at or above the entry is a per-signal rejection, not a fatal
// error: the caller skips the entry and the simulation continues.
func (s *PositionSizer) Size(instrument string, entryPrice, stopPrice, equity float64) (int, error) {
	if math.IsNaN(entryPrice) || math.IsNaN(stopPrice) {
		return 0, apperrors.NewSizingError(instrument, entryPrice, stopPrice)
	}

	riskPerShare := entryPrice - stopPrice
	if riskPerShare <= 0 {
		return 0, apperrors.NewSizingError(instrument, entryPrice, stopPrice)
	}

	riskAmount := equity * s.riskPct
	shares := int(math.Floor(riskAmount / riskPerShare))
	if shares < 1 {
		return 0, apperrors.NewSizingError(instrument, entryPrice, stopPrice)
	}

	return shares, nil
}

// RiskAmount returns the dollar risk for the given equity.
func (s *PositionSizer) RiskAmount(equity float64) float64 {
	return equity * s.riskPct
}
