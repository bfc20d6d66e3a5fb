package backtest

import (
	"math"

	"flowtrader/internal/config"
	"flowtrader/internal/models"
)

// stopFunc recalculates the protective stop for an aged position from
// the current bar's features. It returns the new stop price.
type stopFunc func(c *StopCalculator, pos *models.Position, bar *models.FeatureRow) float64

// stopTable maps each strategy to its update function. static is absent
// on purpose: its stop never moves after entry.
var stopTable = map[config.StopStrategy]stopFunc{
	config.StopTimeDecay:  (*StopCalculator).timeDecayStop,
	config.StopVolRegime:  (*StopCalculator).volRegimeStop,
	config.StopATRDynamic: (*StopCalculator).atrDynamicStop,
	config.StopPctTrail:   (*StopCalculator).pctTrailStop,
}

// StopCalculator computes the initial protective stop and, for the
// non-static strategies, recalculates it as a position ages.
//
// static has the best documented track record (it avoids ejecting
// winners on routine pullbacks); the rest are pluggable policies.
type StopCalculator struct {
	strategy config.StopStrategy
	trailPct float64
	update   stopFunc
}

// NewStopCalculator creates a calculator for the configured strategy.
func NewStopCalculator(risk config.RiskConfig) *StopCalculator {
	return &StopCalculator{
		strategy: risk.StopStrategy,
		trailPct: risk.TrailPct,
		update:   stopTable[risk.StopStrategy],
	}
}

// Strategy returns the configured stop strategy.
func (c *StopCalculator) Strategy() config.StopStrategy { return c.strategy }

// InitialStop computes the protective stop from the signal bar's
// features: the tighter (higher) of a structure stop half an ATR under
// the recent swing low and a cost-basis stop one ATR under the anchored
// VWAP.
func (c *StopCalculator) InitialStop(bar *models.FeatureRow) float64 {
	structural := bar.RecentSwingLow - 0.5*bar.ATR20
	costBasis := bar.AnchoredVWAP - 1.0*bar.ATR20

	if math.IsNaN(structural) {
		return costBasis
	}
	if math.IsNaN(costBasis) {
		return structural
	}
	return math.Max(structural, costBasis)
}

// UpdateStop recalculates the stop for a position that is at least one
// bar old. The trailing stop installed after a profit take supersedes
// strategy updates; callers skip this once the trail is active.
func (c *StopCalculator) UpdateStop(pos *models.Position, bar *models.FeatureRow) float64 {
	if c.update == nil || pos.BarsInTrade < 1 {
		return pos.CurrentStopPrice
	}
	return c.update(c, pos, bar)
}

// timeDecayStop shrinks the stop width on a fixed schedule as the trade
// ages: 2.5x ATR for the first five bars, 2.0x through bar nine, then
// 1.5x. Width is measured against the entry-time ATR so a volatility
// spike later in the trade cannot loosen the stop. Ratchets up only.
func (c *StopCalculator) timeDecayStop(pos *models.Position, bar *models.FeatureRow) float64 {
	var mult float64
	switch {
	case pos.BarsInTrade < 5:
		mult = 2.5
	case pos.BarsInTrade < 10:
		mult = 2.0
	default:
		mult = 1.5
	}

	candidate := pos.EntryPrice - mult*pos.ATRAtEntry
	return math.Max(pos.CurrentStopPrice, candidate)
}

// volRegimeStop adapts the stop width to the bar's volatility z-score:
// wider in high-volatility regimes, tighter in calm ones. The width is
// clamped to [1.5, 3.0] ATR and falls back to the 2.0 base when the
// z-score column is missing. This strategy may loosen the stop when the
// regime turns volatile; it is the only one that does.
func (c *StopCalculator) volRegimeStop(pos *models.Position, bar *models.FeatureRow) float64 {
	mult := 2.0
	if !math.IsNaN(bar.ATRZ) {
		mult = 2.0 + 0.5*bar.ATRZ
		if mult < 1.5 {
			mult = 1.5
		}
		if mult > 3.0 {
			mult = 3.0
		}
	}

	stop := pos.EntryPrice - mult*pos.ATRAtEntry
	// Never loosen past the initial stop: that would risk more than
	// the dollar amount the position was sized for.
	return math.Max(stop, pos.InitialStopPrice)
}

// atrDynamicStop is a chandelier-style ratchet two ATRs under the
// current close, using the live ATR.
func (c *StopCalculator) atrDynamicStop(pos *models.Position, bar *models.FeatureRow) float64 {
	if math.IsNaN(bar.ATR20) || math.IsNaN(bar.Close) {
		return pos.CurrentStopPrice
	}
	candidate := bar.Close - 2.0*bar.ATR20
	return math.Max(pos.CurrentStopPrice, candidate)
}

// pctTrailStop ratchets the stop a fixed percentage under the close.
func (c *StopCalculator) pctTrailStop(pos *models.Position, bar *models.FeatureRow) float64 {
	if math.IsNaN(bar.Close) {
		return pos.CurrentStopPrice
	}
	candidate := bar.Close * (1 - c.trailPct)
	return math.Max(pos.CurrentStopPrice, candidate)
}
