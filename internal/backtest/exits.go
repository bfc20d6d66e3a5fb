package backtest

import (
	"math"

	"flowtrader/internal/config"
	"flowtrader/internal/models"
)

// ExitDecision is the outcome of evaluating one bar against an open
// position: at most one exit per bar, plus any trailing-stop movement.
type ExitDecision struct {
	Exit     bool
	Type     models.ExitType
	Price    float64
	Fraction float64 // fraction of the remaining holding to close

	// NewTrailStop carries the recomputed trailing stop when the trail
	// is active (or being seeded by a profit take). NaN means no change.
	NewTrailStop float64

	// DegradedColumns lists feature columns that were NaN on this bar,
	// forcing the corresponding checks to be skipped.
	DegradedColumns []string
}

// ExitEvaluator inspects one bar's features plus position state and
// decides whether (part of) the position exits. It is a pure function
// of its inputs: all mutation happens in the ledger.
//
// Checks run in strict priority order because exits are mutually
// exclusive per bar: hard stop, time stop, momentum failure, profit
// target, trailing stop, external signal.
type ExitEvaluator struct {
	risk config.RiskConfig
}

// NewExitEvaluator creates an evaluator for the given risk parameters.
func NewExitEvaluator(risk config.RiskConfig) *ExitEvaluator {
	return &ExitEvaluator{risk: risk}
}

// Evaluate runs the exit checks for the bar at index i of the series.
// The series is needed beyond the single row for the rolling low that
// drives the trailing stop.
func (e *ExitEvaluator) Evaluate(pos *models.Position, series *models.FeatureSeries, i int) ExitDecision {
	bar := &series.Rows[i]
	decision := ExitDecision{NewTrailStop: math.NaN()}

	closeValid := !math.IsNaN(bar.Close)
	r := math.NaN()
	if closeValid {
		r = pos.RMultiple(bar.Close)
	}

	// Once a partial exit hands the remainder to the trail, the trail
	// owns the stop: only trailing and external-signal logic apply.
	if pos.TrailActive {
		return e.evaluateTrailing(pos, series, i, decision, closeValid)
	}

	// 1. Hard stop
	if closeValid && bar.Close < pos.CurrentStopPrice {
		decision.Exit = true
		decision.Type = models.ExitHardStop
		decision.Price = bar.Close
		decision.Fraction = 1.0
		return decision
	}
	if !closeValid {
		decision.DegradedColumns = append(decision.DegradedColumns, "Close")
	}

	// 2. Time stop: aged past the limit without reaching +1R.
	if e.risk.TimeStopBars > 0 && pos.BarsInTrade >= e.risk.TimeStopBars && closeValid && r < 1.0 {
		decision.Exit = true
		decision.Type = models.ExitTimeStop
		decision.Price = bar.Close
		decision.Fraction = 1.0
		return decision
	}

	// 3. Momentum failure: money flow turns negative or the close loses
	// the anchored VWAP. Each component is skipped when its input is NaN.
	cmfValid := !math.IsNaN(bar.CMFZ)
	vwapValid := !math.IsNaN(bar.AnchoredVWAP)
	if !cmfValid {
		decision.DegradedColumns = append(decision.DegradedColumns, "CMF_Z")
	}
	if !vwapValid {
		decision.DegradedColumns = append(decision.DegradedColumns, "Anchored_VWAP")
	}
	if (cmfValid && bar.CMFZ < 0) || (closeValid && vwapValid && bar.Close < bar.AnchoredVWAP) {
		decision.Exit = true
		decision.Type = models.ExitMomentumFail
		decision.Price = bar.Close
		decision.Fraction = 1.0
		return decision
	}

	// 4. Profit target: scale out once, then hand the remainder to the
	// trailing stop seeded from the rolling low.
	if !pos.ProfitTaken && closeValid && r >= e.risk.ProfitTargetR {
		decision.Exit = true
		decision.Type = models.ExitProfitTarget
		decision.Price = bar.Close
		decision.Fraction = e.risk.ProfitTakeFraction
		decision.NewTrailStop = e.rollingLow(series, i)
		return decision
	}

	// 5. External signal exit from the signal-generation pipeline.
	if bar.HasExitSignal() {
		decision.Exit = true
		decision.Type = models.ExitSignal
		decision.Price = bar.Close
		decision.Fraction = 1.0
		return decision
	}

	return decision
}

// evaluateTrailing handles the remaining fraction after a scale-out:
// the trailing stop is monotonically non-decreasing, and only a trail
// breach or an external signal can close the position.
func (e *ExitEvaluator) evaluateTrailing(pos *models.Position, series *models.FeatureSeries, i int, decision ExitDecision, closeValid bool) ExitDecision {
	bar := &series.Rows[i]
	if !closeValid {
		decision.DegradedColumns = append(decision.DegradedColumns, "Close")
	}

	trail := pos.CurrentStopPrice
	if low := e.rollingLow(series, i); !math.IsNaN(low) && low > trail {
		trail = low
	}
	decision.NewTrailStop = trail

	if closeValid && bar.Close < trail {
		decision.Exit = true
		decision.Type = models.ExitTrailStop
		decision.Price = bar.Close
		decision.Fraction = 1.0
		return decision
	}

	if bar.HasExitSignal() {
		decision.Exit = true
		decision.Type = models.ExitSignal
		decision.Price = bar.Close
		decision.Fraction = 1.0
		return decision
	}
	return decision
}

// rollingLow returns the lowest Low over the trailing window ending at
// index i, ignoring NaN rows.
func (e *ExitEvaluator) rollingLow(series *models.FeatureSeries, i int) float64 {
	start := i - e.risk.TrailingWindowBars + 1
	if start < 0 {
		start = 0
	}

	low := math.NaN()
	for j := start; j <= i; j++ {
		l := series.Rows[j].Low
		if math.IsNaN(l) {
			continue
		}
		if math.IsNaN(low) || l < low {
			low = l
		}
	}
	return low
}
