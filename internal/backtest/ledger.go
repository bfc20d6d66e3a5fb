package backtest

import (
	"math"

	apperrors "flowtrader/internal/errors"
	"flowtrader/internal/models"
)

// PositionLedger owns the mutable position state, keyed by instrument.
// It is the only place positions are created, mutated or destroyed;
// sizing, stop and exit logic stay pure and are applied here.
//
// Invariant: at most one open position per instrument.
type PositionLedger struct {
	active map[string]*models.Position

	sizer *PositionSizer
	stops *StopCalculator
	exits *ExitEvaluator
}

// NewPositionLedger creates an empty ledger wired to the given policies.
func NewPositionLedger(sizer *PositionSizer, stops *StopCalculator, exits *ExitEvaluator) *PositionLedger {
	return &PositionLedger{
		active: make(map[string]*models.Position),
		sizer:  sizer,
		stops:  stops,
		exits:  exits,
	}
}

// Get returns the open position for an instrument, or nil.
func (l *PositionLedger) Get(instrument string) *models.Position {
	return l.active[instrument]
}

// OpenCount returns the number of open positions across instruments.
func (l *PositionLedger) OpenCount() int { return len(l.active) }

// Open creates a position for a signal that fired on signalBar. The
// fill happens at the signal bar's NextOpen (the following session's
// open), never at the signal bar's own prices. entryBar is the session
// the fill lands on.
func (l *PositionLedger) Open(instrument string, signalBar, entryBar *models.FeatureRow, equity float64) (*models.Position, error) {
	if _, ok := l.active[instrument]; ok {
		return nil, apperrors.ErrPositionOpen
	}

	entryPrice := signalBar.NextOpen
	stop := l.stops.InitialStop(signalBar)

	shares, err := l.sizer.Size(instrument, entryPrice, stop, equity)
	if err != nil {
		return nil, err
	}

	pos := &models.Position{
		Instrument:        instrument,
		State:             models.PositionOpen,
		EntryDate:         entryBar.Date,
		EntryPrice:        entryPrice,
		InitialStopPrice:  stop,
		CurrentStopPrice:  stop,
		ATRAtEntry:        signalBar.ATR20,
		ShareCount:        shares,
		RemainingFraction: 1.0,
	}
	l.active[instrument] = pos
	return pos, nil
}

// Step advances the position for the bar at index i: ages it, refreshes
// the peak R-multiple, applies the configured stop recalculation, then
// evaluates the exit checks and applies whatever they decide. At most
// one Trade comes out of a single bar.
func (l *PositionLedger) Step(series *models.FeatureSeries, i int) (*models.Trade, ExitDecision) {
	pos := l.active[series.Instrument]
	if pos == nil {
		return nil, ExitDecision{}
	}

	bar := &series.Rows[i]

	if bar.Date.After(pos.EntryDate) {
		pos.BarsInTrade++
	}

	if !math.IsNaN(bar.Close) {
		if r := pos.RMultiple(bar.Close); r > pos.PeakRMultiple {
			pos.PeakRMultiple = r
		}
	}

	// Strategy stop updates stand down once the post-profit trail owns
	// the stop.
	if !pos.TrailActive {
		pos.CurrentStopPrice = l.stops.UpdateStop(pos, bar)
	}

	decision := l.exits.Evaluate(pos, series, i)

	if !decision.Exit {
		if pos.TrailActive && !math.IsNaN(decision.NewTrailStop) {
			// Non-decreasing by construction, enforced again here.
			pos.CurrentStopPrice = math.Max(pos.CurrentStopPrice, decision.NewTrailStop)
		}
		return nil, decision
	}

	return l.applyExit(pos, bar, decision), decision
}

// CloseEndOfData force-closes a position left open when the series is
// exhausted. Always reported, never dropped: silently discarding these
// would bias the aggregate statistics toward survivors.
func (l *PositionLedger) CloseEndOfData(series *models.FeatureSeries) *models.Trade {
	pos := l.active[series.Instrument]
	if pos == nil {
		return nil
	}

	price := math.NaN()
	last := len(series.Rows) - 1
	var date = series.Rows[last].Date
	for j := last; j >= 0; j-- {
		if !math.IsNaN(series.Rows[j].Close) {
			price = series.Rows[j].Close
			date = series.Rows[j].Date
			break
		}
	}
	if math.IsNaN(price) {
		price = pos.EntryPrice
	}

	decision := ExitDecision{
		Exit:     true,
		Type:     models.ExitEndOfData,
		Price:    price,
		Fraction: 1.0,
	}
	bar := &models.FeatureRow{Date: date, Close: price}
	return l.applyExit(pos, bar, decision)
}

// applyExit turns an exit decision into a Trade record and mutates or
// destroys the position accordingly.
func (l *PositionLedger) applyExit(pos *models.Position, bar *models.FeatureRow, decision ExitDecision) *models.Trade {
	var shares int
	partial := decision.Type == models.ExitProfitTarget

	if partial {
		shares = int(float64(pos.RemainingShares()) * decision.Fraction)
		if shares < 1 {
			shares = 1
		}
	} else {
		shares = pos.RemainingShares()
	}

	trade := &models.Trade{
		Instrument: pos.Instrument,
		EntryDate:  pos.EntryDate,
		EntryPrice: pos.EntryPrice,
		ExitDate:   bar.Date,
		ExitPrice:  decision.Price,
		ExitType:   decision.Type,
		BarsHeld:   pos.BarsInTrade,
		RMultiple:  pos.RMultiple(decision.Price),
		ProfitPct:  (decision.Price - pos.EntryPrice) / pos.EntryPrice * 100,
		ShareCount: shares,
		Partial:    partial,
	}

	if partial {
		pos.SharesSold += shares
		pos.RemainingFraction *= 1 - decision.Fraction
		pos.ProfitTaken = true
		pos.TrailActive = true
		pos.State = models.PositionPartiallyClosed
		if !math.IsNaN(decision.NewTrailStop) {
			pos.CurrentStopPrice = math.Max(pos.CurrentStopPrice, decision.NewTrailStop)
		}
		return trade
	}

	pos.SharesSold = pos.ShareCount
	pos.RemainingFraction = 0
	pos.State = models.PositionClosed
	delete(l.active, pos.Instrument)
	return trade
}
