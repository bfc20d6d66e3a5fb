package models

import "time"

// ExitType enumerates the reasons a position (or part of one) closes.
type ExitType string

const (
	ExitHardStop     ExitType = "HARD_STOP"
	ExitTimeStop     ExitType = "TIME_STOP"
	ExitMomentumFail ExitType = "MOMENTUM_FAIL"
	ExitProfitTarget ExitType = "PROFIT_TARGET"
	ExitTrailStop    ExitType = "TRAIL_STOP"
	ExitSignal       ExitType = "SIGNAL_EXIT"
	ExitEndOfData    ExitType = "END_OF_DATA"
)

// ExitTypes lists every valid exit type.
var ExitTypes = []ExitType{
	ExitHardStop,
	ExitTimeStop,
	ExitMomentumFail,
	ExitProfitTarget,
	ExitTrailStop,
	ExitSignal,
	ExitEndOfData,
}

// Valid reports whether t is one of the enumerated exit types.
func (t ExitType) Valid() bool {
	for _, k := range ExitTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Trade is one completed (or partially realized) trade. Records are
// append-only and immutable once written: a position that scales out at
// the profit target emits two of these.
type Trade struct {
	Instrument string    `csv:"instrument"`
	EntryDate  time.Time `csv:"entry_date"`
	EntryPrice float64   `csv:"entry_price"`
	ExitDate   time.Time `csv:"exit_date"`
	ExitPrice  float64   `csv:"exit_price"`
	ExitType   ExitType  `csv:"exit_type"`
	BarsHeld   int       `csv:"bars_held"`
	RMultiple  float64   `csv:"r_multiple"`
	ProfitPct  float64   `csv:"profit_pct"`
	ShareCount int       `csv:"share_count"`
	Partial    bool      `csv:"partial"`
}

// InstrumentFailure records one instrument that could not be simulated
// in a batch run. Failures never abort the batch.
type InstrumentFailure struct {
	Instrument string
	Message    string
}

// Summary is the aggregate statistics over a trade list. It is a pure
// reduction: same trades in, same summary out.
type Summary struct {
	TotalTrades   int
	WinRate       float64
	MedianReturn  float64
	MeanReturn    float64
	ProfitFactor  float64
	Expectancy    float64
	MaxDrawdown   float64
	ExitTypeCount map[ExitType]int
}

// BatchResult is the output of a batch run: every trade from every
// instrument that simulated cleanly, plus the failures.
type BatchResult struct {
	Trades   []Trade
	Failures []InstrumentFailure
	Summary  Summary
}
