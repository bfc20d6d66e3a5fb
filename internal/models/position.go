package models

import "time"

// PositionState is the lifecycle state of a position.
type PositionState string

const (
	PositionOpen            PositionState = "OPEN"
	PositionPartiallyClosed PositionState = "PARTIALLY_CLOSED"
	PositionClosed          PositionState = "CLOSED"
)

// Position is the mutable state of one open position. The ledger owns
// at most one of these per instrument at a time.
type Position struct {
	Instrument string
	State      PositionState

	EntryDate  time.Time
	EntryPrice float64

	InitialStopPrice float64
	CurrentStopPrice float64

	// ATRAtEntry is snapshotted at fill time; the time_decay strategy
	// recomputes stop width against it rather than the live ATR.
	ATRAtEntry float64

	ShareCount        int
	SharesSold        int
	RemainingFraction float64

	BarsInTrade   int
	PeakRMultiple float64

	ProfitTaken bool
	TrailActive bool
}

// RemainingShares returns the share count still held after partial
// exits. Tracked in whole shares so a scale-out plus the final close
// always sum to the original count.
func (p *Position) RemainingShares() int {
	return p.ShareCount - p.SharesSold
}

// RMultiple returns the R-multiple of the position at the given price.
// One R is the distance from entry to the initial stop.
func (p *Position) RMultiple(price float64) float64 {
	risk := p.EntryPrice - p.InitialStopPrice
	if risk <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / risk
}
