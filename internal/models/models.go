// Package models provides domain models for the backtest application.
package models

import (
	"fmt"
	"math"
	"time"
)

// FeatureRow is one trading session of precomputed features for an
// instrument. The engine never derives indicators itself; every column
// here arrives already computed from the feature pipeline. Missing
// values are NaN, never zero.
type FeatureRow struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64

	// NextOpen is the opening price of the following session. Entries
	// execute at this price so a signal on bar i can never fill on
	// bar i's own prices.
	NextOpen float64

	ATR20          float64
	RecentSwingLow float64
	AnchoredVWAP   float64
	CMFZ           float64

	// ATRZ is an optional volatility z-score used by the vol_regime
	// stop strategy. NaN when the pipeline does not produce it.
	ATRZ float64

	EntrySignals map[string]bool
	ExitSignals  map[string]bool

	EventDay bool
	RegimeOK bool
}

// HasEntrySignal reports whether any entry signal fired on this bar.
func (r *FeatureRow) HasEntrySignal() bool {
	for _, v := range r.EntrySignals {
		if v {
			return true
		}
	}
	return false
}

// HasExitSignal reports whether any external exit signal fired on this bar.
func (r *FeatureRow) HasExitSignal() bool {
	for _, v := range r.ExitSignals {
		if v {
			return true
		}
	}
	return false
}

// EntryInputsValid reports whether the columns needed to open and stop a
// new position are all present on this bar.
func (r *FeatureRow) EntryInputsValid() bool {
	return !math.IsNaN(r.ATR20) &&
		!math.IsNaN(r.RecentSwingLow) &&
		!math.IsNaN(r.AnchoredVWAP) &&
		!math.IsNaN(r.NextOpen)
}

// FeatureSeries is the immutable, time-ordered feature table for one
// instrument. Rows are strictly chronological and contiguous; gaps must
// be explicit NaN rows, never silently dropped sessions.
type FeatureSeries struct {
	Instrument string
	Rows       []FeatureRow
}

// Len returns the number of sessions in the series.
func (s *FeatureSeries) Len() int { return len(s.Rows) }

// Validate checks the chronological ordering invariant.
func (s *FeatureSeries) Validate() error {
	for i := 1; i < len(s.Rows); i++ {
		if !s.Rows[i].Date.After(s.Rows[i-1].Date) {
			return &SeriesOrderError{
				Instrument: s.Instrument,
				Index:      i,
				Prev:       s.Rows[i-1].Date,
				Curr:       s.Rows[i].Date,
			}
		}
	}
	return nil
}

// SeriesOrderError reports an out-of-order row in a feature series.
type SeriesOrderError struct {
	Instrument string
	Index      int
	Prev       time.Time
	Curr       time.Time
}

func (e *SeriesOrderError) Error() string {
	return fmt.Sprintf("feature series for %s is not strictly time-ordered at row %d (%s -> %s)",
		e.Instrument, e.Index, e.Prev.Format("2006-01-02"), e.Curr.Format("2006-01-02"))
}
