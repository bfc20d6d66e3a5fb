// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"flowtrader/internal/models"
)

// DataStore defines the interface for data persistence. Feature series
// arrive precomputed from the feature pipeline; the store only moves
// them, it never derives columns.
type DataStore interface {
	// Feature series
	SaveFeatureSeries(ctx context.Context, series *models.FeatureSeries) error
	GetFeatureSeries(ctx context.Context, instrument string) (*models.FeatureSeries, error)
	ListInstruments(ctx context.Context) ([]string, error)

	// Runs and trades
	SaveRun(ctx context.Context, run *RunRecord) (int64, error)
	SaveTrades(ctx context.Context, runID int64, trades []models.Trade) error
	SaveFailures(ctx context.Context, runID int64, failures []models.InstrumentFailure) error
	GetRun(ctx context.Context, runID int64) (*RunRecord, error)
	GetLatestRun(ctx context.Context) (*RunRecord, error)
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	GetFailures(ctx context.Context, runID int64) ([]models.InstrumentFailure, error)

	// Lifecycle
	Close() error
}

// RunRecord is one persisted backtest run: the parameters it ran with
// and the summary it produced.
type RunRecord struct {
	ID            int64
	CreatedAt     time.Time
	StopStrategy  string
	RiskPct       float64
	InitialEquity float64
	Summary       models.Summary
}

// TradeFilter represents filters for querying stored trades.
type TradeFilter struct {
	RunID      int64
	Instrument string
	StartDate  time.Time
	EndDate    time.Time
	ExitType   string
	Limit      int
}
