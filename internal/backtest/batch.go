package backtest

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"flowtrader/internal/config"
	apperrors "flowtrader/internal/errors"
	"flowtrader/internal/logging"
	"flowtrader/internal/models"
	"flowtrader/internal/performance"
)

// SeriesProvider supplies the finalized feature series for an
// instrument. The store satisfies this; tests stub it.
type SeriesProvider interface {
	GetFeatureSeries(ctx context.Context, instrument string) (*models.FeatureSeries, error)
}

// BatchRunner fans the single-instrument simulation out across a worker
// pool. Instruments are fully independent, so the only shared state is
// the result collection point. A failed instrument is recorded and the
// batch moves on.
type BatchRunner struct {
	cfg      *config.Config
	provider SeriesProvider
	logger   zerolog.Logger
}

// NewBatchRunner creates a batch runner.
func NewBatchRunner(cfg *config.Config, provider SeriesProvider, logger zerolog.Logger) *BatchRunner {
	return &BatchRunner{cfg: cfg, provider: provider, logger: logger}
}

// Run simulates every instrument and aggregates the combined ledger.
// Cancellation is coarse-grained: remaining instruments are abandoned,
// but trades already recorded for completed instruments are kept.
//
// Output ordering is deterministic regardless of worker scheduling:
// trades sort by (instrument, entry date, exit date), failures by
// instrument.
func (b *BatchRunner) Run(ctx context.Context, instruments []string) (*models.BatchResult, error) {
	pool := performance.NewWorkerPool(b.cfg.Backtest.Workers)
	pool.Start()
	defer pool.Stop()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		trades   []models.Trade
		failures []models.InstrumentFailure
	)

	engine := NewEngine(b.cfg.Risk, b.cfg.Backtest.InitialEquity, b.logger)

	for _, instrument := range instruments {
		instrument := instrument
		wg.Add(1)
		submitted := pool.Submit(func() {
			defer wg.Done()
			result, err := b.runOne(ctx, engine, instrument)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, models.InstrumentFailure{
					Instrument: instrument,
					Message:    err.Error(),
				})
				logging.LogBatchInstrument(b.logger, instrument, 0, err)
				return
			}
			trades = append(trades, result...)
			logging.LogBatchInstrument(b.logger, instrument, len(result), nil)
		})
		if !submitted {
			wg.Done()
			mu.Lock()
			failures = append(failures, models.InstrumentFailure{
				Instrument: instrument,
				Message:    apperrors.ErrBatchCancelled.Error(),
			})
			mu.Unlock()
		}
	}

	wg.Wait()

	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].Instrument != trades[j].Instrument {
			return trades[i].Instrument < trades[j].Instrument
		}
		if !trades[i].EntryDate.Equal(trades[j].EntryDate) {
			return trades[i].EntryDate.Before(trades[j].EntryDate)
		}
		return trades[i].ExitDate.Before(trades[j].ExitDate)
	})
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].Instrument < failures[j].Instrument
	})

	return &models.BatchResult{
		Trades:   trades,
		Failures: failures,
		Summary:  Aggregate(trades, b.cfg.Backtest.InitialEquity),
	}, nil
}

// runOne loads and simulates a single instrument, converting any
// failure into an error scoped to that instrument.
func (b *BatchRunner) runOne(ctx context.Context, engine *Engine, instrument string) ([]models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInstrumentError(instrument, apperrors.ErrBatchCancelled)
	}

	series, err := b.provider.GetFeatureSeries(ctx, instrument)
	if err != nil {
		return nil, apperrors.NewInstrumentError(instrument, err)
	}
	return engine.Run(ctx, series)
}
