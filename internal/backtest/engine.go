package backtest

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"flowtrader/internal/config"
	apperrors "flowtrader/internal/errors"
	"flowtrader/internal/logging"
	"flowtrader/internal/models"
)

// Engine runs the risk-managed simulation for single instruments. Bars
// are processed strictly in chronological order: stop and trailing
// state depends on every prior bar, so this is a sequential fold, never
// parallel within one instrument.
type Engine struct {
	risk   config.RiskConfig
	equity float64
	logger zerolog.Logger
}

// NewEngine creates an engine with the given risk parameters and
// starting equity.
func NewEngine(risk config.RiskConfig, equity float64, logger zerolog.Logger) *Engine {
	return &Engine{risk: risk, equity: equity, logger: logger}
}

// Run simulates one instrument and returns its trade ledger. Replaying
// the same series with the same parameters produces an identical list:
// there is no randomness and no wall-clock input anywhere in the loop.
func (e *Engine) Run(ctx context.Context, series *models.FeatureSeries) ([]models.Trade, error) {
	if series.Len() == 0 {
		return nil, apperrors.NewInstrumentError(series.Instrument, apperrors.ErrInsufficientBars)
	}
	if err := series.Validate(); err != nil {
		return nil, apperrors.NewInstrumentError(series.Instrument, err)
	}

	logger := logging.WithInstrument(e.logger, series.Instrument)

	sizer := NewPositionSizer(e.risk.RiskPctPerTrade)
	stops := NewStopCalculator(e.risk)
	exits := NewExitEvaluator(e.risk)
	ledger := NewPositionLedger(sizer, stops, exits)
	recorder := NewTradeRecorder()

	// Index of a bar whose entry signal is waiting to fill at the next
	// session's open; -1 when nothing is pending.
	pending := -1

	for i := range series.Rows {
		select {
		case <-ctx.Done():
			return nil, apperrors.NewInstrumentError(series.Instrument, ctx.Err())
		default:
		}

		bar := &series.Rows[i]

		// Fill the pending entry before anything else: the signal fired
		// on bar pending, the fill lands on this bar at its open.
		if pending >= 0 {
			signalBar := &series.Rows[pending]
			pending = -1
			if _, err := ledger.Open(series.Instrument, signalBar, bar, e.equity); err != nil {
				var sizingErr *apperrors.SizingError
				if apperrors.As(err, &sizingErr) {
					logging.LogEntrySkipped(logger, series.Instrument,
						signalBar.Date.Format("2006-01-02"), sizingErr.Error())
				} else {
					return nil, apperrors.NewInstrumentError(series.Instrument, err)
				}
			}
		}

		if ledger.Get(series.Instrument) != nil {
			trade, decision := ledger.Step(series, i)
			if len(decision.DegradedColumns) > 0 {
				logging.LogDegradedBar(logger, series.Instrument,
					bar.Date.Format("2006-01-02"), strings.Join(decision.DegradedColumns, ","))
			}
			if trade != nil {
				recorder.Record(trade)
				logging.LogTradeClosed(logger, series.Instrument, string(trade.ExitType),
					trade.RMultiple, trade.BarsHeld, trade.Partial)
			}
			continue
		}

		// Flat: look for a fresh entry signal. The last bar can never
		// fill (there is no next session), and filtered or gappy bars
		// are skipped rather than guessed at.
		if i == len(series.Rows)-1 {
			continue
		}
		if !bar.HasEntrySignal() {
			continue
		}
		if bar.EventDay || !bar.RegimeOK {
			logging.LogEntrySkipped(logger, series.Instrument,
				bar.Date.Format("2006-01-02"), "pre-trade filter")
			continue
		}
		if !bar.EntryInputsValid() {
			logging.LogEntrySkipped(logger, series.Instrument,
				bar.Date.Format("2006-01-02"), "missing feature inputs")
			continue
		}
		pending = i
	}

	// A position left open at the end of the data is force-closed and
	// reported; dropping it would overstate the surviving trades.
	if trade := ledger.CloseEndOfData(series); trade != nil {
		recorder.Record(trade)
		logging.LogTradeClosed(logger, series.Instrument, string(trade.ExitType),
			trade.RMultiple, trade.BarsHeld, trade.Partial)
	}

	return recorder.Trades(), nil
}
