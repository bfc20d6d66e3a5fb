package backtest

import (
	"math"
	"testing"
	"time"

	"flowtrader/internal/models"
)

func statsTrade(instrument string, day int, entry, exit float64, shares int, exitType models.ExitType, r float64) models.Trade {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.Trade{
		Instrument: instrument,
		EntryDate:  base.AddDate(0, 0, day-1),
		EntryPrice: entry,
		ExitDate:   base.AddDate(0, 0, day),
		ExitPrice:  exit,
		ExitType:   exitType,
		RMultiple:  r,
		ProfitPct:  (exit - entry) / entry * 100,
		ShareCount: shares,
	}
}

func TestAggregate(t *testing.T) {
	trades := []models.Trade{
		statsTrade("AAA", 1, 100, 110, 10, models.ExitProfitTarget, 2.0),
		statsTrade("BBB", 2, 50, 45, 10, models.ExitHardStop, -1.0),
		statsTrade("CCC", 3, 20, 22, 5, models.ExitTrailStop, 0.5),
	}

	summary := Aggregate(trades, 500000)

	if summary.TotalTrades != 3 {
		t.Errorf("total trades: got %d, want 3", summary.TotalTrades)
	}
	if math.Abs(summary.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("win rate: got %.4f, want 0.6667", summary.WinRate)
	}
	// Returns are +10%, -10%, +10%.
	if math.Abs(summary.MeanReturn-10.0/3.0) > 1e-9 {
		t.Errorf("mean return: got %.4f, want 3.3333", summary.MeanReturn)
	}
	if math.Abs(summary.MedianReturn-10.0) > 1e-9 {
		t.Errorf("median return: got %.4f, want 10", summary.MedianReturn)
	}
	// Gross win 100 + 10, gross loss 50.
	if math.Abs(summary.ProfitFactor-2.2) > 1e-9 {
		t.Errorf("profit factor: got %.4f, want 2.2", summary.ProfitFactor)
	}
	// Expectancy is the mean R: (2.0 - 1.0 + 0.5) / 3.
	if math.Abs(summary.Expectancy-0.5) > 1e-9 {
		t.Errorf("expectancy: got %.4f, want 0.5", summary.Expectancy)
	}
	// Equity runs 500000 -> 500100 (peak) -> 500050 -> 500060.
	if math.Abs(summary.MaxDrawdown-50.0/500100.0) > 1e-12 {
		t.Errorf("max drawdown: got %.8f, want %.8f", summary.MaxDrawdown, 50.0/500100.0)
	}

	if summary.ExitTypeCount[models.ExitHardStop] != 1 ||
		summary.ExitTypeCount[models.ExitProfitTarget] != 1 ||
		summary.ExitTypeCount[models.ExitTrailStop] != 1 {
		t.Errorf("exit type counts wrong: %v", summary.ExitTypeCount)
	}
}

func TestAggregate_Empty(t *testing.T) {
	summary := Aggregate(nil, 500000)

	if summary.TotalTrades != 0 {
		t.Errorf("expected zero trades, got %d", summary.TotalTrades)
	}
	if summary.WinRate != 0 || summary.ProfitFactor != 0 || summary.MaxDrawdown != 0 {
		t.Errorf("empty summary not zeroed: %+v", summary)
	}
}

// TestAggregate_NoLossesProfitFactor: a loss-free run has an infinite
// profit factor, not a division blow-up.
func TestAggregate_NoLossesProfitFactor(t *testing.T) {
	trades := []models.Trade{
		statsTrade("AAA", 1, 100, 110, 10, models.ExitProfitTarget, 2.0),
		statsTrade("BBB", 2, 50, 55, 10, models.ExitTrailStop, 1.0),
	}

	summary := Aggregate(trades, 500000)
	if !math.IsInf(summary.ProfitFactor, 1) {
		t.Errorf("expected +Inf profit factor, got %v", summary.ProfitFactor)
	}
	if summary.WinRate != 1.0 {
		t.Errorf("expected win rate 1.0, got %.4f", summary.WinRate)
	}
}

func TestMedian_EvenCount(t *testing.T) {
	trades := []models.Trade{
		statsTrade("AAA", 1, 100, 101, 1, models.ExitSignal, 0.2),
		statsTrade("BBB", 2, 100, 103, 1, models.ExitSignal, 0.6),
		statsTrade("CCC", 3, 100, 105, 1, models.ExitSignal, 1.0),
		statsTrade("DDD", 4, 100, 111, 1, models.ExitSignal, 2.2),
	}

	summary := Aggregate(trades, 500000)
	// Returns 1, 3, 5, 11: median is (3+5)/2.
	if math.Abs(summary.MedianReturn-4.0) > 1e-9 {
		t.Errorf("median of even count: got %.4f, want 4", summary.MedianReturn)
	}
}

// TestMaxDrawdown_ExitDateOrder: drawdown must walk the equity curve in
// exit-date order, not input order.
func TestMaxDrawdown_ExitDateOrder(t *testing.T) {
	trades := []models.Trade{
		// Listed out of order: the loss happened first.
		statsTrade("AAA", 5, 100, 120, 100, models.ExitProfitTarget, 4.0), // +2000, day 6
		statsTrade("BBB", 1, 100, 90, 100, models.ExitHardStop, -1.0),     // -1000, day 2
	}

	summary := Aggregate(trades, 100000)
	// Curve: 100000 -> 99000 -> 101000. Peak 100000, trough 99000.
	if math.Abs(summary.MaxDrawdown-1000.0/100000.0) > 1e-12 {
		t.Errorf("max drawdown: got %.6f, want 0.01", summary.MaxDrawdown)
	}
}
