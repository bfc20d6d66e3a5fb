package backtest

import (
	"math"
	"sort"

	"flowtrader/internal/models"
)

// Aggregate reduces a trade list to summary statistics. It is a pure
// reduction: no state machine, no hidden inputs. initialEquity anchors
// the drawdown calculation; expectancy is the mean R-multiple.
func Aggregate(trades []models.Trade, initialEquity float64) models.Summary {
	summary := models.Summary{
		TotalTrades:   len(trades),
		ExitTypeCount: make(map[models.ExitType]int),
	}
	if len(trades) == 0 {
		return summary
	}

	var wins int
	var grossWin, grossLoss float64
	var sumR, sumReturn float64
	returns := make([]float64, 0, len(trades))

	for _, t := range trades {
		summary.ExitTypeCount[t.ExitType]++

		pnl := (t.ExitPrice - t.EntryPrice) * float64(t.ShareCount)
		if pnl > 0 {
			wins++
			grossWin += pnl
		} else {
			grossLoss += -pnl
		}

		sumR += t.RMultiple
		sumReturn += t.ProfitPct
		returns = append(returns, t.ProfitPct)
	}

	summary.WinRate = float64(wins) / float64(len(trades))
	summary.MeanReturn = sumReturn / float64(len(trades))
	summary.MedianReturn = median(returns)
	summary.Expectancy = sumR / float64(len(trades))

	if grossLoss > 0 {
		summary.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		summary.ProfitFactor = math.Inf(1)
	}

	summary.MaxDrawdown = maxDrawdown(trades, initialEquity)
	return summary
}

// median returns the median of values. The input slice is not modified.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// maxDrawdown walks the realized equity curve in exit-date order and
// returns the largest peak-to-trough decline as a fraction of the peak.
func maxDrawdown(trades []models.Trade, initialEquity float64) float64 {
	if initialEquity <= 0 {
		return 0
	}

	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitDate.Before(ordered[j].ExitDate)
	})

	equity := initialEquity
	peak := initialEquity
	var maxDD float64

	for _, t := range ordered {
		equity += (t.ExitPrice - t.EntryPrice) * float64(t.ShareCount)
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
