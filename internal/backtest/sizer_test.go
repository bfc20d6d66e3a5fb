package backtest

import (
	"math"
	"testing"

	apperrors "flowtrader/internal/errors"
)

// TestSize_LowVolatility sizes a cheap, quiet instrument: entry 29.63
// with the stop at 28.16 risks 1.47 per share, so 0.75% of 500k equity
// buys 2551 shares.
func TestSize_LowVolatility(t *testing.T) {
	sizer := NewPositionSizer(0.0075)

	shares, err := sizer.Size("QUIET", 29.63, 28.16, 500000)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if shares != 2551 {
		t.Errorf("expected 2551 shares, got %d", shares)
	}
}

// TestSize_HighVolatility sizes an expensive, volatile instrument:
// entry 975.60 with the stop at 888.75 risks 86.85 per share, so the
// same risk budget buys only 43 shares.
func TestSize_HighVolatility(t *testing.T) {
	sizer := NewPositionSizer(0.0075)

	shares, err := sizer.Size("WILD", 975.60, 888.75, 500000)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if shares != 43 {
		t.Errorf("expected 43 shares, got %d", shares)
	}
}

// TestSize_DollarRiskEquivalence checks that both worked examples risk
// (nearly) the same dollar amount despite a 30x price difference.
func TestSize_DollarRiskEquivalence(t *testing.T) {
	sizer := NewPositionSizer(0.0075)
	budget := sizer.RiskAmount(500000)

	quiet, _ := sizer.Size("QUIET", 29.63, 28.16, 500000)
	wild, _ := sizer.Size("WILD", 975.60, 888.75, 500000)

	quietRisk := float64(quiet) * (29.63 - 28.16)
	wildRisk := float64(wild) * (975.60 - 888.75)

	if quietRisk > budget || wildRisk > budget {
		t.Errorf("dollar risk exceeds budget %.2f: quiet=%.2f wild=%.2f",
			budget, quietRisk, wildRisk)
	}
	// Each is within one share's risk of the budget.
	if budget-quietRisk >= 29.63-28.16 {
		t.Errorf("quiet under-risked by more than one share: budget=%.2f risked=%.2f", budget, quietRisk)
	}
	if budget-wildRisk >= 975.60-888.75 {
		t.Errorf("wild under-risked by more than one share: budget=%.2f risked=%.2f", budget, wildRisk)
	}
}

func TestSize_Rejections(t *testing.T) {
	sizer := NewPositionSizer(0.0075)

	tests := []struct {
		name   string
		entry  float64
		stop   float64
		equity float64
	}{
		{"stop above entry", 100, 105, 500000},
		{"stop equals entry", 100, 100, 500000},
		{"NaN entry", math.NaN(), 95, 500000},
		{"NaN stop", 100, math.NaN(), 500000},
		{"equity too small for one share", 1000, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sizer.Size("TEST", tt.entry, tt.stop, tt.equity)
			if err == nil {
				t.Fatal("expected sizing rejection, got nil error")
			}
			var sizingErr *apperrors.SizingError
			if !apperrors.As(err, &sizingErr) {
				t.Errorf("expected *SizingError, got %T: %v", err, err)
			}
		})
	}
}
