package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"flowtrader/internal/models"
)

// Property: any feature series, gaps included, saved to the store and
// loaded back is equivalent to what went in — same dates, same values,
// NaN for NaN.
func TestProperty_FeatureSeriesRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "property.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	countGen := gen.IntRange(1, 25)
	priceGen := gen.Float64Range(10, 2000)
	atrGen := gen.Float64Range(0.1, 100)
	gapEveryGen := gen.IntRange(2, 10)

	var serial int

	properties.Property("save then load produces an equivalent series", prop.ForAll(
		func(count int, basePrice, atr float64, gapEvery int) bool {
			ctx := context.Background()
			serial++
			instrument := fmt.Sprintf("PROP%d", serial)

			saved := generateFeatureSeries(instrument, count, basePrice, atr, gapEvery)
			if err := store.SaveFeatureSeries(ctx, saved); err != nil {
				t.Logf("save failed: %v", err)
				return false
			}

			loaded, err := store.GetFeatureSeries(ctx, instrument)
			if err != nil {
				t.Logf("load failed: %v", err)
				return false
			}
			if loaded.Len() != saved.Len() {
				t.Logf("row count mismatch: got %d, want %d", loaded.Len(), saved.Len())
				return false
			}

			for i := range saved.Rows {
				want, got := &saved.Rows[i], &loaded.Rows[i]
				if !got.Date.Equal(want.Date) {
					t.Logf("row %d date mismatch: %v vs %v", i, got.Date, want.Date)
					return false
				}
				if !floatsMatch(want.Close, got.Close) ||
					!floatsMatch(want.ATR20, got.ATR20) ||
					!floatsMatch(want.NextOpen, got.NextOpen) ||
					!floatsMatch(want.AnchoredVWAP, got.AnchoredVWAP) ||
					!floatsMatch(want.ATRZ, got.ATRZ) {
					t.Logf("row %d values diverged", i)
					return false
				}
				if got.Volume != want.Volume || got.EventDay != want.EventDay || got.RegimeOK != want.RegimeOK {
					t.Logf("row %d metadata diverged", i)
					return false
				}
				if got.EntrySignals["Entry_Breakout"] != want.EntrySignals["Entry_Breakout"] {
					t.Logf("row %d signals diverged", i)
					return false
				}
			}
			return true
		},
		countGen,
		priceGen,
		atrGen,
		gapEveryGen,
	))

	properties.TestingRun(t)
}

// generateFeatureSeries builds count rows around basePrice, punching a
// NaN gap into every gapEvery-th row.
func generateFeatureSeries(instrument string, count int, basePrice, atr float64, gapEvery int) *models.FeatureSeries {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	series := &models.FeatureSeries{Instrument: instrument}

	for i := 0; i < count; i++ {
		price := basePrice + float64(i)*atr/10
		row := models.FeatureRow{
			Date:           base.AddDate(0, 0, i),
			Open:           price,
			High:           price + atr/2,
			Low:            price - atr/2,
			Close:          price + atr/4,
			Volume:         int64(10000 * (i + 1)),
			NextOpen:       price + atr/3,
			ATR20:          atr,
			RecentSwingLow: price - atr,
			AnchoredVWAP:   price - atr/2,
			CMFZ:           0.5,
			ATRZ:           math.NaN(),
			EntrySignals:   map[string]bool{"Entry_Breakout": i%3 == 0},
			ExitSignals:    map[string]bool{},
			RegimeOK:       true,
		}
		if i%gapEvery == gapEvery-1 {
			row.Close = math.NaN()
			row.ATR20 = math.NaN()
			row.CMFZ = math.NaN()
		}
		series.Rows = append(series.Rows, row)
	}
	return series
}
