package store

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"flowtrader/internal/models"
)

const featureCSV = `date,Open,High,Low,Close,Volume,Next_Open,ATR20,Recent_Swing_Low,Anchored_VWAP,CMF_Z,ATR_Z,Event_Day,Regime_OK,Entry_Breakout,Entry_Pullback,Exit_Weakness
2024-01-02,100.0,101.5,99.0,101.0,150000,101.2,1.25,98.5,99.8,0.7,,false,true,true,false,false
2024-01-03,101.2,103.0,100.5,102.5,180000,102.7,1.30,98.5,100.1,1.1,0.4,false,true,false,false,false
2024-01-04,102.7,104.0,101.0,,120000,103.1,,98.5,100.5,,,true,false,false,true,true
`

func TestReadFeatureCSV(t *testing.T) {
	series, err := ReadFeatureCSV(strings.NewReader(featureCSV), "ACME")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if series.Instrument != "ACME" {
		t.Errorf("instrument: got %s, want ACME", series.Instrument)
	}
	if series.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", series.Len())
	}

	first := series.Rows[0]
	if !first.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first date wrong: %v", first.Date)
	}
	if first.Close != 101.0 || first.NextOpen != 101.2 || first.ATR20 != 1.25 {
		t.Errorf("first row mis-parsed: %+v", first)
	}
	if first.Volume != 150000 {
		t.Errorf("volume: got %d, want 150000", first.Volume)
	}
	if !first.EntrySignals["Entry_Breakout"] || first.EntrySignals["Entry_Pullback"] {
		t.Errorf("entry signal flags wrong: %v", first.EntrySignals)
	}
	if !first.RegimeOK || first.EventDay {
		t.Errorf("filter flags wrong: event=%v regime=%v", first.EventDay, first.RegimeOK)
	}

	// The empty ATR_Z cell is a missing value, not zero.
	if !math.IsNaN(first.ATRZ) {
		t.Errorf("empty ATR_Z parsed as %v, want NaN", first.ATRZ)
	}

	third := series.Rows[2]
	if !math.IsNaN(third.Close) || !math.IsNaN(third.ATR20) || !math.IsNaN(third.CMFZ) {
		t.Errorf("empty cells not NaN: close=%v atr=%v cmf=%v", third.Close, third.ATR20, third.CMFZ)
	}
	if !third.EventDay || third.RegimeOK {
		t.Errorf("third row filter flags wrong: event=%v regime=%v", third.EventDay, third.RegimeOK)
	}
	if !third.ExitSignals["Exit_Weakness"] {
		t.Errorf("exit signal flag not parsed: %v", third.ExitSignals)
	}
}

func TestReadFeatureCSV_UnknownColumn(t *testing.T) {
	csv := "date,Close,Mystery\n2024-01-02,100,1\n"

	_, err := ReadFeatureCSV(strings.NewReader(csv), "ACME")
	if err == nil || !strings.Contains(err.Error(), "Mystery") {
		t.Errorf("expected unknown-column error naming the column, got %v", err)
	}
}

func TestReadFeatureCSV_SignalColumnsArePermissive(t *testing.T) {
	csv := "date,Close,Entry_NewVariant,Exit_Experimental\n2024-01-02,100,1,0\n"

	series, err := ReadFeatureCSV(strings.NewReader(csv), "ACME")
	if err != nil {
		t.Fatalf("signal columns rejected: %v", err)
	}
	if !series.Rows[0].EntrySignals["Entry_NewVariant"] {
		t.Errorf("new entry signal column not parsed: %v", series.Rows[0].EntrySignals)
	}
}

func TestReadFeatureCSV_MissingDateColumn(t *testing.T) {
	csv := "Open,Close\n100,101\n"

	if _, err := ReadFeatureCSV(strings.NewReader(csv), "ACME"); err == nil {
		t.Error("expected error for missing date column")
	}
}

func TestReadFeatureCSV_OutOfOrderRows(t *testing.T) {
	csv := "date,Close\n2024-01-03,100\n2024-01-02,101\n"

	if _, err := ReadFeatureCSV(strings.NewReader(csv), "ACME"); err == nil {
		t.Error("expected ordering error for out-of-order rows")
	}
}

func TestWriteTradesCSV(t *testing.T) {
	trades := []models.Trade{
		{
			Instrument: "ACME",
			EntryDate:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			EntryPrice: 101.5,
			ExitDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			ExitPrice:  110.0,
			ExitType:   models.ExitProfitTarget,
			BarsHeld:   5,
			RMultiple:  2.125,
			ProfitPct:  8.37,
			ShareCount: 468,
			Partial:    true,
		},
	}

	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, trades); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "instrument,entry_date") {
		t.Errorf("header wrong: %s", lines[0])
	}
	if !strings.Contains(lines[1], "ACME") || !strings.Contains(lines[1], "PROFIT_TARGET") {
		t.Errorf("row missing fields: %s", lines[1])
	}
}
