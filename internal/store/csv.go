package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"flowtrader/internal/models"
)

// Fixed feature-table columns. Anything else starting with Entry_ or
// Exit_ is treated as a named signal flag, so the signal pipeline can
// add scoring variants without a schema change here.
var knownColumns = map[string]bool{
	"date": true, "Open": true, "High": true, "Low": true, "Close": true,
	"Volume": true, "Next_Open": true, "ATR20": true,
	"Recent_Swing_Low": true, "Anchored_VWAP": true, "CMF_Z": true,
	"ATR_Z": true, "Event_Day": true, "Regime_OK": true,
}

// ReadFeatureCSV parses a precomputed feature table. Empty cells become
// NaN, never zero: a missing ATR is a data gap, not a zero-volatility
// session.
func ReadFeatureCSV(r io.Reader, instrument string) (*models.FeatureSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	var entryCols, exitCols []string
	for i, name := range header {
		name = strings.TrimSpace(name)
		index[name] = i
		if knownColumns[name] {
			continue
		}
		switch {
		case strings.HasPrefix(name, "Entry_"):
			entryCols = append(entryCols, name)
		case strings.HasPrefix(name, "Exit_"):
			exitCols = append(exitCols, name)
		default:
			return nil, fmt.Errorf("unknown feature column %q", name)
		}
	}
	if _, ok := index["date"]; !ok {
		return nil, fmt.Errorf("feature table missing date column")
	}

	series := &models.FeatureSeries{Instrument: instrument}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		line++

		row, err := parseFeatureRow(record, index, entryCols, exitCols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		series.Rows = append(series.Rows, row)
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

func parseFeatureRow(record []string, index map[string]int, entryCols, exitCols []string) (models.FeatureRow, error) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := time.Parse("2006-01-02", cell("date"))
	if err != nil {
		return models.FeatureRow{}, fmt.Errorf("parsing date: %w", err)
	}

	row := models.FeatureRow{
		Date:           date,
		Open:           parseFloat(cell("Open")),
		High:           parseFloat(cell("High")),
		Low:            parseFloat(cell("Low")),
		Close:          parseFloat(cell("Close")),
		NextOpen:       parseFloat(cell("Next_Open")),
		ATR20:          parseFloat(cell("ATR20")),
		RecentSwingLow: parseFloat(cell("Recent_Swing_Low")),
		AnchoredVWAP:   parseFloat(cell("Anchored_VWAP")),
		CMFZ:           parseFloat(cell("CMF_Z")),
		ATRZ:           parseFloat(cell("ATR_Z")),
		EventDay:       parseBool(cell("Event_Day")),
		RegimeOK:       parseBool(cell("Regime_OK")),
		EntrySignals:   make(map[string]bool, len(entryCols)),
		ExitSignals:    make(map[string]bool, len(exitCols)),
	}

	if v := cell("Volume"); v != "" {
		vol, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.FeatureRow{}, fmt.Errorf("parsing Volume: %w", err)
		}
		row.Volume = vol
	}

	for _, name := range entryCols {
		row.EntrySignals[name] = parseBool(cell(name))
	}
	for _, name := range exitCols {
		row.ExitSignals[name] = parseBool(cell(name))
	}

	return row, nil
}

func parseFloat(s string) float64 {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "t", "yes":
		return true
	default:
		return false
	}
}

// ImportFeatureCSV loads a feature table from disk into the store.
func ImportFeatureCSV(ctx context.Context, ds DataStore, path, instrument string) (*models.FeatureSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feature CSV: %w", err)
	}
	defer f.Close()

	series, err := ReadFeatureCSV(f, instrument)
	if err != nil {
		return nil, fmt.Errorf("parsing feature CSV: %w", err)
	}

	if err := ds.SaveFeatureSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("saving feature series: %w", err)
	}
	return series, nil
}

// WriteTradesCSV exports a trade ledger to CSV. The column set is the
// binding contract for downstream reporting.
func WriteTradesCSV(w io.Writer, trades []models.Trade) error {
	return gocsv.Marshal(trades, w)
}

// ExportTradesCSV writes a trade ledger to the given path.
func ExportTradesCSV(path string, trades []models.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trades CSV: %w", err)
	}
	defer f.Close()

	if err := WriteTradesCSV(f, trades); err != nil {
		return fmt.Errorf("writing trades CSV: %w", err)
	}
	return nil
}
