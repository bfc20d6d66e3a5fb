package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"flowtrader/internal/models"
	"flowtrader/internal/performance"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Precomputed per-session feature rows
	CREATE TABLE IF NOT EXISTS feature_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instrument TEXT NOT NULL,
		date DATETIME NOT NULL,
		open REAL, high REAL, low REAL, close REAL,
		volume INTEGER NOT NULL DEFAULT 0,
		next_open REAL,
		atr20 REAL,
		swing_low REAL,
		anchored_vwap REAL,
		cmf_z REAL,
		atr_z REAL,
		entry_signals TEXT,
		exit_signals TEXT,
		event_day INTEGER NOT NULL DEFAULT 0,
		regime_ok INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(instrument, date)
	);
	CREATE INDEX IF NOT EXISTS idx_feature_rows_instrument ON feature_rows(instrument, date);

	-- Backtest runs: parameters plus summary
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		stop_strategy TEXT NOT NULL,
		risk_pct REAL NOT NULL,
		initial_equity REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		win_rate REAL NOT NULL,
		median_return REAL NOT NULL,
		mean_return REAL NOT NULL,
		profit_factor REAL NOT NULL,
		expectancy REAL NOT NULL,
		max_drawdown REAL NOT NULL
	);

	-- Completed trades, append-only
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		instrument TEXT NOT NULL,
		entry_date DATETIME NOT NULL,
		entry_price REAL NOT NULL,
		exit_date DATETIME NOT NULL,
		exit_price REAL NOT NULL,
		exit_type TEXT NOT NULL,
		bars_held INTEGER NOT NULL,
		r_multiple REAL NOT NULL,
		profit_pct REAL NOT NULL,
		share_count INTEGER NOT NULL,
		partial INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);

	-- Per-instrument failures from batch runs
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		instrument TEXT NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// nullable converts NaN to SQL NULL; NaN means the pipeline did not
// produce the column, which is different from zero.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// SaveFeatureSeries upserts every row of a series in one transaction.
func (s *SQLiteStore) SaveFeatureSeries(ctx context.Context, series *models.FeatureSeries) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO feature_rows
		(instrument, date, open, high, low, close, volume, next_open, atr20,
		 swing_low, anchored_vwap, cmf_z, atr_z, entry_signals, exit_signals,
		 event_day, regime_ok)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range series.Rows {
		row := &series.Rows[i]
		entrySignals, err := json.Marshal(row.EntrySignals)
		if err != nil {
			return fmt.Errorf("encoding entry signals: %w", err)
		}
		exitSignals, err := json.Marshal(row.ExitSignals)
		if err != nil {
			return fmt.Errorf("encoding exit signals: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			series.Instrument, row.Date.UTC(),
			nullable(row.Open), nullable(row.High), nullable(row.Low), nullable(row.Close),
			row.Volume, nullable(row.NextOpen), nullable(row.ATR20),
			nullable(row.RecentSwingLow), nullable(row.AnchoredVWAP),
			nullable(row.CMFZ), nullable(row.ATRZ),
			string(entrySignals), string(exitSignals),
			boolToInt(row.EventDay), boolToInt(row.RegimeOK))
		if err != nil {
			return fmt.Errorf("inserting feature row: %w", err)
		}
	}

	return tx.Commit()
}

// GetFeatureSeries loads an instrument's feature rows in date order.
func (s *SQLiteStore) GetFeatureSeries(ctx context.Context, instrument string) (*models.FeatureSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume, next_open, atr20,
		       swing_low, anchored_vwap, cmf_z, atr_z, entry_signals,
		       exit_signals, event_day, regime_ok
		FROM feature_rows WHERE instrument = ? ORDER BY date ASC`, instrument)
	if err != nil {
		return nil, fmt.Errorf("querying feature rows: %w", err)
	}
	defer rows.Close()

	series := &models.FeatureSeries{Instrument: instrument}
	for rows.Next() {
		var (
			row                                  models.FeatureRow
			open, high, low, closePx             sql.NullFloat64
			nextOpen, atr, swing, vwap, cmf, atz sql.NullFloat64
			entrySignals, exitSignals            string
			eventDay, regimeOK                   int
		)
		err := rows.Scan(&row.Date, &open, &high, &low, &closePx, &row.Volume,
			&nextOpen, &atr, &swing, &vwap, &cmf, &atz,
			&entrySignals, &exitSignals, &eventDay, &regimeOK)
		if err != nil {
			return nil, fmt.Errorf("scanning feature row: %w", err)
		}

		row.Open = fromNullable(open)
		row.High = fromNullable(high)
		row.Low = fromNullable(low)
		row.Close = fromNullable(closePx)
		row.NextOpen = fromNullable(nextOpen)
		row.ATR20 = fromNullable(atr)
		row.RecentSwingLow = fromNullable(swing)
		row.AnchoredVWAP = fromNullable(vwap)
		row.CMFZ = fromNullable(cmf)
		row.ATRZ = fromNullable(atz)
		row.EventDay = eventDay != 0
		row.RegimeOK = regimeOK != 0

		if entrySignals != "" {
			if err := json.Unmarshal([]byte(entrySignals), &row.EntrySignals); err != nil {
				return nil, fmt.Errorf("decoding entry signals: %w", err)
			}
		}
		if exitSignals != "" {
			if err := json.Unmarshal([]byte(exitSignals), &row.ExitSignals); err != nil {
				return nil, fmt.Errorf("decoding exit signals: %w", err)
			}
		}

		series.Rows = append(series.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feature rows: %w", err)
	}
	if len(series.Rows) == 0 {
		return nil, fmt.Errorf("no feature rows for instrument %s", instrument)
	}

	return series, nil
}

// ListInstruments returns every instrument with stored feature rows.
func (s *SQLiteStore) ListInstruments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT instrument FROM feature_rows ORDER BY instrument ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying instruments: %w", err)
	}
	defer rows.Close()

	var instruments []string
	for rows.Next() {
		var instrument string
		if err := rows.Scan(&instrument); err != nil {
			return nil, fmt.Errorf("scanning instrument: %w", err)
		}
		instruments = append(instruments, instrument)
	}
	return instruments, rows.Err()
}

// SaveRun persists a run record and returns its ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (created_at, stop_strategy, risk_pct, initial_equity,
			total_trades, win_rate, median_return, mean_return, profit_factor,
			expectancy, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CreatedAt.UTC(), run.StopStrategy, run.RiskPct, run.InitialEquity,
		run.Summary.TotalTrades, run.Summary.WinRate, run.Summary.MedianReturn,
		run.Summary.MeanReturn, sanitize(run.Summary.ProfitFactor),
		run.Summary.Expectancy, run.Summary.MaxDrawdown)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return result.LastInsertId()
}

// sanitize maps the +Inf profit factor of a loss-free run to a large
// sentinel SQLite can store.
func sanitize(v float64) float64 {
	if math.IsInf(v, 1) {
		return 1e9
	}
	return v
}

// SaveTrades persists a trade ledger against a run, flushing inserts in
// grouped transactions.
func (s *SQLiteStore) SaveTrades(ctx context.Context, runID int64, trades []models.Trade) error {
	batch := performance.NewBatchProcessor(500, func(chunk []models.Trade) error {
		return s.insertTradeChunk(ctx, runID, chunk)
	})

	for _, trade := range trades {
		if err := batch.Add(trade); err != nil {
			return err
		}
	}
	return batch.Flush()
}

func (s *SQLiteStore) insertTradeChunk(ctx context.Context, runID int64, trades []models.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, instrument, entry_date, entry_price,
			exit_date, exit_price, exit_type, bars_held, r_multiple,
			profit_pct, share_count, partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trade insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err := stmt.ExecContext(ctx, runID, t.Instrument,
			t.EntryDate.UTC(), t.EntryPrice, t.ExitDate.UTC(), t.ExitPrice,
			string(t.ExitType), t.BarsHeld, t.RMultiple, t.ProfitPct,
			t.ShareCount, boolToInt(t.Partial))
		if err != nil {
			return fmt.Errorf("inserting trade: %w", err)
		}
	}

	return tx.Commit()
}

// SaveFailures persists the per-instrument failure list of a batch run.
func (s *SQLiteStore) SaveFailures(ctx context.Context, runID int64, failures []models.InstrumentFailure) error {
	if len(failures) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, f := range failures {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, instrument, message) VALUES (?, ?, ?)`,
			runID, f.Instrument, f.Message)
		if err != nil {
			return fmt.Errorf("inserting failure: %w", err)
		}
	}
	return tx.Commit()
}

// GetRun loads a run record by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID int64) (*RunRecord, error) {
	return s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, created_at, stop_strategy, risk_pct, initial_equity,
		       total_trades, win_rate, median_return, mean_return,
		       profit_factor, expectancy, max_drawdown
		FROM runs WHERE id = ?`, runID))
}

// GetLatestRun loads the most recent run record.
func (s *SQLiteStore) GetLatestRun(ctx context.Context) (*RunRecord, error) {
	return s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, created_at, stop_strategy, risk_pct, initial_equity,
		       total_trades, win_rate, median_return, mean_return,
		       profit_factor, expectancy, max_drawdown
		FROM runs ORDER BY id DESC LIMIT 1`))
}

func (s *SQLiteStore) scanRun(row *sql.Row) (*RunRecord, error) {
	run := &RunRecord{}
	err := row.Scan(&run.ID, &run.CreatedAt, &run.StopStrategy, &run.RiskPct,
		&run.InitialEquity, &run.Summary.TotalTrades, &run.Summary.WinRate,
		&run.Summary.MedianReturn, &run.Summary.MeanReturn,
		&run.Summary.ProfitFactor, &run.Summary.Expectancy,
		&run.Summary.MaxDrawdown)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no runs recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	// Exit-type counts are rebuilt from the trades table on demand.
	run.Summary.ExitTypeCount = make(map[models.ExitType]int)
	return run, nil
}

// GetTrades queries stored trades with optional filters.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := `SELECT instrument, entry_date, entry_price, exit_date, exit_price,
		exit_type, bars_held, r_multiple, profit_pct, share_count, partial
		FROM trades WHERE 1=1`
	var args []interface{}

	if filter.RunID > 0 {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Instrument != "" {
		query += " AND instrument = ?"
		args = append(args, filter.Instrument)
	}
	if !filter.StartDate.IsZero() {
		query += " AND exit_date >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND exit_date <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	if filter.ExitType != "" {
		query += " AND exit_type = ?"
		args = append(args, strings.ToUpper(filter.ExitType))
	}
	query += " ORDER BY instrument ASC, entry_date ASC, exit_date ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var exitType string
		var partial int
		err := rows.Scan(&t.Instrument, &t.EntryDate, &t.EntryPrice,
			&t.ExitDate, &t.ExitPrice, &exitType, &t.BarsHeld,
			&t.RMultiple, &t.ProfitPct, &t.ShareCount, &partial)
		if err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.ExitType = models.ExitType(exitType)
		t.Partial = partial != 0
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetFailures loads the failure list for a run.
func (s *SQLiteStore) GetFailures(ctx context.Context, runID int64) ([]models.InstrumentFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instrument, message FROM failures WHERE run_id = ? ORDER BY instrument ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var failures []models.InstrumentFailure
	for rows.Next() {
		var f models.InstrumentFailure
		if err := rows.Scan(&f.Instrument, &f.Message); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
