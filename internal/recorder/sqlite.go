package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"AlertWatch/internal/model"
)

// SQLiteRecorder persists signals and cycle summaries to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while the scanner writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id               TEXT PRIMARY KEY,
			timestamp        INTEGER NOT NULL,
			ticker           TEXT NOT NULL,
			entry            REAL,
			stop_loss        REAL,
			take_profit      REAL,
			confidence       REAL,
			atr              REAL,
			interval         TEXT,
			confirm_interval TEXT,
			entry_high       REAL,
			stop_loss_low    REAL,
			take_profit_high REAL,
			invalidation     REAL,
			allocation_pct   REAL,
			test             INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ticker ON signals(ticker)`,

		`CREATE TABLE IF NOT EXISTS scan_cycles (
			cycle_id          TEXT PRIMARY KEY,
			started_at        INTEGER NOT NULL,
			finished_at       INTEGER NOT NULL,
			outcome           TEXT,
			tickers_total     INTEGER,
			tickers_scanned   INTEGER,
			tickers_skipped   INTEGER,
			ticker_errors     INTEGER,
			alerts_fired      INTEGER,
			alerts_suppressed INTEGER,
			notify_failures   INTEGER,
			api_calls         INTEGER,
			batches           INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON scan_cycles(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func (r *SQLiteRecorder) RecordSignal(sig *model.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entryHigh, slLow, tpHigh *float64
	if z := sig.Zones; z != nil {
		entryHigh, slLow, tpHigh = &z.EntryHigh, &z.StopLossLow, &z.TakeProfitHigh
	}
	_, err := r.db.Exec(`INSERT OR REPLACE INTO signals
		(id, timestamp, ticker, entry, stop_loss, take_profit, confidence, atr,
		 interval, confirm_interval, entry_high, stop_loss_low, take_profit_high,
		 invalidation, allocation_pct, test)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sig.ID, sig.Timestamp.Unix(), sig.Ticker, sig.Entry, sig.StopLoss, sig.TakeProfit,
		sig.Confidence, sig.ATR, sig.Interval, sig.ConfirmInterval,
		nullable(entryHigh), nullable(slLow), nullable(tpHigh),
		nullable(sig.InvalidationLevel), nullable(sig.AllocationPct), sig.Test,
	)
	return err
}

func (r *SQLiteRecorder) RecordCycle(rep *model.CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT OR REPLACE INTO scan_cycles
		(cycle_id, started_at, finished_at, outcome, tickers_total, tickers_scanned,
		 tickers_skipped, ticker_errors, alerts_fired, alerts_suppressed,
		 notify_failures, api_calls, batches)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.CycleID, rep.StartedAt.Unix(), rep.FinishedAt.Unix(), string(rep.Outcome),
		rep.TickersTotal, rep.TickersScanned, rep.TickersSkipped, rep.TickerErrors,
		rep.AlertsFired, rep.AlertsSuppressed, rep.NotifyFailures, rep.APICalls, rep.Batches,
	)
	return err
}

// CountSignals returns the number of stored signals for ticker ("" for all).
func (r *SQLiteRecorder) CountSignals(ticker string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	var err error
	if ticker == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM signals`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM signals WHERE ticker = ?`, ticker).Scan(&n)
	}
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Info("closing sqlite recorder")
	return r.db.Close()
}
