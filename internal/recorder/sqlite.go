package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"TradeSentinel/internal/model"
)

// SQLiteRecorder writes the event journal to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the agent writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agent_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			kind      TEXT NOT NULL,
			status    TEXT,
			text      TEXT,
			payload   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON agent_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS position_snapshots (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			side          TEXT NOT NULL,
			quantity      REAL,
			entry_price   REAL,
			stop_loss     REAL,
			take_profit   REAL,
			market_value  REAL,
			unrealized_pl REAL,
			entry_time    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_ts ON position_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS balance_history (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			balance   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_balance_ts ON balance_history(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordEvent(e model.AgentEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.Exec(`INSERT INTO agent_events (timestamp, kind, status, text, payload)
		VALUES (?,?,?,?,?)`,
		e.Time.UTC().UnixMilli(), string(e.Kind), string(e.Status), e.Text, string(payload),
	)
	return err
}

// RecordPositions stores one row per position, all sharing the snapshot timestamp.
// Unknown broker amounts are stored as NULL.
func (r *SQLiteRecorder) RecordPositions(at time.Time, positions []model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	ts := at.UTC().UnixMilli()
	for _, p := range positions {
		if _, err := tx.Exec(`INSERT INTO position_snapshots
			(timestamp, symbol, side, quantity, entry_price, stop_loss, take_profit,
			 market_value, unrealized_pl, entry_time)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			ts, p.Symbol, string(p.Side), p.Quantity, p.EntryPrice,
			nullable(p.StopLoss), nullable(p.TakeProfit),
			nullable(p.MarketValue), nullable(p.UnrealizedPL),
			p.EntryTime.UTC().UnixMilli(),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordBalance(at time.Time, balance float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO balance_history (timestamp, balance) VALUES (?,?)`,
		at.UTC().UnixMilli(), balance,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func nullable(a model.Amount) sql.NullFloat64 {
	return sql.NullFloat64{Float64: a.Value, Valid: a.Known}
}
