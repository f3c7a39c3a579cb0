package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"TrendScreener/internal/logger"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logger.WithComponent("recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			as_of       TEXT NOT NULL,
			signature   TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			duration_ms INTEGER,
			total       INTEGER,
			uptrend     INTEGER,
			errors      INTEGER,
			from_cache  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_as_of ON runs(as_of)`,

		`CREATE TABLE IF NOT EXISTS run_uptrends (
			run_id TEXT NOT NULL,
			pos    INTEGER NOT NULL,
			symbol TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_uptrends_run ON run_uptrends(run_id)`,

		`CREATE TABLE IF NOT EXISTS run_errors (
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_errors_run ON run_errors(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:30], err)
		}
	}
	return nil
}

// RecordRun stores a run and its symbol lists in one transaction.
func (r *SQLiteRecorder) RecordRun(run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs
		(id, as_of, signature, started_at, duration_ms, total, uptrend, errors, from_cache)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.AsOf, run.Signature, run.StartedAt.Unix(), run.Duration.Milliseconds(),
		run.Total, len(run.Uptrends), len(run.Errors), boolToInt(run.FromCache),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, sym := range run.Uptrends {
		if _, err := tx.Exec(`INSERT INTO run_uptrends (run_id, pos, symbol) VALUES (?,?,?)`, run.ID, i, sym); err != nil {
			return fmt.Errorf("insert uptrend: %w", err)
		}
	}
	for _, sym := range run.Errors {
		if _, err := tx.Exec(`INSERT INTO run_errors (run_id, symbol) VALUES (?,?)`, run.ID, sym); err != nil {
			return fmt.Errorf("insert error: %w", err)
		}
	}
	return tx.Commit()
}

// LatestRun returns the most recent run, or nil when none is stored.
func (r *SQLiteRecorder) LatestRun() (*RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		s         RunSummary
		started   int64
		fromCache int
	)
	err := r.db.QueryRow(`SELECT id, as_of, signature, started_at, total, uptrend, errors, from_cache
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).
		Scan(&s.ID, &s.AsOf, &s.Signature, &started, &s.Total, &s.Uptrend, &s.Errors, &fromCache)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	s.StartedAt = time.Unix(started, 0).UTC()
	s.FromCache = fromCache != 0
	return &s, nil
}

// Uptrends returns the uptrend symbols of a run in classification order.
func (r *SQLiteRecorder) Uptrends(runID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT symbol FROM run_uptrends WHERE run_id = ? ORDER BY pos`, runID)
	if err != nil {
		return nil, fmt.Errorf("query uptrends: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
