// Package history persists one row per pipeline run in a local SQLite
// database. The row id doubles as the build identifier: AUTOINCREMENT
// guarantees ids are monotonic and never reused for the lifetime of
// the database, so a build tag always maps back to exactly one run.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const DBFilename = "caravel.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL DEFAULT 'pending',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);`

// RunRecord is the final state of a pipeline run as written to the
// ledger when the run terminates.
type RunRecord struct {
	ID          int64
	Correlation string
	Image       string
	Stage       string
	Outcome     string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns the wall-clock time of the run.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is the ledger handle. Safe for use by a single pipeline
// process; concurrent runs each open their own store and serialize
// through SQLite itself.
type Store struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens the database and
// bootstraps the schema.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFilename)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap run ledger: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NextBuildID registers a new run and returns its build identifier.
func (s *Store) NextBuildID(ctx context.Context, correlation string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (correlation, started_at) VALUES (?, ?)`,
		correlation, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to register run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read build id: %w", err)
	}
	return id, nil
}

// RecordOutcome writes the terminal state of a run. Called exactly
// once per run, on every exit path.
func (s *Store) RecordOutcome(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET image = ?, stage = ?, outcome = ?, finished_at = ? WHERE id = ?`,
		rec.Image, rec.Stage, rec.Outcome, rec.FinishedAt.Unix(), rec.ID)
	if err != nil {
		return fmt.Errorf("failed to record run outcome: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, correlation, image, stage, outcome, started_at, COALESCE(finished_at, 0)
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Correlation, &rec.Image, &rec.Stage, &rec.Outcome, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		rec.StartedAt = time.Unix(started, 0)
		if finished > 0 {
			rec.FinishedAt = time.Unix(finished, 0)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run rows: %w", err)
	}

	return records, nil
}
