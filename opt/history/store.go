// Package history persists performance-monitor samples and regression
// events to SQLite. It is the external persistence layer on top of the
// in-memory sliding window: the monitor stays authoritative for detection,
// the store only keeps the record.
//
// The package stores pure data rows and does not depend on the opt runtime.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	operation   TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_operation ON samples(operation);

CREATE TABLE IF NOT EXISTS regressions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	operation   TEXT NOT NULL,
	baseline_us INTEGER NOT NULL,
	recent_us   INTEGER NOT NULL,
	detected_at TEXT NOT NULL
);
`

// Sample is one persisted latency observation.
type Sample struct {
	RunID      string
	Operation  string
	Duration   time.Duration
	RecordedAt time.Time
}

// Regression is one persisted regression event with the window means that
// triggered it.
type Regression struct {
	RunID      string
	Operation  string
	Baseline   time.Duration
	Recent     time.Duration
	DetectedAt time.Time
}

// OperationStats summarizes the persisted samples for one operation.
type OperationStats struct {
	Operation string
	Count     int64
	Mean      time.Duration
}

// Store is a SQLite-backed archive of monitor output.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the store at path and bootstraps the
// schema. The caller must Close it.
func New(path string) (*Store, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveSamples appends a batch of samples in one transaction.
func (s *Store) SaveSamples(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning sample tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO samples (run_id, operation, duration_us, recorded_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing sample insert: %w", err)
	}
	defer stmt.Close()
	for _, sample := range samples {
		if _, err := stmt.Exec(sample.RunID, sample.Operation, sample.Duration.Microseconds(),
			sample.RecordedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting sample for %q: %w", sample.Operation, err)
		}
	}
	return tx.Commit()
}

// SaveRegression records one regression event.
func (s *Store) SaveRegression(r Regression) error {
	detected := r.DetectedAt
	if detected.IsZero() {
		detected = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO regressions (run_id, operation, baseline_us, recent_us, detected_at) VALUES (?, ?, ?, ?, ?)`,
		r.RunID, r.Operation, r.Baseline.Microseconds(), r.Recent.Microseconds(),
		detected.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting regression for %q: %w", r.Operation, err)
	}
	return nil
}

// Stats returns count and mean duration over all persisted samples for an
// operation. Count is 0 for operations never recorded.
func (s *Store) Stats(operation string) (OperationStats, error) {
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(AVG(duration_us), 0) FROM samples WHERE operation = ?`, operation)
	var count int64
	var meanUS float64
	if err := row.Scan(&count, &meanUS); err != nil {
		return OperationStats{}, fmt.Errorf("querying stats for %q: %w", operation, err)
	}
	return OperationStats{
		Operation: operation,
		Count:     count,
		Mean:      time.Duration(meanUS * float64(time.Microsecond)),
	}, nil
}

// Regressions returns all persisted regression events for a run, oldest
// first.
func (s *Store) Regressions(runID string) ([]Regression, error) {
	rows, err := s.db.Query(`SELECT operation, baseline_us, recent_us, detected_at FROM regressions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying regressions for run %q: %w", runID, err)
	}
	defer rows.Close()

	var out []Regression
	for rows.Next() {
		var r Regression
		var baselineUS, recentUS int64
		var detected string
		if err := rows.Scan(&r.Operation, &baselineUS, &recentUS, &detected); err != nil {
			return nil, fmt.Errorf("scanning regression row: %w", err)
		}
		r.RunID = runID
		r.Baseline = time.Duration(baselineUS) * time.Microsecond
		r.Recent = time.Duration(recentUS) * time.Microsecond
		if t, err := time.Parse(time.RFC3339Nano, detected); err == nil {
			r.DetectedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
