// Package history keeps a local record of submitted jobs and their
// terminal outcomes. The service remains the source of truth for job
// state; this store only exists so operators can list what this machine
// submitted without a network round trip.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	job_id      TEXT PRIMARY KEY,
	label       TEXT NOT NULL DEFAULT '',
	algorithm   TEXT NOT NULL,
	circuits    INTEGER NOT NULL,
	submitted_at TIMESTAMP NOT NULL,
	status      TEXT NOT NULL DEFAULT 'NEW',
	message     TEXT NOT NULL DEFAULT '',
	finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at DESC);
`

// Entry is one recorded submission.
type Entry struct {
	JobID       string
	Label       string
	Algorithm   string
	Circuits    int
	SubmittedAt time.Time
	Status      string
	Message     string
	FinishedAt  *time.Time
}

// Store records submissions in a local sqlite database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (and if needed creates) the history database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve history path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", absPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "history").Logger(),
	}, nil
}

// RecordSubmission inserts a freshly submitted job.
func (s *Store) RecordSubmission(jobID, label, algorithm string, circuits int) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO submissions (job_id, label, algorithm, circuits, submitted_at, status)
		 VALUES (?, ?, ?, ?, ?, 'NEW')`,
		jobID, label, algorithm, circuits, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record submission %s: %w", jobID, err)
	}
	return nil
}

// RecordOutcome stores a job's terminal status and message.
func (s *Store) RecordOutcome(jobID, status, message string) error {
	_, err := s.db.Exec(
		`UPDATE submissions SET status = ?, message = ?, finished_at = ? WHERE job_id = ?`,
		status, message, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome of %s: %w", jobID, err)
	}
	return nil
}

// Recent returns the most recently submitted entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT job_id, label, algorithm, circuits, submitted_at, status, message, finished_at
		 FROM submissions ORDER BY submitted_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var finished sql.NullTime
		if err := rows.Scan(&e.JobID, &e.Label, &e.Algorithm, &e.Circuits, &e.SubmittedAt, &e.Status, &e.Message, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			e.FinishedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
