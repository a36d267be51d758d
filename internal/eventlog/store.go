package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"videowall/internal/config"
)

// ErrRunNotFound reports a lookup for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one engine session from startup to teardown.
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	Screens   int
	Outcome   string
}

// Event is one synchronization occurrence within a run.
type Event struct {
	ID       int64
	RunID    string
	At       time.Time
	Kind     string
	Position float64
	Detail   string
}

// Store persists run and synchronization history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database under the state
// directory and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "videowall.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applySchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    ended_at   TEXT,
    screens    INTEGER NOT NULL,
    outcome    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS events (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id   TEXT NOT NULL REFERENCES runs(id),
    at       TEXT NOT NULL,
    kind     TEXT NOT NULL,
    position REAL NOT NULL,
    detail   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// BeginRun records the start of an engine session.
func (s *Store) BeginRun(ctx context.Context, runID string, screens int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, screens) VALUES (?, ?, ?)`,
		runID,
		time.Now().UTC().Format(time.RFC3339Nano),
		screens,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// EndRun stamps a session's end time and outcome.
func (s *Store) EndRun(ctx context.Context, runID, outcome string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		outcome,
		runID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Record appends one synchronization event to a run's history.
func (s *Store) Record(ctx context.Context, runID, kind string, position float64, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, at, kind, position, detail) VALUES (?, ?, ?, ?, ?)`,
		runID,
		time.Now().UTC().Format(time.RFC3339Nano),
		kind,
		position,
		detail,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListRuns returns the most recent sessions, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, screens, outcome
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started string
			ended   sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &ended, &run.Screens, &run.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse run start: %w", err)
		}
		if ended.Valid {
			endedAt, err := time.Parse(time.RFC3339Nano, ended.String)
			if err != nil {
				return nil, fmt.Errorf("parse run end: %w", err)
			}
			run.EndedAt = &endedAt
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListEvents returns a run's events in chronological order.
func (s *Store) ListEvents(ctx context.Context, runID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, at, kind, position, detail
         FROM events WHERE run_id = ? ORDER BY id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event Event
			at    string
		)
		if err := rows.Scan(&event.ID, &event.RunID, &at, &event.Kind, &event.Position, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if event.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
