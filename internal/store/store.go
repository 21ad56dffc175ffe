// Package store persists monitor events, battery samples, and touch
// session summaries in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        INTEGER NOT NULL,
	source    TEXT NOT NULL,
	kind      TEXT NOT NULL,
	detail    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);

CREATE TABLE IF NOT EXISTS battery_samples (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        INTEGER NOT NULL,
	voltage   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_battery_ts ON battery_samples(ts);

CREATE TABLE IF NOT EXISTS sessions (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	started   INTEGER NOT NULL,
	ended     INTEGER NOT NULL,
	packets   INTEGER NOT NULL,
	presses   INTEGER NOT NULL,
	releases  INTEGER NOT NULL,
	swipes    INTEGER NOT NULL,
	taps      INTEGER NOT NULL
);
`

// Event is one journaled monitor event.
type Event struct {
	ID     int64
	Time   time.Time
	Source string
	Kind   string
	Detail string
}

// SessionSummary is the emission totals of one translator run.
type SessionSummary struct {
	Started  time.Time
	Ended    time.Time
	Packets  uint64
	Presses  uint64
	Releases uint64
	Swipes   uint64
	Taps     uint64
}

// Store is a SQLite-backed journal. Safe for concurrent use; SQLite's WAL
// mode and the busy timeout handle writer contention between the daemons.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// RecordEvent journals one monitor event.
func (s *Store) RecordEvent(source, kind, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO events (ts, source, kind, detail) VALUES (?, ?, ?, ?)`,
		time.Now().Unix(), source, kind, detail,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecordBatterySample journals one voltage reading.
func (s *Store) RecordBatterySample(voltage float64) error {
	_, err := s.db.Exec(
		`INSERT INTO battery_samples (ts, voltage) VALUES (?, ?)`,
		time.Now().Unix(), voltage,
	)
	if err != nil {
		return fmt.Errorf("record battery sample: %w", err)
	}
	return nil
}

// RecordSession journals the totals of a finished translator run.
func (s *Store) RecordSession(sum SessionSummary) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (started, ended, packets, presses, releases, swipes, taps)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.Started.Unix(), sum.Ended.Unix(),
		sum.Packets, sum.Presses, sum.Releases, sum.Swipes, sum.Taps,
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events, most recent first.
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, ts, source, kind, detail FROM events ORDER BY ts DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Source, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time = time.Unix(ts, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}

// LatestBatterySample returns the most recent voltage reading, or ok=false
// when none has been journaled yet.
func (s *Store) LatestBatterySample() (voltage float64, at time.Time, ok bool, err error) {
	var ts int64
	row := s.db.QueryRow(`SELECT ts, voltage FROM battery_samples ORDER BY ts DESC, id DESC LIMIT 1`)
	switch err := row.Scan(&ts, &voltage); err {
	case nil:
		return voltage, time.Unix(ts, 0), true, nil
	case sql.ErrNoRows:
		return 0, time.Time{}, false, nil
	default:
		return 0, time.Time{}, false, fmt.Errorf("query battery sample: %w", err)
	}
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
