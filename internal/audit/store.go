// Package audit keeps server lifecycle events in SQLite so they can be
// queried after the process exits. Uses the pure-Go modernc.org/sqlite driver.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store manages the SQLite database connection for audit events.
type Store struct {
	db *sql.DB
}

// Entry is one recorded event.
type Entry struct {
	ID         int64
	RecordedAt time.Time
	Text       string
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("audit: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("audit: cannot open database: %w", err)
	}
	// One writer avoids SQLITE_BUSY between session goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at INTEGER NOT NULL,
			text TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_recorded_at ON events(recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write stores one event. It satisfies eventlog.Sink.
func (s *Store) Write(ts time.Time, text string) error {
	if _, err := s.db.Exec(
		"INSERT INTO events (recorded_at, text) VALUES (?, ?)",
		ts.UnixNano(), text,
	); err != nil {
		return fmt.Errorf("audit: cannot save event: %w", err)
	}
	return nil
}

// Recent returns the newest events, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, recorded_at, text
		 FROM events
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: cannot query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var nanos int64
		if err := rows.Scan(&e.ID, &nanos, &e.Text); err != nil {
			return nil, fmt.Errorf("audit: cannot scan row: %w", err)
		}
		e.RecordedAt = time.Unix(0, nanos)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: row iteration error: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored events.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: cannot count events: %w", err)
	}
	return n, nil
}
