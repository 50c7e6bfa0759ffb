// Package journal records issued power directives in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the directive journal.
const schema = `
CREATE TABLE IF NOT EXISTS directives (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp_ns INTEGER NOT NULL,
    event        TEXT NOT NULL,
    hint         TEXT NOT NULL,
    action       TEXT NOT NULL,
    duration_ms  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_directives_timestamp ON directives(timestamp_ns);
`

// Entry is one recorded directive.
type Entry struct {
	ID        int64
	Timestamp time.Time
	Event     string
	Hint      string
	Action    string
	Duration  time.Duration
}

// Journal is an append-only record of the hints the daemon issued and
// why. A nil Journal is valid and records nothing, so callers never need
// to branch on whether journaling is enabled.
type Journal struct {
	db *sql.DB
}

// OpenReadOnly opens an existing journal for reading. Used by tooling
// that must not create or migrate the database.
func OpenReadOnly(path string) (*Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one directive. The duration is zero for latched begins
// and ends.
func (j *Journal) Record(event, hint, action string, duration time.Duration) error {
	if j == nil {
		return nil
	}
	_, err := j.db.Exec(`
		INSERT INTO directives (timestamp_ns, event, hint, action, duration_ms)
		VALUES (?, ?, ?, ?, ?)`,
		time.Now().UnixNano(), event, hint, action, duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record directive: %w", err)
	}
	return nil
}

// Recent returns up to limit directives, newest first. A non-positive
// limit falls back to 50.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.Query(`
		SELECT id, timestamp_ns, event, hint, action, duration_ms
		FROM directives ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query directives: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts, durMS int64
		if err := rows.Scan(&e.ID, &ts, &e.Event, &e.Hint, &e.Action, &durMS); err != nil {
			return nil, fmt.Errorf("scan directive: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		e.Duration = time.Duration(durMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directives: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
