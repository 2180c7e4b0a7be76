// Package audit keeps a local SQLite trail of guard decisions and batch
// outcomes so operators can answer "what did we run against prod" without
// digging through shell history.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one audit entry.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Env       string    `json:"env"`
	Command   string    `json:"command"`
	EventType string    `json:"event_type"` // "guard", "item", "batch", "error"
	Detail    string    `json:"detail,omitempty"`
	Success   bool      `json:"success"`
}

type Logger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	env TEXT NOT NULL,
	command TEXT NOT NULL,
	event_type TEXT NOT NULL,
	detail TEXT,
	success BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_env ON audit_events(env);
`

// Open creates or opens the audit database, creating parent directories
// as needed.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &Logger{db: db}, nil
}

func (l *Logger) Close() error {
	return l.db.Close()
}

// Log writes one event synchronously. The processes here are short-lived
// batch commands; there is nothing to buffer for.
func (l *Logger) Log(e Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := l.db.Exec(
		`INSERT INTO audit_events (timestamp, env, command, event_type, detail, success)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano), e.Env, e.Command, e.EventType, e.Detail, e.Success,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events, optionally filtered by environment.
func (l *Logger) Recent(env string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, timestamp, env, command, event_type, COALESCE(detail, ''), success
		FROM audit_events`
	args := []any{}
	if env != "" {
		query += ` WHERE env = ?`
		args = append(args, env)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Env, &e.Command, &e.EventType, &e.Detail, &e.Success); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = parsed
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
