// Package cache stores fetched reference documents (parameter templates,
// doctype metadata) locally so repeated inspection does not hammer the ERP.
// Purely a convenience snapshot: the batch engine itself always reads the
// live template.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one cached document.
type Entry struct {
	Doctype   string
	Name      string
	FetchedAt time.Time
	Payload   []byte
}

// Age of the entry relative to now.
func (e Entry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS reference_docs (
	doctype TEXT NOT NULL,
	name TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (doctype, name)
);
`

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or refreshes one document snapshot.
func (s *Store) Put(doctype, name string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO reference_docs (doctype, name, fetched_at, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(doctype, name) DO UPDATE SET fetched_at = excluded.fetched_at, payload = excluded.payload`,
		doctype, name, time.Now().UTC().Format(time.RFC3339Nano), payload,
	)
	if err != nil {
		return fmt.Errorf("cache put %s/%s: %w", doctype, name, err)
	}
	return nil
}

// Get returns a cached document, or nil when absent.
func (s *Store) Get(doctype, name string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT fetched_at, payload FROM reference_docs WHERE doctype = ? AND name = ?`,
		doctype, name,
	)
	e := Entry{Doctype: doctype, Name: name}
	var ts string
	if err := row.Scan(&ts, &e.Payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get %s/%s: %w", doctype, name, err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		e.FetchedAt = parsed
	}
	return &e, nil
}

// Status lists every cached document without payloads, oldest first.
func (s *Store) Status() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT doctype, name, fetched_at FROM reference_docs ORDER BY fetched_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("cache status: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.Doctype, &e.Name, &ts); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.FetchedAt = parsed
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
