// Package ledger persists the append-only manifest that makes install
// and backup actions reversible.
//
// The ledger holds two independent ordered logs: LogPackages records
// every package this tool installed (and nothing pre-existing), and
// LogGenerations records backup-generation directories created during
// deployment. Both are append-only; entries are removed only as the
// action they record is reversed. LogGenerations is consumed as a stack:
// only the last entry is ever consulted for restore.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// Names of the two logs held by the store.
const (
	LogPackages    = "packages"
	LogGenerations = "generations"
)

// Store provides sqlite-backed ordered-log operations.
type Store struct {
	db   *sql.DB
	path string
}

// Exists reports whether a ledger database exists at path. An absent
// database means no action was ever recorded, so reversal flows treat
// it as "nothing to do".
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Open opens (creating if necessary) the ledger database at path.
// Use ":memory:" for in-memory databases (useful for testing).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Append records value at the end of the named log.
func (s *Store) Append(log, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO entries (log, value, created_at) VALUES (?, ?, ?)`,
		log, value, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append %q to %s log: %w", value, log, err)
	}
	return nil
}

// All returns every entry of the named log in append order.
func (s *Store) All(log string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT value FROM entries WHERE log = ? ORDER BY seq`, log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s log: %w", log, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s log entry: %w", log, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s log: %w", log, err)
	}

	return values, nil
}

// PeekLast returns the most recently appended entry of the named log.
// ok is false when the log is empty.
func (s *Store) PeekLast(log string) (value string, ok bool, err error) {
	err = s.db.QueryRow(
		`SELECT value FROM entries WHERE log = ? ORDER BY seq DESC LIMIT 1`, log,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to peek %s log: %w", log, err)
	}
	return value, true, nil
}

// PopLast removes and returns the most recently appended entry of the
// named log. ok is false when the log is empty.
func (s *Store) PopLast(log string) (value string, ok bool, err error) {
	var seq int64
	err = s.db.QueryRow(
		`SELECT seq, value FROM entries WHERE log = ? ORDER BY seq DESC LIMIT 1`, log,
	).Scan(&seq, &value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to pop %s log: %w", log, err)
	}

	if _, err := s.db.Exec(`DELETE FROM entries WHERE seq = ?`, seq); err != nil {
		return "", false, fmt.Errorf("failed to pop %s log: %w", log, err)
	}
	return value, true, nil
}

// Contains reports whether the named log holds value.
func (s *Store) Contains(log, value string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM entries WHERE log = ? AND value = ?`, log, value,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query %s log: %w", log, err)
	}
	return n > 0, nil
}

// Remove deletes every entry of the named log matching value. Used as
// individual actions are reversed (e.g. a package uninstalled).
func (s *Store) Remove(log, value string) error {
	_, err := s.db.Exec(
		`DELETE FROM entries WHERE log = ? AND value = ?`, log, value,
	)
	if err != nil {
		return fmt.Errorf("failed to remove %q from %s log: %w", value, log, err)
	}
	return nil
}

// Len returns the number of entries in the named log.
func (s *Store) Len(log string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM entries WHERE log = ?`, log,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s log: %w", log, err)
	}
	return n, nil
}
