package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// SQLiteStore keeps all keys in a single sqlite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("kv: sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite db: %w", err)
	}
	// sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv: init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the value for key, or ErrNotFound.
func (s *SQLiteStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("kv: read %s: %w", key, err)
	}
	return value, nil
}

// Set writes the value for key, replacing any existing value.
func (s *SQLiteStore) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("kv: write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are ignored.
func (s *SQLiteStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

// Keys returns all keys with the prefix, sorted ascending.
func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT key FROM kv WHERE key >= ? AND key < ? || x'ff' ORDER BY key`,
		prefix, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("kv: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("kv: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv: list keys: %w", err)
	}
	return keys, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
