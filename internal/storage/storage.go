// Package storage provides SQLite-backed persistence for per-user
// criteria overrides, so customized filters survive restarts.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/coinscreen/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "coinscreen", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS criteria_overrides (
			user_id    TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      REAL NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, key)
		)`)
	return err
}

// SaveOverride upserts one criterion override for a user.
func (s *Storage) SaveOverride(userID, key string, value float64) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO criteria_overrides (user_id, key, value, updated_at)
		VALUES (?,?,?,?)`,
		userID, key, value, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return nil
}

// DeleteOverrides removes all overrides for a user, typically on reset.
func (s *Storage) DeleteOverrides(userID string) error {
	if _, err := s.db.Exec(`DELETE FROM criteria_overrides WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete overrides: %w", err)
	}
	return nil
}

// LoadAllOverrides returns every persisted override grouped by user.
func (s *Storage) LoadAllOverrides() (map[string]map[string]float64, error) {
	rows, err := s.db.Query(`SELECT user_id, key, value FROM criteria_overrides`)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	all := make(map[string]map[string]float64)
	for rows.Next() {
		var userID, key string
		var value float64
		if err := rows.Scan(&userID, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		if all[userID] == nil {
			all[userID] = make(map[string]float64)
		}
		all[userID][key] = value
	}
	return all, rows.Err()
}
