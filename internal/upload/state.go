package upload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// StateDB records sync runs and the last successful sync per device.
type StateDB struct {
	db *sql.DB
}

// Run is one recorded sync attempt.
type Run struct {
	DeviceID  string
	StartedAt time.Time
	Sent      int
	Accepted  int
	Err       string
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id   TEXT NOT NULL,
			started_at  TIMESTAMP NOT NULL,
			sent        INTEGER NOT NULL,
			accepted    INTEGER NOT NULL,
			error       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS sync_state (
			device_id    TEXT PRIMARY KEY,
			last_sync_at TIMESTAMP NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating state table: %w", err)
		}
	}

	return &StateDB{db: db}, nil
}

// RecordRun stores a sync attempt. Successful runs also advance the
// device's last sync time.
func (s *StateDB) RecordRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting state transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_runs (device_id, started_at, sent, accepted, error) VALUES (?, ?, ?, ?, ?)`,
		run.DeviceID, run.StartedAt.UTC(), run.Sent, run.Accepted, run.Err,
	); err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	if run.Err == "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO sync_state (device_id, last_sync_at) VALUES (?, ?)`,
			run.DeviceID, run.StartedAt.UTC(),
		); err != nil {
			return fmt.Errorf("updating sync state: %w", err)
		}
	}
	return tx.Commit()
}

// LastSync returns when deviceID last synced successfully.
func (s *StateDB) LastSync(ctx context.Context, deviceID string) (time.Time, bool, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync_at FROM sync_state WHERE device_id = ?`, deviceID,
	).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading sync state: %w", err)
	}
	return t, true, nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}
