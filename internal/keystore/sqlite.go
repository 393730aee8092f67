package keystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kerrors "github.com/PolarWolf314/keysmith/internal/errors"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/operation"
	"github.com/PolarWolf314/keysmith/internal/progress"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps key rings in a SQLite database. The ring itself is a
// JSON column; subkeys are mirrored into their own table for lookups.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", kerrors.ErrStorageFailure, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open key db: %v", kerrors.ErrStorageFailure, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set key db journal mode: %v", kerrors.ErrStorageFailure, err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set key db busy timeout: %v", kerrors.ErrStorageFailure, err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable key db foreign keys: %v", kerrors.ErrStorageFailure, err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS key_rings (
	master_key_id TEXT PRIMARY KEY,
	primary_user_id TEXT NOT NULL,
	ring_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sub_keys (
	sub_key_id TEXT NOT NULL,
	master_key_id TEXT NOT NULL REFERENCES key_rings(master_key_id) ON DELETE CASCADE,
	flags TEXT NOT NULL,
	revoked INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (master_key_id, sub_key_id)
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize key db schema: %v", kerrors.ErrStorageFailure, err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) FetchSecret(ctx context.Context, id keys.KeyID) (*keys.KeyRing, error) {
	var ringJSON string
	err := s.db.QueryRowContext(ctx, `SELECT ring_json FROM key_rings WHERE master_key_id = ?`, id.String()).Scan(&ringJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrKeyNotFound, id)
		}
		return nil, fmt.Errorf("%w: query key %s: %v", kerrors.ErrStorageFailure, id, err)
	}

	ring := &keys.KeyRing{}
	if err := json.Unmarshal([]byte(ringJSON), ring); err != nil {
		return nil, fmt.Errorf("%w: unmarshal key %s: %v", kerrors.ErrStorageFailure, id, err)
	}
	return ring, nil
}

func (s *SQLiteStore) CommitSecret(ctx context.Context, ring *keys.KeyRing, sink progress.Sink) operation.Result[keys.KeyID] {
	return commit(ctx, s, ring, sink)
}

func (s *SQLiteStore) exists(ctx context.Context, id keys.KeyID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM key_rings WHERE master_key_id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query key %s: %w", id, err)
	}
	return true, nil
}

func (s *SQLiteStore) write(ctx context.Context, ring *keys.KeyRing, _ bool) error {
	payload, err := json.Marshal(ring)
	if err != nil {
		return fmt.Errorf("marshal key ring: %w", err)
	}
	id := ring.MasterKeyID.String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO key_rings (master_key_id, primary_user_id, ring_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(master_key_id) DO UPDATE SET
	primary_user_id = excluded.primary_user_id,
	ring_json = excluded.ring_json,
	updated_at = excluded.updated_at`,
		id, ring.PrimaryUserID(), string(payload), now, now,
	); err != nil {
		return fmt.Errorf("upsert key %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sub_keys WHERE master_key_id = ?`, id); err != nil {
		return fmt.Errorf("clear subkeys of %s: %w", id, err)
	}
	for _, sk := range ring.SubKeys {
		revoked := 0
		if sk.Revoked {
			revoked = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sub_keys (sub_key_id, master_key_id, flags, revoked) VALUES (?, ?, ?, ?)`,
			sk.ID.String(), id, sk.Flags.String(), revoked,
		); err != nil {
			return fmt.Errorf("insert subkey %s: %w", sk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit key %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*keys.KeyRing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT master_key_id, ring_json FROM key_rings ORDER BY master_key_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", kerrors.ErrStorageFailure, err)
	}
	defer rows.Close()

	out := make([]*keys.KeyRing, 0)
	for rows.Next() {
		var id, ringJSON string
		if err := rows.Scan(&id, &ringJSON); err != nil {
			return nil, fmt.Errorf("%w: scan key row: %v", kerrors.ErrStorageFailure, err)
		}
		ring := &keys.KeyRing{}
		if err := json.Unmarshal([]byte(ringJSON), ring); err != nil {
			return nil, fmt.Errorf("%w: unmarshal key %s: %v", kerrors.ErrStorageFailure, id, err)
		}
		out = append(out, ring)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate key rows: %v", kerrors.ErrStorageFailure, err)
	}
	sortRings(out)
	return out, nil
}

// FindBySubKey returns the master key id owning a subkey.
func (s *SQLiteStore) FindBySubKey(ctx context.Context, subKey keys.KeyID) (keys.KeyID, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT master_key_id FROM sub_keys WHERE sub_key_id = ?`, subKey.String()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: no key has subkey %s", kerrors.ErrKeyNotFound, subKey)
		}
		return 0, fmt.Errorf("%w: query subkey %s: %v", kerrors.ErrStorageFailure, subKey, err)
	}
	return keys.ParseKeyID(id)
}
