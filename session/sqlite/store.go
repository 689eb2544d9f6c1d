// Package sqlite provides a SQLite-backed session store with the same contract as the
// Redis [session.Store].
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  storage_key TEXT PRIMARY KEY,
  user_id     TEXT NOT NULL,
  blob        BLOB NOT NULL,
  expires_at  INTEGER NOT NULL,
  evict_at    INTEGER NOT NULL
)`

// Store persists sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (or creates) a SQLite session store at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps ":memory:" databases shared across calls
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save writes sess under key. A session for the same user that expires later is kept and
// [session.ErrStaleWrite] is returned. ttl <= 0 keeps the row until it is deleted.
func (s *Store) Save(ctx context.Context, key string, sess *session.Session, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := session.Encode(sess)
	if err != nil {
		return err
	}
	var exp int64
	if !sess.ExpiresAt.IsZero() {
		exp = sess.ExpiresAt.UnixMilli()
	}
	var evict int64
	if ttl > 0 {
		evict = s.now().Add(ttl).UnixMilli()
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (storage_key, user_id, blob, expires_at, evict_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(storage_key) DO UPDATE SET
  user_id = excluded.user_id,
  blob = excluded.blob,
  expires_at = excluded.expires_at,
  evict_at = excluded.evict_at
WHERE NOT (
  sessions.user_id = excluded.user_id
  AND excluded.expires_at > 0
  AND sessions.expires_at > excluded.expires_at
  AND (sessions.evict_at = 0 OR sessions.evict_at > ?)
)`, key, sess.UserID, data, exp, evict, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if n == 0 {
		return session.ErrStaleWrite
	}
	return nil
}

// Load returns the session stored under key, or nil when there is none or it was evicted.
func (s *Store) Load(ctx context.Context, key string) (*session.Session, error) {
	var (
		data  []byte
		evict int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT blob, evict_at FROM sessions WHERE storage_key = ?`, key,
	).Scan(&data, &evict)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if evict != 0 && evict <= s.now().UnixMilli() {
		if err := s.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	sess, err := session.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrCorruptSession, err)
	}
	return sess, nil
}

// Delete removes the row for key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE storage_key = ?`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
