package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createAnswersTable = `
CREATE TABLE IF NOT EXISTS answers (
	question   TEXT PRIMARY KEY,
	answer     BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER
);
`

const upsertAnswer = `
INSERT INTO answers (question, answer, updated_at, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(question) DO UPDATE SET
	answer = excluded.answer,
	updated_at = excluded.updated_at,
	expires_at = excluded.expires_at
`

// SQLiteStore is an embedded store that survives process restarts.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
// ttl <= 0 stores entries without expiry.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open answer db: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createAnswersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate answer db: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		answer    []byte
		expiresAt sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT answer, expires_at FROM answers WHERE question = ?`, key,
	).Scan(&answer, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get: %w", err)
	}

	if expiresAt.Valid && s.now().UnixMilli() > expiresAt.Int64 {
		return nil, false, nil
	}

	return answer, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	now := s.now()

	var expiresAt sql.NullInt64
	if s.ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(s.ttl).UnixMilli(), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, upsertAnswer, key, value, now.UnixMilli(), expiresAt); err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

// Count returns the number of stored rows, expired ones included.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
