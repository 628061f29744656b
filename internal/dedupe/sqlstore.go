package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Dialect selects placeholder syntax for the SQL store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS review_dedupe (
	dedupe_key TEXT PRIMARY KEY,
	expires_at BIGINT NOT NULL
)`

// SQLStore keeps claims in a review_dedupe table. Expiry is stored as epoch
// seconds. A claim is a single INSERT .. ON CONFLICT statement, so the
// database serialises concurrent claims for the same key.
type SQLStore struct {
	db       *sql.DB
	dialect  Dialect
	claimSQL string
	purgeSQL string
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	switch dialect {
	case DialectPostgres:
		s.claimSQL = `INSERT INTO review_dedupe (dedupe_key, expires_at) VALUES ($1, $2)
ON CONFLICT (dedupe_key) DO UPDATE SET expires_at = EXCLUDED.expires_at
WHERE review_dedupe.expires_at <= $3`
		s.purgeSQL = `DELETE FROM review_dedupe WHERE expires_at <= $1`
	case DialectSQLite:
		s.claimSQL = `INSERT INTO review_dedupe (dedupe_key, expires_at) VALUES (?, ?)
ON CONFLICT (dedupe_key) DO UPDATE SET expires_at = excluded.expires_at
WHERE review_dedupe.expires_at <= ?`
		s.purgeSQL = `DELETE FROM review_dedupe WHERE expires_at <= ?`
	default:
		return nil, fmt.Errorf("unsupported dedupe dialect %q", dialect)
	}
	return s, nil
}

// Migrate creates the table if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create review_dedupe table: %w", err)
	}
	return nil
}

// Claim implements Store. An expired row is overwritten in place.
func (s *SQLStore) Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.claimSQL, key, expiresAt.Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert dedupe key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read dedupe insert result: %w", err)
	}
	return n == 1, nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.purgeSQL, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge dedupe keys: %w", err)
	}
	return res.RowsAffected()
}
