package postgres

// Package postgres provides a Postgres-backed durable storage backend. It
// keeps a single key/value table so the session record and mode flag share
// one schema.

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadforge/sessionkit/internal/ports"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS session_records (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Backend is a Postgres-backed key/value store.
type Backend struct {
	pool *pgxpool.Pool
}

var _ ports.Backend = (*Backend)(nil)

// NewBackend wraps an existing connection pool.
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// EnsureSchema creates the session_records table if it does not exist.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure session_records schema: %w", err)
	}
	return nil
}

func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.pool.QueryRow(ctx, `SELECT value FROM session_records WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("postgres read: %w", mapPgError(err))
	}
	return value, nil
}

func (b *Backend) Write(ctx context.Context, key string, value []byte) error {
	const upsert = `
INSERT INTO session_records (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	_, err := b.pool.Exec(ctx, upsert, key, value)
	if err != nil && isUniqueViolation(err) {
		// Two first-time inserts can race ahead of the conflict target;
		// the second attempt lands on the update path.
		_, err = b.pool.Exec(ctx, upsert, key, value)
	}
	if err != nil {
		return fmt.Errorf("postgres write: %w", mapPgError(err))
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM session_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete: %w", mapPgError(err))
	}
	return nil
}

// mapPgError attaches a hint for the common misconfiguration where the
// schema was never initialized.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("session_records table missing (run EnsureSchema): %w", err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
