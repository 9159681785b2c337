package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	apperrors "estate-agent/errors"
)

// PostgresStore persists blobs in a single key/value table, for
// deployments that already run Postgres. It uses the pgx stdlib driver
// so the package stays on database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, apperrors.WrapError(err, "open postgres store")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.WrapError(err, "ping postgres store")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS blobs (
        key TEXT PRIMARY KEY,
        value BYTEA NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return apperrors.WrapError(err, "ensure blobs schema")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrStorageOperation, "get %s: %v", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
        INSERT INTO blobs (key, value, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return apperrors.WrapErrorf(apperrors.ErrStorageOperation, "put %s: %v", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = $1`, key); err != nil {
		return apperrors.WrapErrorf(apperrors.ErrStorageOperation, "delete %s: %v", key, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
