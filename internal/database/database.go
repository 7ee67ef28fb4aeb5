// Package database opens the Postgres pool and bootstraps the uploads schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema is the DDL applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS uploads (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	file_name TEXT NOT NULL,
	original_file_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size BIGINT NOT NULL,
	tag_names TEXT[] NOT NULL DEFAULT '{}',
	object_key TEXT NOT NULL,
	status TEXT NOT NULL,
	reminder TIMESTAMPTZ,
	expire_at TIMESTAMPTZ,
	content TEXT,
	message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_status ON uploads(status);
CREATE INDEX IF NOT EXISTS idx_uploads_expire_at ON uploads(expire_at);`

// EnsureSchema creates the uploads table if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
