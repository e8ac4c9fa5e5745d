package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS pgcrypto"); err != nil {
		return nil, fmt.Errorf("enable pgcrypto: %w", err)
	}
	return pool, nil
}

// InitSchema creates the tables the repositories expect. Statements are
// idempotent so a restart against an existing database is safe.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS watchlist_records (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id TEXT NOT NULL,
			external_id BIGINT NOT NULL,
			media_type TEXT NOT NULL,
			title TEXT NOT NULL,
			overview TEXT NOT NULL DEFAULT '',
			poster_path TEXT,
			vote_average DOUBLE PRECISION,
			genres JSONB,
			release_year INT,
			status TEXT NOT NULL,
			user_rating INT CHECK (user_rating IS NULL OR (user_rating BETWEEN 2 AND 10 AND user_rating % 2 = 0)),
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_watchlist_records_user ON watchlist_records(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_watchlist_records_user_status ON watchlist_records(user_id, status)`,
		`CREATE TABLE IF NOT EXISTS ai_access_grants (
			user_id TEXT PRIMARY KEY,
			state TEXT NOT NULL DEFAULT 'none',
			requested_at TIMESTAMPTZ,
			approved_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
