package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the records table when it does not exist yet.
// Schema evolution beyond that is handled outside this service.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			id BIGSERIAL PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			origin TEXT NOT NULL,
			title TEXT NOT NULL,
			body_md TEXT NOT NULL,
			excerpt TEXT NOT NULL DEFAULT '',
			cover_url TEXT NOT NULL DEFAULT '',
			gallery_urls JSONB NOT NULL DEFAULT '[]',
			categories JSONB NOT NULL DEFAULT '[]',
			tags JSONB NOT NULL DEFAULT '[]',
			published BOOLEAN NOT NULL DEFAULT FALSE,
			draft BOOLEAN NOT NULL DEFAULT FALSE,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			extra JSONB NOT NULL DEFAULT '{}',
			source_created_at TIMESTAMPTZ NOT NULL,
			source_modified_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure records table: %w", err)
	}
	return nil
}
