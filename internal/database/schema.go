package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY,
		email        TEXT NOT NULL UNIQUE,
		password     TEXT NOT NULL,
		username     TEXT NOT NULL,
		is_ephemeral BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		id         UUID PRIMARY KEY,
		language   TEXT NOT NULL,
		ready      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rounds (
		start_time BIGINT PRIMARY KEY,
		language   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS round_players (
		start_time BIGINT NOT NULL REFERENCES rounds (start_time) ON DELETE CASCADE,
		player_id  UUID NOT NULL,
		language   TEXT NOT NULL,
		ready      BOOLEAN NOT NULL,
		PRIMARY KEY (start_time, player_id)
	)`,
}

// EnsureSchema creates the tables used by this package when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
