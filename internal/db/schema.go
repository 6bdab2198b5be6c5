package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables the service needs. Statements are
// idempotent so startup is safe to repeat; proper migration tooling is out of
// scope for this service.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id uuid PRIMARY KEY,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS saves (
			user_id uuid PRIMARY KEY REFERENCES users (id),
			state_json jsonb NOT NULL,
			version bigint NOT NULL DEFAULT 0,
			last_seen_at timestamptz,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ops (
			op_id text PRIMARY KEY,
			user_id uuid NOT NULL REFERENCES users (id),
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS user_identities (
			linuxdo_id text PRIMARY KEY,
			user_id uuid NOT NULL REFERENCES users (id),
			username text,
			name text,
			avatar_template text,
			trust_level int,
			active boolean,
			silenced boolean,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
