package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// postgresSchema is applied in order by Migrate. Every statement is idempotent.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sync_device (
		id               uuid PRIMARY KEY,
		user_id          text NOT NULL,
		device_id        text NOT NULL,
		device_name      text NOT NULL,
		device_type      text NOT NULL,
		is_active        boolean NOT NULL DEFAULT true,
		last_sync_at     timestamptz,
		last_sync_cursor bigint NOT NULL DEFAULT 0,
		removal_cursor   bigint NOT NULL DEFAULT 0,
		created_at       timestamptz NOT NULL,
		updated_at       timestamptz NOT NULL,
		UNIQUE (user_id, device_id)
	)`,

	// One row per user; the row lock taken by the increment serializes cursor assignment
	`CREATE TABLE IF NOT EXISTS sync_cursor (
		user_id text PRIMARY KEY,
		cursor  bigint NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sync_change (
		id               uuid PRIMARY KEY,
		user_id          text NOT NULL,
		item_id          uuid NOT NULL,
		change_type      text NOT NULL,
		device_id        text,
		ts               timestamptz NOT NULL,
		cursor           bigint NOT NULL,
		old_path         text,
		new_path         text,
		checksum         text,
		parent_id        uuid,
		client_change_id text,
		UNIQUE (user_id, cursor)
	)`,
	`CREATE INDEX IF NOT EXISTS sync_change_item_idx ON sync_change (user_id, item_id, cursor)`,
	`CREATE INDEX IF NOT EXISTS sync_change_ts_idx ON sync_change (ts)`,

	// Client change ids are kept after their change is pruned
	`CREATE TABLE IF NOT EXISTS sync_client_change (
		user_id          text NOT NULL,
		client_change_id text NOT NULL,
		cursor           bigint NOT NULL,
		PRIMARY KEY (user_id, client_change_id)
	)`,

	`CREATE TABLE IF NOT EXISTS sync_conflict (
		id            uuid PRIMARY KEY,
		user_id       text NOT NULL,
		item_id       uuid NOT NULL,
		local_change  jsonb NOT NULL,
		remote_change jsonb NOT NULL,
		conflict_type text NOT NULL,
		resolved_at   timestamptz,
		resolution    text,
		created_at    timestamptz NOT NULL,
		CHECK ((resolved_at IS NULL) = (resolution IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS sync_conflict_pending_idx ON sync_conflict (user_id, created_at) WHERE resolved_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS sync_conflict_resolved_idx ON sync_conflict (resolved_at) WHERE resolved_at IS NOT NULL`,
}

// Migrate creates the sync tables if they do not exist
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(postgresSchema)).Msg("postgres schema ensured")
	return nil
}
