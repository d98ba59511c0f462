// Package migrations holds the database schema. Statements are idempotent so
// Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS actors (
		id         TEXT PRIMARY KEY,
		role       TEXT NOT NULL,
		wallet     TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id            TEXT PRIMARY KEY,
		actor_id      TEXT NOT NULL REFERENCES actors(id),
		material      TEXT NOT NULL,
		weight_kg     DOUBLE PRECISION NOT NULL,
		image_ref     TEXT NOT NULL DEFAULT '',
		location      TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'pending',
		confidence    DOUBLE PRECISION,
		verified_by   TEXT NOT NULL DEFAULT '',
		verified_at   TIMESTAMPTZ,
		reward_amount DOUBLE PRECISION,
		batch_id      TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id           TEXT PRIMARY KEY,
		producer_id  TEXT NOT NULL REFERENCES actors(id),
		material     TEXT NOT NULL,
		weight_kg    DOUBLE PRECISION NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		external_ref TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS batch_members (
		batch_id  TEXT NOT NULL REFERENCES batches(id),
		kind      TEXT NOT NULL,
		member_id TEXT NOT NULL,
		added_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (batch_id, kind, member_id)
	)`,
	`CREATE TABLE IF NOT EXISTS token_transactions (
		id            TEXT PRIMARY KEY,
		actor_id      TEXT NOT NULL REFERENCES actors(id),
		kind          TEXT NOT NULL,
		amount        DOUBLE PRECISION NOT NULL,
		metadata      TEXT NOT NULL DEFAULT '',
		submission_id TEXT,
		external_ref  TEXT,
		status        TEXT NOT NULL DEFAULT 'pending',
		failure_note  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_actors_wallet ON actors (lower(wallet));
	 CREATE INDEX IF NOT EXISTS idx_submissions_actor ON submissions (actor_id);
	 CREATE INDEX IF NOT EXISTS idx_batches_producer ON batches (producer_id);
	 CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_reward_submission ON token_transactions (submission_id) WHERE kind = 'reward' AND submission_id IS NOT NULL;
	 CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_external_ref ON token_transactions (external_ref) WHERE external_ref IS NOT NULL AND external_ref <> '';
	 CREATE INDEX IF NOT EXISTS idx_tx_status ON token_transactions (status)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
