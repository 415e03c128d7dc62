package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the part of a pool or transaction Migrate needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema is applied in order; every statement is idempotent.
//
// The UNIQUE (user_id, event_id) constraint is what makes duplicate
// reservations impossible, and the CHECK constraints on events keep
// capacity_left inside [0, capacity] even if application code misbehaves.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		name          VARCHAR(100) NOT NULL,
		email         VARCHAR(254) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		is_premium    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id            UUID PRIMARY KEY,
		creator_id    UUID NOT NULL CONSTRAINT events_creator_id_fkey REFERENCES users(id) ON DELETE CASCADE,
		name          VARCHAR(100) NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		location      VARCHAR(100) NOT NULL DEFAULT '',
		date          TIMESTAMPTZ NOT NULL,
		capacity      INTEGER NOT NULL CHECK (capacity >= 0),
		capacity_left INTEGER NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT events_capacity_left_range
			CHECK (capacity_left >= 0 AND capacity_left <= capacity)
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL CONSTRAINT reservations_user_id_fkey REFERENCES users(id) ON DELETE CASCADE,
		event_id   UUID NOT NULL CONSTRAINT reservations_event_id_fkey REFERENCES events(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT reservations_user_event_key UNIQUE (user_id, event_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_date ON events(date)`,
	`CREATE INDEX IF NOT EXISTS idx_events_creator_id ON events(creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_event_id ON reservations(event_id)`,
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
