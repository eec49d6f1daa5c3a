package sqlite

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. The group_members table is
// owned by the roster system; it is declared here so a standalone deploy
// can run against a fresh database file.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS occurrences (
		id               TEXT PRIMARY KEY,
		group_id         TEXT NOT NULL,
		series_id        TEXT,
		created_by       TEXT NOT NULL,
		title            TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		scheduled_date   TEXT NOT NULL,
		start_time       TEXT NOT NULL,
		end_time         TEXT,
		target           TEXT NOT NULL DEFAULT '',
		minimum_members  INTEGER NOT NULL CHECK (minimum_members >= 1),
		is_confirmed     INTEGER NOT NULL DEFAULT 0,
		is_completed     INTEGER NOT NULL DEFAULT 0,
		is_cancelled     INTEGER NOT NULL DEFAULT 0,
		notes            TEXT NOT NULL DEFAULT '',
		completion_notes TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		completed_at     TEXT,
		cancelled_at     TEXT,
		CHECK (NOT (is_completed = 1 AND is_cancelled = 1)),
		CHECK (end_time IS NULL OR end_time > start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_group_date
		ON occurrences (group_id, scheduled_date, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_series
		ON occurrences (series_id) WHERE series_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS attendances (
		occurrence_id     TEXT NOT NULL REFERENCES occurrences (id) ON DELETE CASCADE,
		member_id         TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'pending',
		reason            TEXT NOT NULL DEFAULT '',
		responded_at      TEXT,
		actually_attended INTEGER,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		PRIMARY KEY (occurrence_id, member_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id            TEXT NOT NULL,
		member_id           TEXT NOT NULL,
		role                TEXT NOT NULL DEFAULT '',
		is_active           INTEGER NOT NULL DEFAULT 1,
		can_manage_schedule INTEGER NOT NULL DEFAULT 0,
		joined_at           TEXT NOT NULL,
		PRIMARY KEY (group_id, member_id)
	)`,
}

// Migrate applies the schema. Safe to call on every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := cp.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
