package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema uses types both PostgreSQL and SQLite accept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS timetable_alternatives (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NULL,
		version INTEGER NOT NULL,
		name TEXT NOT NULL,
		seed BIGINT NOT NULL,
		fingerprint TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		meta TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_alternatives_fingerprint ON timetable_alternatives (fingerprint, version)`,
	`CREATE TABLE IF NOT EXISTS timetable_placements (
		id TEXT PRIMARY KEY,
		alternative_id TEXT NOT NULL REFERENCES timetable_alternatives (id) ON DELETE CASCADE,
		session_id TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		faculty_id TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		period INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		room_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (alternative_id, session_id)
	)`,
}

// EnsureSchema creates the timetable tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
