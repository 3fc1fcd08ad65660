package sqlstore

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
)

// Schema creates the check-in tables. The CHECK constraints keep status and
// checked_in_at consistent at the database level; the unique index on secret
// is what makes issuance collision-safe.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY NOT NULL,
		name        TEXT NOT NULL,
		description TEXT,
		venue       TEXT,
		starts_at   TEXT NOT NULL,
		ends_at     TEXT,
		created_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id             TEXT PRIMARY KEY NOT NULL,
		event_id       TEXT NOT NULL REFERENCES events (id),
		attendee_name  TEXT NOT NULL,
		attendee_email TEXT,
		secret         TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'issued'
			CHECK (status IN ('issued', 'checked_in', 'revoked')),
		checked_in_at  TEXT,
		created_at     TEXT NOT NULL,
		CHECK ((status = 'checked_in') = (checked_in_at IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_secret ON tickets (secret)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_event ON tickets (event_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS scan_logs (
		id         TEXT PRIMARY KEY NOT NULL,
		ticket_id  TEXT,
		event_id   TEXT,
		scanner_id TEXT,
		result     TEXT NOT NULL
			CHECK (result IN ('success', 'duplicate', 'revoked', 'invalid')),
		scanned_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_logs_ticket ON scan_logs (ticket_id)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_logs_event ON scan_logs (event_id, scanned_at)`,
}

var dropSchema = []string{
	`DROP TABLE IF EXISTS scan_logs`,
	`DROP TABLE IF EXISTS tickets`,
	`DROP TABLE IF EXISTS events`,
}

// Migrate applies Schema. It is idempotent.
func Migrate(ctx context.Context, db dbx.Builder) error {
	return execAll(ctx, db, Schema)
}

// Drop removes the check-in tables.
func Drop(ctx context.Context, db dbx.Builder) error {
	return execAll(ctx, db, dropSchema)
}

func execAll(ctx context.Context, db dbx.Builder, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("sqlstore: schema: %w", err)
		}
	}
	return nil
}
