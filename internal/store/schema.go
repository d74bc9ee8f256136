package store

import (
	"context"
	"fmt"

	"github.com/memoslot/memoslot/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	name        TEXT PRIMARY KEY,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	group_path  TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entries (
	slot_name  TEXT NOT NULL REFERENCES slots(name) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	kind       TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	seq        INTEGER NOT NULL,
	meta       JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (slot_name, id)
);

CREATE INDEX IF NOT EXISTS entries_chronological
	ON entries (slot_name, created_at, seq);
`

// EnsureSchema creates the slot tables when they do not exist yet.
func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	if _, err := client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying slot store schema: %w", err)
	}
	return nil
}
