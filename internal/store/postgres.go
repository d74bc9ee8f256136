package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/memoslot/memoslot/internal/slot"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
	"github.com/memoslot/memoslot/pkg/postgres"
)

// PostgresStore persists slots in PostgreSQL.
type PostgresStore struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewPostgresStore wraps a connected postgres client.
func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{
		client: client,
		logger: slog.Default().With("component", "slot-store"),
	}
}

// LoadAll returns every slot with its entries in chronological order.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]*slot.Slot, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT name, tags, group_path, description FROM slots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("loading slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*slot.Slot, 0)
	byName := make(map[string]*slot.Slot)
	for rows.Next() {
		sl := &slot.Slot{}
		var tags pq.StringArray
		if err := rows.Scan(&sl.Name, &tags, &sl.Group, &sl.Description); err != nil {
			return nil, fmt.Errorf("scanning slot row: %w", err)
		}
		sl.Tags = []string(tags)
		slots = append(slots, sl)
		byName[sl.Name] = sl
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slot rows: %w", err)
	}

	entryRows, err := s.client.DB.QueryContext(ctx,
		`SELECT slot_name, id, kind, body, created_at, seq, meta
		 FROM entries ORDER BY slot_name, created_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var slotName string
		var e slot.Entry
		var kind string
		var meta []byte
		if err := entryRows.Scan(&slotName, &e.ID, &kind, &e.Text, &e.CreatedAt, &e.Seq, &meta); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}
		e.Kind = slot.Kind(kind)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("decoding entry meta for %s/%s: %w", slotName, e.ID, err)
			}
		}
		sl, ok := byName[slotName]
		if !ok {
			continue
		}
		sl.Entries = append(sl.Entries, e)
	}
	if err := entryRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry rows: %w", err)
	}
	s.logger.Info("slots loaded", "count", len(slots))
	return slots, nil
}

// Get returns one slot by name, or ErrSlotNotFound.
func (s *PostgresStore) Get(ctx context.Context, name string) (*slot.Slot, error) {
	sl := &slot.Slot{}
	var tags pq.StringArray
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT name, tags, group_path, description FROM slots WHERE name = $1`,
		name,
	).Scan(&sl.Name, &tags, &sl.Group, &sl.Description)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrSlotNotFound, "slot %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading slot %s: %w", name, err)
	}
	sl.Tags = []string(tags)

	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, kind, body, created_at, seq, meta
		 FROM entries WHERE slot_name = $1 ORDER BY created_at, seq`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("loading entries for slot %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var e slot.Entry
		var kind string
		var meta []byte
		if err := rows.Scan(&e.ID, &kind, &e.Text, &e.CreatedAt, &e.Seq, &meta); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}
		e.Kind = slot.Kind(kind)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("decoding entry meta for %s/%s: %w", name, e.ID, err)
			}
		}
		sl.Entries = append(sl.Entries, e)
	}
	return sl, rows.Err()
}

// SaveSlot upserts the slot row and replaces its entries in one transaction.
func (s *PostgresStore) SaveSlot(ctx context.Context, sl *slot.Slot) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO slots (name, tags, group_path, description)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (name) DO UPDATE
			 SET tags = EXCLUDED.tags,
			     group_path = EXCLUDED.group_path,
			     description = EXCLUDED.description`,
			sl.Name, pq.Array(sl.Tags), sl.Group, sl.Description,
		)
		if err != nil {
			return fmt.Errorf("upserting slot %s: %w", sl.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE slot_name = $1`, sl.Name); err != nil {
			return fmt.Errorf("clearing entries for slot %s: %w", sl.Name, err)
		}
		for i := range sl.Entries {
			e := &sl.Entries[i]
			meta := []byte("{}")
			if len(e.Meta) > 0 {
				encoded, err := json.Marshal(e.Meta)
				if err != nil {
					return fmt.Errorf("encoding entry meta for %s/%s: %w", sl.Name, e.ID, err)
				}
				meta = encoded
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entries (slot_name, id, kind, body, created_at, seq, meta)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				sl.Name, e.ID, string(e.Kind), e.Text, e.CreatedAt, e.Seq, meta,
			); err != nil {
				return fmt.Errorf("inserting entry %s/%s: %w", sl.Name, e.ID, err)
			}
		}
		return nil
	})
}

// DeleteSlots removes the named slots; entries cascade.
func (s *PostgresStore) DeleteSlots(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM slots WHERE name = ANY($1)`, pq.Array(names)); err != nil {
			return fmt.Errorf("deleting slots %v: %w", names, err)
		}
		return nil
	})
}
