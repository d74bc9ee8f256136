// Package store defines the slot storage contract the engine consumes and
// provides PostgreSQL and in-memory implementations. The engine treats the
// store as the source of truth: the index is always rebuildable from it.
package store

import (
	"context"

	"github.com/memoslot/memoslot/internal/slot"
)

// SlotStore is the storage collaborator's contract. Implementations own
// persistence format and atomicity; the engine only sees loaded slots.
type SlotStore interface {
	// LoadAll returns every slot with its entries.
	LoadAll(ctx context.Context) ([]*slot.Slot, error)
	// Get returns one slot by name, or ErrSlotNotFound.
	Get(ctx context.Context, name string) (*slot.Slot, error)
	// SaveSlot writes the slot and all its entries, replacing any
	// previous content under the same name.
	SaveSlot(ctx context.Context, s *slot.Slot) error
	// DeleteSlots removes the named slots and their entries.
	DeleteSlots(ctx context.Context, names []string) error
}
