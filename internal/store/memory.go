package store

import (
	"context"
	"sync"

	"github.com/memoslot/memoslot/internal/slot"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

// MemoryStore is an in-memory SlotStore, used in tests and for running the
// engine without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]*slot.Slot
}

// NewMemoryStore creates a MemoryStore seeded with the given slots.
func NewMemoryStore(seed ...*slot.Slot) *MemoryStore {
	m := &MemoryStore{slots: make(map[string]*slot.Slot, len(seed))}
	for _, s := range seed {
		m.slots[s.Name] = s.Clone()
	}
	return m
}

// LoadAll returns copies of every stored slot.
func (m *MemoryStore) LoadAll(ctx context.Context) ([]*slot.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*slot.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s.Clone())
	}
	return out, nil
}

// Get returns a copy of the named slot, or ErrSlotNotFound.
func (m *MemoryStore) Get(ctx context.Context, name string) (*slot.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSlotNotFound, "slot %q", name)
	}
	return s.Clone(), nil
}

// SaveSlot stores a copy of the slot, replacing any previous content.
func (m *MemoryStore) SaveSlot(ctx context.Context, s *slot.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.Name] = s.Clone()
	return nil
}

// DeleteSlots removes the named slots. Unknown names are ignored.
func (m *MemoryStore) DeleteSlots(ctx context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		delete(m.slots, name)
	}
	return nil
}
