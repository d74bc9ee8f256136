package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memoslot/memoslot/internal/engine"
	"github.com/memoslot/memoslot/internal/store"
	"github.com/memoslot/memoslot/pkg/kafka"
	"github.com/memoslot/memoslot/pkg/resilience"
)

// Applier consumes slot mutations and applies each one to the engine first,
// then persists the resulting slot state. Persistence retries with backoff;
// a mutation that cannot be decoded is logged and skipped rather than
// blocking the partition.
type Applier struct {
	engine *engine.Engine
	store  store.SlotStore
	logger *slog.Logger
}

func NewApplier(eng *engine.Engine, st store.SlotStore) *Applier {
	return &Applier{
		engine: eng,
		store:  st,
		logger: slog.Default().With("component", "ingest"),
	}
}

// Handle implements kafka.MessageHandler.
func (a *Applier) Handle(ctx context.Context, key, value []byte) error {
	mutation, err := kafka.DecodeJSON[Mutation](value)
	if err != nil {
		a.logger.Error("undecodable mutation skipped", "key", string(key), "error", err)
		return nil
	}
	switch mutation.Type {
	case MutationEntrySaved:
		return a.applyEntrySaved(ctx, &mutation)
	case MutationEntryRemoved:
		return a.applyEntryRemoved(ctx, &mutation)
	case MutationSlotsDeleted:
		return a.applySlotsDeleted(ctx, &mutation)
	default:
		a.logger.Error("unknown mutation type skipped", "type", string(mutation.Type))
		return nil
	}
}

func (a *Applier) applyEntrySaved(ctx context.Context, m *Mutation) error {
	if m.Slot == "" || m.Entry == nil || m.Entry.ID == "" {
		a.logger.Error("entry-saved mutation missing slot or entry, skipped")
		return nil
	}
	if err := a.engine.ApplyEntry(ctx, m.Slot, m.Entry.toEntry()); err != nil {
		return fmt.Errorf("applying entry %s/%s: %w", m.Slot, m.Entry.ID, err)
	}
	return a.persistSlot(ctx, m.Slot)
}

func (a *Applier) applyEntryRemoved(ctx context.Context, m *Mutation) error {
	if m.Slot == "" || m.EntryID == "" {
		a.logger.Error("entry-removed mutation missing slot or entry id, skipped")
		return nil
	}
	if err := a.engine.RemoveEntry(ctx, m.Slot, m.EntryID); err != nil {
		// A removal for an entry we never saw is not worth stalling the
		// topic over.
		a.logger.Warn("entry removal not applied", "slot", m.Slot, "entry", m.EntryID, "error", err)
		return nil
	}
	return a.persistSlot(ctx, m.Slot)
}

func (a *Applier) applySlotsDeleted(ctx context.Context, m *Mutation) error {
	if len(m.Slots) == 0 {
		return nil
	}
	if err := resilience.Retry(ctx, "delete-slots", resilience.RetryConfig{}, func() error {
		return a.store.DeleteSlots(ctx, m.Slots)
	}); err != nil {
		return fmt.Errorf("deleting slots %v: %w", m.Slots, err)
	}
	a.engine.DropSlots(ctx, m.Slots)
	return nil
}

func (a *Applier) persistSlot(ctx context.Context, name string) error {
	snapshot, ok := a.engine.SlotSnapshot(name)
	if !ok {
		return nil
	}
	if err := resilience.Retry(ctx, "save-slot", resilience.RetryConfig{}, func() error {
		return a.store.SaveSlot(ctx, snapshot)
	}); err != nil {
		return fmt.Errorf("persisting slot %s: %w", name, err)
	}
	return nil
}
