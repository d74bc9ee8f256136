package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoslot/memoslot/internal/engine"
	"github.com/memoslot/memoslot/internal/search"
	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/internal/store"
	"github.com/memoslot/memoslot/pkg/config"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

func newTestApplier(t *testing.T) (*Applier, *engine.Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore(&slot.Slot{
		Name: "work-notes",
		Entries: []slot.Entry{
			{ID: "w1", Kind: slot.KindDirectSave, Text: "Existing pricing notes", CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		},
	})
	eng := engine.New(st, engine.Options{
		Search: config.SearchConfig{MaxResults: 100, DefaultLimit: 20},
	})
	require.NoError(t, eng.Load(context.Background()))
	return NewApplier(eng, st), eng, st
}

func encode(t *testing.T, m Mutation) []byte {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return data
}

func TestHandleEntrySaved(t *testing.T) {
	applier, eng, st := newTestApplier(t)

	value := encode(t, Mutation{
		Type: MutationEntrySaved,
		Slot: "inbox",
		Entry: &EntryPayload{
			ID:        "n1",
			Kind:      string(slot.KindDirectSave),
			Text:      "Renewed the domain registration",
			CreatedAt: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, applier.Handle(context.Background(), []byte("inbox"), value))

	results, err := eng.Search(context.Background(), "domain", search.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "inbox", results[0].Slot)

	stored, err := st.Get(context.Background(), "inbox")
	require.NoError(t, err)
	assert.Len(t, stored.Entries, 1)
}

func TestHandleEntrySavedDefaultsUnknownKind(t *testing.T) {
	applier, eng, _ := newTestApplier(t)

	value := encode(t, Mutation{
		Type:  MutationEntrySaved,
		Slot:  "inbox",
		Entry: &EntryPayload{ID: "n1", Kind: "mystery", Text: "Carved pumpkin schedule"},
	})
	require.NoError(t, applier.Handle(context.Background(), nil, value))

	results, err := eng.Search(context.Background(), "pumpkin", search.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, slot.KindDirectSave, results[0].Kind)
}

func TestHandleEntryRemoved(t *testing.T) {
	applier, eng, st := newTestApplier(t)

	value := encode(t, Mutation{
		Type:    MutationEntryRemoved,
		Slot:    "work-notes",
		EntryID: "w1",
	})
	require.NoError(t, applier.Handle(context.Background(), nil, value))

	results, err := eng.Search(context.Background(), "pricing", search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)

	stored, err := st.Get(context.Background(), "work-notes")
	require.NoError(t, err)
	assert.Empty(t, stored.Entries)
}

func TestHandleEntryRemovedUnknownIsSkipped(t *testing.T) {
	applier, _, _ := newTestApplier(t)

	value := encode(t, Mutation{
		Type:    MutationEntryRemoved,
		Slot:    "work-notes",
		EntryID: "ghost",
	})
	// Removals for entries we never saw do not stall the topic.
	assert.NoError(t, applier.Handle(context.Background(), nil, value))
}

func TestHandleSlotsDeleted(t *testing.T) {
	applier, eng, st := newTestApplier(t)

	value := encode(t, Mutation{
		Type:  MutationSlotsDeleted,
		Slots: []string{"work-notes"},
	})
	require.NoError(t, applier.Handle(context.Background(), nil, value))

	_, err := st.Get(context.Background(), "work-notes")
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotNotFound))

	results, err := eng.Search(context.Background(), "pricing", search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHandleMalformedPayloadIsSkipped(t *testing.T) {
	applier, _, _ := newTestApplier(t)

	assert.NoError(t, applier.Handle(context.Background(), nil, []byte("not json")))
	assert.NoError(t, applier.Handle(context.Background(), nil, encode(t, Mutation{Type: "unknown"})))
	assert.NoError(t, applier.Handle(context.Background(), nil, encode(t, Mutation{Type: MutationEntrySaved})))
}
