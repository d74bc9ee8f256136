package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoslot/memoslot/internal/search"
	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/internal/store"
	"github.com/memoslot/memoslot/pkg/config"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

func at(d int) time.Time {
	return time.Date(2025, 3, d, 9, 0, 0, 0, time.UTC)
}

func seedSlots() []*slot.Slot {
	return []*slot.Slot{
		{
			Name: "work-notes",
			Tags: []string{"meeting"},
			Entries: []slot.Entry{
				{ID: "w1", Kind: slot.KindDirectSave, Text: "Discussed pricing strategy for the rollout", CreatedAt: at(10), Seq: 0},
				{ID: "w2", Kind: slot.KindDirectSave, Text: "Archived the outdated pricing document", CreatedAt: at(11), Seq: 1},
			},
		},
		{
			Name: "scratch",
			Entries: []slot.Entry{
				{ID: "s1", Kind: slot.KindDirectSave, Text: "Grocery list and weekend errands", CreatedAt: at(12), Seq: 0},
			},
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore(seedSlots()...)
	eng := New(st, Options{
		Search: config.SearchConfig{MaxResults: 100, DefaultLimit: 20, QuestionLimit: 5, SnippetRadius: 60},
		Merge:  config.MergeConfig{DefaultThreshold: 0.8, PreviewSample: 3},
	})
	require.NoError(t, eng.Load(context.Background()))
	return eng, st
}

func ids(results []search.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.EntryID
	}
	return out
}

func TestSearchEndToEnd(t *testing.T) {
	eng, _ := newTestEngine(t)

	results, err := eng.Search(context.Background(), "pricing AND NOT archived", search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, ids(results))
}

func TestSearchCapsMaxResults(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Search(context.Background(), "pricing", search.Filters{MaxResults: 101})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidFilter))
}

func TestAskEndToEnd(t *testing.T) {
	eng, _ := newTestEngine(t)

	results, err := eng.Ask(context.Background(), "What did we decide about pricing?", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestMergePreviewLeavesStoreUntouched(t *testing.T) {
	eng, st := newTestEngine(t)
	req := eng.NewMergeRequest([]string{"work-notes", "scratch"}, "consolidated")

	preview, err := eng.MergePreview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.KeptCount)
	assert.Equal(t, 0, preview.DroppedCount)

	_, err = st.Get(context.Background(), "consolidated")
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotNotFound))
	_, err = st.Get(context.Background(), "work-notes")
	assert.NoError(t, err)
}

func TestMergeExecutePersistsTargetBeforeDeletingSources(t *testing.T) {
	eng, st := newTestEngine(t)
	req := eng.NewMergeRequest([]string{"work-notes", "scratch"}, "consolidated")
	req.DeleteSources = true

	outcome, err := eng.MergeExecute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.KeptCount)
	assert.ElementsMatch(t, []string{"work-notes", "scratch"}, outcome.SourcesDeleted)

	target, err := st.Get(context.Background(), "consolidated")
	require.NoError(t, err)
	assert.Len(t, target.Entries, 3)
	assert.Contains(t, target.Description, "work-notes")

	for _, name := range []string{"work-notes", "scratch"} {
		_, err = st.Get(context.Background(), name)
		assert.True(t, apperrors.Is(err, apperrors.ErrSlotNotFound), "slot %q", name)
	}

	// The merged content is immediately searchable under the target.
	results, err := eng.Search(context.Background(), "pricing", search.Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "consolidated", r.Slot)
	}
}

func TestMergeExecuteKeepsSourcesByDefault(t *testing.T) {
	eng, st := newTestEngine(t)
	req := eng.NewMergeRequest([]string{"work-notes", "scratch"}, "consolidated")

	outcome, err := eng.MergeExecute(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, outcome.SourcesDeleted)

	_, err = st.Get(context.Background(), "work-notes")
	assert.NoError(t, err)
}

func TestMergeRejectsSingleSource(t *testing.T) {
	eng, st := newTestEngine(t)
	req := eng.NewMergeRequest([]string{"work-notes"}, "consolidated")

	_, err := eng.MergeExecute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMergeValidation))

	_, err = st.Get(context.Background(), "consolidated")
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotNotFound))
}

func TestMergeRejectsTargetThatIsASource(t *testing.T) {
	eng, _ := newTestEngine(t)
	req := eng.NewMergeRequest([]string{"work-notes", "scratch"}, "scratch")

	_, err := eng.MergeExecute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMergeValidation))
}

func TestMergeReportsAllMissingSourcesAtOnce(t *testing.T) {
	eng, _ := newTestEngine(t)
	req := eng.NewMergeRequest([]string{"work-notes", "ghost-b", "ghost-a"}, "consolidated")

	_, err := eng.MergePreview(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMergeValidation))
	assert.Contains(t, err.Error(), "ghost-a, ghost-b")
}

func TestNewMergeRequestCarriesDefaultThreshold(t *testing.T) {
	eng, _ := newTestEngine(t)
	req := eng.NewMergeRequest([]string{"a", "b"}, "c")
	assert.InDelta(t, 0.8, req.Threshold, 1e-9)
}

func TestApplyEntryCreatesSlotOnFirstReference(t *testing.T) {
	eng, _ := newTestEngine(t)

	err := eng.ApplyEntry(context.Background(), "brand-new", slot.Entry{
		ID: "n1", Kind: slot.KindDirectSave, Text: "Kubernetes upgrade checklist", CreatedAt: at(13),
	})
	require.NoError(t, err)

	results, err := eng.Search(context.Background(), "kubernetes", search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, ids(results))

	snapshot, ok := eng.SlotSnapshot("brand-new")
	require.True(t, ok)
	assert.Len(t, snapshot.Entries, 1)
}

func TestApplyEntryReplacesExistingContent(t *testing.T) {
	eng, _ := newTestEngine(t)

	err := eng.ApplyEntry(context.Background(), "work-notes", slot.Entry{
		ID: "w1", Kind: slot.KindDirectSave, Text: "Rewrote the onboarding guide", CreatedAt: at(10),
	})
	require.NoError(t, err)

	results, err := eng.Search(context.Background(), "onboarding", search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, ids(results))

	// The old text no longer matches.
	results, err = eng.Search(context.Background(), "strategy", search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRemoveEntry(t *testing.T) {
	eng, _ := newTestEngine(t)

	require.NoError(t, eng.RemoveEntry(context.Background(), "scratch", "s1"))

	results, err := eng.Search(context.Background(), "grocery", search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)

	err = eng.RemoveEntry(context.Background(), "scratch", "s1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotNotFound))
}

func TestDropSlots(t *testing.T) {
	eng, _ := newTestEngine(t)

	eng.DropSlots(context.Background(), []string{"work-notes"})

	results, err := eng.Search(context.Background(), "pricing", search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)

	slots, entries, _ := eng.Stats()
	assert.Equal(t, 1, slots)
	assert.Equal(t, 1, entries)
}

func TestRebuildRestoresConsistentState(t *testing.T) {
	eng, _ := newTestEngine(t)

	require.NoError(t, eng.Rebuild("manual"))

	results, err := eng.Search(context.Background(), "pricing", search.Filters{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
