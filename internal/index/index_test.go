package index

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoslot/memoslot/internal/slot"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

func entry(id, text string) *slot.Entry {
	return &slot.Entry{
		ID:        id,
		Kind:      slot.KindDirectSave,
		Text:      text,
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestAddEntryRecordsPostings(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddEntry("work", entry("e1", "pricing pricing strategy")))
	require.NoError(t, ix.AddEntry("work", entry("e2", "pricing review")))

	rec := ix.Lookup("pric")
	assert.Equal(t, 2, rec.DocFreq)
	require.Len(t, rec.Postings, 2)
	// Postings come back sorted by key.
	assert.Equal(t, "e1", rec.Postings[0].Key.Entry)
	assert.Equal(t, 2, rec.Postings[0].Frequency)
	assert.Equal(t, []int{0, 1}, rec.Postings[0].Positions)
	assert.Equal(t, 1, rec.Postings[1].Frequency)

	assert.Equal(t, 2, ix.TotalEntries())
}

func TestAddEntryTwiceIsConsistencyError(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddEntry("work", entry("e1", "alpha beta")))

	err := ix.AddEntry("work", entry("e1", "alpha beta"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIndexConsistency))
}

func TestRemoveEntryReversesAdd(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddEntry("work", entry("e1", "alpha beta gamma")))
	require.NoError(t, ix.AddEntry("work", entry("e2", "beta delta")))

	require.NoError(t, ix.RemoveEntry("work", "e1"))

	assert.Equal(t, 1, ix.TotalEntries())
	assert.False(t, ix.Contains("work", "e1"))
	assert.Equal(t, 0, ix.Lookup("alpha").DocFreq)
	assert.Equal(t, 1, ix.Lookup("beta").DocFreq)

	require.NoError(t, ix.RemoveEntry("work", "e2"))
	assert.Equal(t, 0, ix.TotalEntries())
	assert.Equal(t, 0, ix.TermCount())
}

func TestRemoveUnknownEntryIsConsistencyError(t *testing.T) {
	ix := New()
	err := ix.RemoveEntry("work", "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIndexConsistency))
}

func TestPhraseMatchRequiresAdjacency(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddEntry("work", entry("e1", "alpha beta gamma")))

	assert.True(t, ix.PhraseMatch([]string{"alpha", "beta"}, "work", "e1"))
	assert.True(t, ix.PhraseMatch([]string{"beta", "gamma"}, "work", "e1"))
	assert.True(t, ix.PhraseMatch([]string{"alpha", "beta", "gamma"}, "work", "e1"))
	assert.False(t, ix.PhraseMatch([]string{"beta", "alpha"}, "work", "e1"))
	assert.False(t, ix.PhraseMatch([]string{"alpha", "gamma"}, "work", "e1"))
	assert.False(t, ix.PhraseMatch(nil, "work", "e1"))
}

func TestWeightIsTFTimesIDF(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddEntry("work", entry("e1", "alpha beta")))
	require.NoError(t, ix.AddEntry("work", entry("e2", "beta gamma")))
	require.NoError(t, ix.AddEntry("work", entry("e3", "gamma delta")))

	// Three entries, term in one of them.
	assert.InDelta(t, math.Log(3), ix.Weight(1, 1), 1e-9)
	assert.InDelta(t, 2*math.Log(3.0/2.0), ix.Weight(2, 2), 1e-9)
	// A term present everywhere carries zero discriminative weight.
	assert.InDelta(t, 0, ix.Weight(1, 3), 1e-9)
	// Document frequency is floored at 1.
	assert.InDelta(t, math.Log(3), ix.Weight(1, 0), 1e-9)
}

func TestLookupReturnsCopies(t *testing.T) {
	ix := New()
	require.NoError(t, ix.AddEntry("work", entry("e1", "alpha beta")))

	rec := ix.Lookup("alpha")
	require.Len(t, rec.Postings, 1)
	rec.Postings[0].Positions[0] = 99

	again := ix.Lookup("alpha")
	assert.Equal(t, []int{0}, again.Postings[0].Positions)
}

func TestRebuildIsDeterministic(t *testing.T) {
	slots := map[string]*slot.Slot{
		"work": {
			Name: "work",
			Entries: []slot.Entry{
				*entry("e1", "alpha beta"),
				*entry("e2", "beta gamma"),
			},
		},
		"personal": {
			Name:    "personal",
			Entries: []slot.Entry{*entry("p1", "delta alpha")},
		},
	}

	a := New()
	require.NoError(t, a.Rebuild(slots))
	b := New()
	require.NoError(t, b.Rebuild(slots))

	assert.Equal(t, a.TotalEntries(), b.TotalEntries())
	assert.Equal(t, a.TermCount(), b.TermCount())
	for _, term := range []string{"alpha", "beta", "gamma", "delta"} {
		assert.Equal(t, a.Lookup(term), b.Lookup(term), "term %q", term)
	}
}

func TestVerifyDetectsStalePosting(t *testing.T) {
	slots := map[string]*slot.Slot{
		"work": {
			Name:    "work",
			Entries: []slot.Entry{*entry("e1", "alpha beta")},
		},
	}
	ix := New()
	require.NoError(t, ix.Rebuild(slots))
	require.NoError(t, ix.Verify(slots))

	// Drop the entry from the slot without telling the index.
	slots["work"].Entries = nil
	err := ix.Verify(slots)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIndexConsistency))
}

func TestKeysCoversAllEntries(t *testing.T) {
	ix := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, ix.AddEntry("work", entry(fmt.Sprintf("e%d", i), "alpha")))
	}
	assert.Len(t, ix.Keys(), 5)
}
