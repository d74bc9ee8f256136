package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/memoslot/memoslot/internal/index"
	"github.com/memoslot/memoslot/internal/search"
	"github.com/memoslot/memoslot/internal/slot"
)

type slotProvider map[string]*slot.Slot

func (m slotProvider) Entry(slotName, entryID string) (*slot.Slot, *slot.Entry, bool) {
	s, ok := m[slotName]
	if !ok {
		return nil, nil, false
	}
	e := s.Entry(entryID)
	if e == nil {
		return nil, nil, false
	}
	return s, e, true
}

func benchCorpus(entries int) (slotProvider, *index.Index) {
	texts := []string{
		"Discussed pricing strategy for the enterprise rollout",
		"Archived the outdated onboarding documents",
		"Reviewed quarterly budget numbers with finance",
		"Grocery list and weekend errands",
		"Kubernetes upgrade checklist and rollback plan",
	}
	s := &slot.Slot{Name: "bench", Tags: []string{"work"}}
	for i := 0; i < entries; i++ {
		s.Entries = append(s.Entries, slot.Entry{
			ID:        fmt.Sprintf("e-%d", i),
			Kind:      slot.KindDirectSave,
			Text:      texts[i%len(texts)],
			CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
			Seq:       i,
		})
	}
	provider := slotProvider{"bench": s}
	ix := index.New()
	if err := ix.Rebuild(map[string]*slot.Slot(provider)); err != nil {
		panic(err)
	}
	return provider, ix
}

// BenchmarkSearchSingleTerm measures full evaluate-rank-snippet latency for
// a single-term query over 10 000 entries.
func BenchmarkSearchSingleTerm(b *testing.B) {
	provider, ix := benchCorpus(10000)
	eval := search.NewEvaluator(ix, provider, 60)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := eval.Evaluate("pricing", search.Filters{MaxResults: 20})
		if err != nil {
			b.Fatal(err)
		}
		_ = results
	}
}

// BenchmarkSearchBoolean measures a compound AND/NOT query.
func BenchmarkSearchBoolean(b *testing.B) {
	provider, ix := benchCorpus(10000)
	eval := search.NewEvaluator(ix, provider, 60)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := eval.Evaluate("pricing AND NOT archived", search.Filters{MaxResults: 20})
		if err != nil {
			b.Fatal(err)
		}
		_ = results
	}
}

// BenchmarkSearchPhrase measures position-verified phrase matching.
func BenchmarkSearchPhrase(b *testing.B) {
	provider, ix := benchCorpus(10000)
	eval := search.NewEvaluator(ix, provider, 60)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := eval.Evaluate(`"pricing strategy"`, search.Filters{MaxResults: 20})
		if err != nil {
			b.Fatal(err)
		}
		_ = results
	}
}
