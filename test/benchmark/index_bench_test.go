// Package benchmark contains Go benchmarks for the inverted index, the
// tokenizer, and the search pipeline, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/memoslot/memoslot/internal/index"
	"github.com/memoslot/memoslot/internal/slot"
)

func benchEntry(i int) *slot.Entry {
	return &slot.Entry{
		ID:        fmt.Sprintf("e-%d", i),
		Kind:      slot.KindDirectSave,
		Text:      "benchmark entry with several recurring terms covering indexing throughput and posting list growth",
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

// BenchmarkIndexAddEntry measures per-entry insert throughput into the
// inverted index.
func BenchmarkIndexAddEntry(b *testing.B) {
	ix := index.New()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ix.AddEntry("bench", benchEntry(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkIndexLookup measures single-term lookup latency over 10 000
// entries.
func BenchmarkIndexLookup(b *testing.B) {
	ix := index.New()
	for i := 0; i < 10000; i++ {
		if err := ix.AddEntry("bench", benchEntry(i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := ix.Lookup("benchmark")
		_ = rec
	}
}

// BenchmarkIndexAddRemove measures the add/remove round trip that entry
// replacement performs.
func BenchmarkIndexAddRemove(b *testing.B) {
	ix := index.New()
	e := benchEntry(0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ix.AddEntry("bench", e); err != nil {
			b.Fatal(err)
		}
		if err := ix.RemoveEntry("bench", e.ID); err != nil {
			b.Fatal(err)
		}
	}
}
