package benchmark

import (
	"testing"

	"github.com/memoslot/memoslot/internal/tokenizer"
)

const benchText = "Discussed the quarterly pricing strategy with the enterprise sales team, " +
	"reviewed competitor positioning, and archived the outdated onboarding documents " +
	"before scheduling the next planning session"

// BenchmarkTokenize measures tokenization throughput on a representative
// entry.
func BenchmarkTokenize(b *testing.B) {
	b.ReportAllocs()
	b.SetBytes(int64(len(benchText)))
	for i := 0; i < b.N; i++ {
		tokens := tokenizer.Tokenize(benchText, false)
		_ = tokens
	}
}

// BenchmarkTermSet measures the distinct-term path used by merge similarity
// scoring.
func BenchmarkTermSet(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		set := tokenizer.TermSet(benchText, false)
		_ = set
	}
}
