// Package search implements the boolean query engine: it parses a raw query
// into an expression tree, evaluates it against the inverted index, scores
// and ranks the matching entries, and applies tag filters.
package search

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/memoslot/memoslot/internal/index"
	"github.com/memoslot/memoslot/internal/search/parser"
	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/internal/tokenizer"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

// phraseWeight is the fixed bonus weight credited for a confirmed
// position-adjacent phrase match.
const phraseWeight = 2.0

// Evaluator runs parsed boolean queries against the index. It takes no locks
// of its own; the engine serialises access.
type Evaluator struct {
	idx           *index.Index
	provider      EntryProvider
	snippetRadius int
	logger        *slog.Logger
}

// NewEvaluator creates an Evaluator over the given index and entry provider.
func NewEvaluator(idx *index.Index, provider EntryProvider, snippetRadius int) *Evaluator {
	if snippetRadius <= 0 {
		snippetRadius = 60
	}
	return &Evaluator{
		idx:           idx,
		provider:      provider,
		snippetRadius: snippetRadius,
		logger:        slog.Default().With("component", "query-evaluator"),
	}
}

// candidate accumulates an entry's weight and matched terms during
// evaluation.
type candidate struct {
	weight float64
	terms  map[string]struct{}
}

// Evaluate parses rawQuery and returns the ranked, filtered, capped results.
// A query matching nothing yields an empty slice, not an error.
func (e *Evaluator) Evaluate(rawQuery string, filters Filters) ([]Result, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	root, err := parser.Parse(rawQuery)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return []Result{}, nil
	}

	candidates := e.evalNode(root, filters.CaseSensitive)
	results := e.collect(candidates, filters)
	e.logger.Debug("query evaluated",
		"query", rawQuery,
		"candidates", len(candidates),
		"results", len(results),
	)
	return results, nil
}

// EvaluateTree runs an already-built expression tree, for callers that
// synthesize queries programmatically.
func (e *Evaluator) EvaluateTree(root parser.Node, filters Filters) ([]Result, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	if root == nil {
		return []Result{}, nil
	}
	return e.collect(e.evalNode(root, filters.CaseSensitive), filters), nil
}

func validateFilters(filters Filters) error {
	if filters.MaxResults < 0 {
		return apperrors.Newf(apperrors.ErrInvalidFilter,
			"max results must not be negative, got %d", filters.MaxResults)
	}
	exclude := make(map[string]struct{}, len(filters.ExcludeTags))
	for _, tag := range filters.ExcludeTags {
		exclude[slot.NormalizeTag(tag)] = struct{}{}
	}
	for _, tag := range filters.IncludeTags {
		if _, conflict := exclude[slot.NormalizeTag(tag)]; conflict {
			return apperrors.Newf(apperrors.ErrInvalidFilter,
				"tag %q is both included and excluded", tag)
		}
	}
	return nil
}

// evalNode computes the candidate set for one tree node. NOT is evaluated as
// the complement over all indexed entries with zero contributed weight, so
// AND/OR combine uniformly.
func (e *Evaluator) evalNode(node parser.Node, caseSensitive bool) map[index.EntryKey]*candidate {
	switch n := node.(type) {
	case *parser.Term:
		return e.evalTerm(n.Raw, caseSensitive)
	case *parser.Phrase:
		return e.evalPhrase(n.Raw, caseSensitive)
	case *parser.Not:
		matched := e.evalNode(n.Child, caseSensitive)
		out := make(map[index.EntryKey]*candidate)
		for _, key := range e.idx.Keys() {
			if _, hit := matched[key]; !hit {
				out[key] = &candidate{terms: make(map[string]struct{})}
			}
		}
		return out
	case *parser.And:
		left := e.evalNode(n.Left, caseSensitive)
		right := e.evalNode(n.Right, caseSensitive)
		out := make(map[index.EntryKey]*candidate)
		for key, lc := range left {
			rc, ok := right[key]
			if !ok {
				continue
			}
			out[key] = mergeCandidates(lc, rc, lc.weight+rc.weight)
		}
		return out
	case *parser.Or:
		left := e.evalNode(n.Left, caseSensitive)
		right := e.evalNode(n.Right, caseSensitive)
		out := make(map[index.EntryKey]*candidate, len(left)+len(right))
		for key, lc := range left {
			out[key] = lc
		}
		for key, rc := range right {
			if lc, ok := out[key]; ok {
				weight := lc.weight
				if rc.weight > weight {
					weight = rc.weight
				}
				out[key] = mergeCandidates(lc, rc, weight)
			} else {
				out[key] = rc
			}
		}
		return out
	default:
		return map[index.EntryKey]*candidate{}
	}
}

func (e *Evaluator) evalTerm(raw string, caseSensitive bool) map[index.EntryKey]*candidate {
	terms := tokenizer.Terms(raw, false)
	if len(terms) == 0 {
		return map[index.EntryKey]*candidate{}
	}
	term := terms[0]
	rec := e.idx.Lookup(term)
	out := make(map[index.EntryKey]*candidate, len(rec.Postings))
	for _, p := range rec.Postings {
		if caseSensitive && !e.entryHasExactTerm(p.Key, raw) {
			continue
		}
		out[p.Key] = &candidate{
			weight: e.idx.Weight(p.Frequency, rec.DocFreq),
			terms:  map[string]struct{}{term: {}},
		}
	}
	return out
}

func (e *Evaluator) evalPhrase(raw string, caseSensitive bool) map[index.EntryKey]*candidate {
	words := tokenizer.Terms(raw, false)
	if len(words) == 0 {
		return map[index.EntryKey]*candidate{}
	}
	rec := e.idx.Lookup(words[0])
	out := make(map[index.EntryKey]*candidate)
	for _, p := range rec.Postings {
		if !e.idx.PhraseMatch(words, p.Key.Slot, p.Key.Entry) {
			continue
		}
		if caseSensitive && !e.entryContainsLiteral(p.Key, raw) {
			continue
		}
		terms := make(map[string]struct{}, len(words))
		for _, w := range words {
			terms[w] = struct{}{}
		}
		out[p.Key] = &candidate{weight: phraseWeight, terms: terms}
	}
	return out
}

// entryHasExactTerm verifies the raw, original-cased token appears in the
// entry's text. The index itself is case-folded, so case-sensitive requests
// re-check candidates against the live text.
func (e *Evaluator) entryHasExactTerm(key index.EntryKey, raw string) bool {
	_, entry, ok := e.provider.Entry(key.Slot, key.Entry)
	if !ok {
		return false
	}
	wanted := tokenizer.Terms(raw, true)
	if len(wanted) == 0 {
		return false
	}
	for _, term := range tokenizer.Terms(entry.Text, true) {
		if term == wanted[0] {
			return true
		}
	}
	return false
}

func (e *Evaluator) entryContainsLiteral(key index.EntryKey, raw string) bool {
	_, entry, ok := e.provider.Entry(key.Slot, key.Entry)
	if !ok {
		return false
	}
	return strings.Contains(entry.Text, raw)
}

// collect applies tag filters, normalizes weights into [0,1] scores, ranks,
// and truncates.
func (e *Evaluator) collect(candidates map[index.EntryKey]*candidate, filters Filters) []Result {
	include := slot.NormalizeTags(filters.IncludeTags)
	exclude := slot.NormalizeTags(filters.ExcludeTags)

	maxWeight := 0.0
	for _, c := range candidates {
		if c.weight > maxWeight {
			maxWeight = c.weight
		}
	}

	results := make([]Result, 0, len(candidates))
	for key, c := range candidates {
		s, entry, ok := e.provider.Entry(key.Slot, key.Entry)
		if !ok {
			continue
		}
		if !tagsAllow(s, include, exclude) {
			continue
		}
		score := 0.0
		if maxWeight > 0 {
			score = c.weight / maxWeight
		}
		matched := make([]string, 0, len(c.terms))
		for term := range c.terms {
			matched = append(matched, term)
		}
		sort.Strings(matched)
		snippet, highlights := buildSnippet(entry.Text, c.terms, e.snippetRadius)
		results = append(results, Result{
			Slot:         key.Slot,
			EntryID:      key.Entry,
			Score:        score,
			Snippet:      snippet,
			Highlights:   highlights,
			MatchedTerms: matched,
			Tags:         append([]string(nil), s.Tags...),
			Group:        s.Group,
			Kind:         entry.Kind,
			CreatedAt:    entry.CreatedAt,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		if results[i].Slot != results[j].Slot {
			return results[i].Slot < results[j].Slot
		}
		return results[i].EntryID < results[j].EntryID
	})

	if filters.MaxResults > 0 && len(results) > filters.MaxResults {
		results = results[:filters.MaxResults]
	}
	return results
}

func tagsAllow(s *slot.Slot, include, exclude []string) bool {
	for _, tag := range exclude {
		if s.HasTag(tag) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, tag := range include {
		if s.HasTag(tag) {
			return true
		}
	}
	return false
}

func mergeCandidates(a, b *candidate, weight float64) *candidate {
	terms := make(map[string]struct{}, len(a.terms)+len(b.terms))
	for t := range a.terms {
		terms[t] = struct{}{}
	}
	for t := range b.terms {
		terms[t] = struct{}{}
	}
	return &candidate{weight: weight, terms: terms}
}
