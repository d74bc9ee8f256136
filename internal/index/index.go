// Package index implements the in-memory inverted index mapping terms to
// postings over (slot, entry) pairs, with term frequencies, position lists,
// and corpus-wide document frequencies for TF-IDF weighting.
//
// The Index performs no locking of its own: the engine serialises writers
// and readers with a single reader/writer lock, so every method here assumes
// the caller holds the appropriate side of that lock.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/internal/tokenizer"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

// Index is the term -> postings structure for the whole corpus.
type Index struct {
	terms map[string]map[EntryKey]*Posting
	// entryTerms remembers which terms each entry contributed, so removal
	// can reverse an addition exactly.
	entryTerms map[EntryKey][]string
	entryCount int
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		terms:      make(map[string]map[EntryKey]*Posting),
		entryTerms: make(map[EntryKey][]string),
	}
}

// AddEntry tokenizes the entry's text and records a posting for each distinct
// term, incrementing the term's document frequency once per entry. Adding an
// entry that is already indexed is an error; callers must RemoveEntry first
// when re-indexing edited content.
func (ix *Index) AddEntry(slotName string, e *slot.Entry) error {
	key := EntryKey{Slot: slotName, Entry: e.ID}
	if _, exists := ix.entryTerms[key]; exists {
		return apperrors.Newf(apperrors.ErrIndexConsistency,
			"entry %s/%s already indexed", slotName, e.ID)
	}

	tokens := tokenizer.Tokenize(e.Text, false)
	postings := make(map[string]*Posting)
	for _, tok := range tokens {
		p, ok := postings[tok.Term]
		if !ok {
			p = &Posting{Key: key, Positions: make([]int, 0, 4)}
			postings[tok.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, tok.Position)
	}

	terms := make([]string, 0, len(postings))
	for term, posting := range postings {
		if _, ok := ix.terms[term]; !ok {
			ix.terms[term] = make(map[EntryKey]*Posting)
		}
		ix.terms[term][key] = posting
		terms = append(terms, term)
	}
	sort.Strings(terms)
	ix.entryTerms[key] = terms
	ix.entryCount++
	return nil
}

// RemoveEntry reverses AddEntry for the given (slot, entry) pair. Removing an
// entry that was never indexed is an error.
func (ix *Index) RemoveEntry(slotName, entryID string) error {
	key := EntryKey{Slot: slotName, Entry: entryID}
	terms, exists := ix.entryTerms[key]
	if !exists {
		return apperrors.Newf(apperrors.ErrIndexConsistency,
			"entry %s/%s is not indexed", slotName, entryID)
	}
	for _, term := range terms {
		postings, ok := ix.terms[term]
		if !ok {
			return apperrors.Newf(apperrors.ErrIndexConsistency,
				"term %q missing while removing entry %s/%s", term, slotName, entryID)
		}
		delete(postings, key)
		if len(postings) == 0 {
			delete(ix.terms, term)
		}
	}
	delete(ix.entryTerms, key)
	ix.entryCount--
	return nil
}

// Contains reports whether the given (slot, entry) pair is indexed.
func (ix *Index) Contains(slotName, entryID string) bool {
	_, ok := ix.entryTerms[EntryKey{Slot: slotName, Entry: entryID}]
	return ok
}

// Lookup returns the TermRecord for term, or an empty record when the term is
// not indexed. The returned postings are copies; mutating them does not
// affect the index.
func (ix *Index) Lookup(term string) TermRecord {
	postings, ok := ix.terms[term]
	if !ok {
		return TermRecord{Term: term}
	}
	list := make(PostingList, 0, len(postings))
	for _, p := range postings {
		cp := *p
		cp.Positions = append([]int(nil), p.Positions...)
		list = append(list, cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Key.Slot != list[j].Key.Slot {
			return list[i].Key.Slot < list[j].Key.Slot
		}
		return list[i].Key.Entry < list[j].Key.Entry
	})
	return TermRecord{Term: term, Postings: list, DocFreq: len(list)}
}

// PhraseMatch verifies that the given terms appear at adjacent positions in
// the entry, using the stored position lists. An empty phrase never matches.
func (ix *Index) PhraseMatch(terms []string, slotName, entryID string) bool {
	if len(terms) == 0 {
		return false
	}
	key := EntryKey{Slot: slotName, Entry: entryID}
	first, ok := ix.termPosting(terms[0], key)
	if !ok {
		return false
	}
	for _, start := range first.Positions {
		matched := true
		for offset := 1; offset < len(terms); offset++ {
			next, ok := ix.termPosting(terms[offset], key)
			if !ok || !containsPosition(next.Positions, start+offset) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// Weight returns the TF-IDF weight for a term frequency under the current
// corpus statistics: tf × log(totalEntries / df), with df floored at 1.
func (ix *Index) Weight(frequency, docFreq int) float64 {
	if docFreq < 1 {
		docFreq = 1
	}
	total := ix.entryCount
	if total < 1 {
		total = 1
	}
	return float64(frequency) * math.Log(float64(total)/float64(docFreq))
}

// Keys returns the key of every indexed entry, in unspecified order.
func (ix *Index) Keys() []EntryKey {
	keys := make([]EntryKey, 0, len(ix.entryTerms))
	for key := range ix.entryTerms {
		keys = append(keys, key)
	}
	return keys
}

// TotalEntries returns the number of entries currently indexed.
func (ix *Index) TotalEntries() int {
	return ix.entryCount
}

// TermCount returns the number of distinct terms currently indexed.
func (ix *Index) TermCount() int {
	return len(ix.terms)
}

// Reset discards all index state.
func (ix *Index) Reset() {
	ix.terms = make(map[string]map[EntryKey]*Posting)
	ix.entryTerms = make(map[EntryKey][]string)
	ix.entryCount = 0
}

// Rebuild discards the index and re-adds every entry of every slot. Building
// from the same slot data twice yields identical term records.
func (ix *Index) Rebuild(slots map[string]*slot.Slot) error {
	ix.Reset()
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := slots[name]
		for i := range s.Entries {
			if err := ix.AddEntry(name, &s.Entries[i]); err != nil {
				return fmt.Errorf("rebuilding index for slot %s: %w", name, err)
			}
		}
	}
	return nil
}

// Verify checks the index invariants against the live slot set: every posting
// must reference a live entry, and each term's document frequency must equal
// the number of distinct entries holding it. A violation is returned as an
// ErrIndexConsistency error.
func (ix *Index) Verify(slots map[string]*slot.Slot) error {
	for term, postings := range ix.terms {
		for key := range postings {
			s, ok := slots[key.Slot]
			if !ok {
				return apperrors.Newf(apperrors.ErrIndexConsistency,
					"term %q references missing slot %s", term, key.Slot)
			}
			if s.Entry(key.Entry) == nil {
				return apperrors.Newf(apperrors.ErrIndexConsistency,
					"term %q references missing entry %s/%s", term, key.Slot, key.Entry)
			}
		}
	}
	for key, terms := range ix.entryTerms {
		for _, term := range terms {
			if _, ok := ix.terms[term][key]; !ok {
				return apperrors.Newf(apperrors.ErrIndexConsistency,
					"entry %s/%s lists term %q with no posting", key.Slot, key.Entry, term)
			}
		}
	}
	return nil
}

func (ix *Index) termPosting(term string, key EntryKey) (*Posting, bool) {
	postings, ok := ix.terms[term]
	if !ok {
		return nil, false
	}
	p, ok := postings[key]
	return p, ok
}

func containsPosition(positions []int, want int) bool {
	for _, p := range positions {
		if p == want {
			return true
		}
	}
	return false
}
