// Package nlq answers free-form natural-language questions against the
// knowledge store. It classifies the question, extracts temporal constraints
// and key terms, delegates retrieval to the boolean query engine as a broad
// OR query, and re-ranks the output with a composite score that favours
// entries tagged with vocabulary adjacent to the question type.
//
// The processor never fabricates content: every result references a
// retrieved entry, and an empty retrieval reports no matches.
package nlq

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/memoslot/memoslot/internal/search"
	"github.com/memoslot/memoslot/internal/search/parser"
	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/internal/tokenizer"
)

// QuestionType is the interrogative class of a question.
type QuestionType string

const (
	QuestionWhat  QuestionType = "what"
	QuestionWho   QuestionType = "who"
	QuestionWhen  QuestionType = "when"
	QuestionWhere QuestionType = "where"
	QuestionWhy   QuestionType = "why"
	QuestionHow   QuestionType = "how"
)

// interrogatives maps leading question words to their type. Questions that
// match nothing are handled as generic "what" questions.
var interrogatives = map[string]QuestionType{
	"what":  QuestionWhat,
	"which": QuestionWhat,
	"who":   QuestionWho,
	"whom":  QuestionWho,
	"when":  QuestionWhen,
	"where": QuestionWhere,
	"why":   QuestionWhy,
	"how":   QuestionHow,
}

// typeVocab lists tag vocabulary adjacent to each question type. Entries in
// slots carrying one of these tags get a composite-score boost.
var typeVocab = map[QuestionType][]string{
	QuestionWhat:  {"decision", "meeting", "note", "summary"},
	QuestionWho:   {"decision", "meeting", "people", "contact"},
	QuestionWhen:  {"meeting", "schedule", "deadline", "event"},
	QuestionWhere: {"location", "place", "travel"},
	QuestionWhy:   {"decision", "rationale", "retrospective"},
	QuestionHow:   {"process", "guide", "howto", "runbook"},
}

// composite score blend: retrieval relevance dominates, tag adjacency
// nudges.
const (
	baseWeight = 0.75
	tagWeight  = 0.25
)

// Processor answers questions using the boolean query engine for retrieval.
type Processor struct {
	eval   *search.Evaluator
	now    func() time.Time
	logger *slog.Logger
}

// NewProcessor creates a Processor over the given evaluator.
func NewProcessor(eval *search.Evaluator) *Processor {
	return &Processor{
		eval:   eval,
		now:    time.Now,
		logger: slog.Default().With("component", "question-processor"),
	}
}

// WithClock overrides the processor's time source, for tests.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Classify returns the question's interrogative type based on its leading
// word. Unclassified questions default to "what".
func Classify(question string) QuestionType {
	fields := strings.Fields(strings.ToLower(question))
	if len(fields) == 0 {
		return QuestionWhat
	}
	lead := strings.Trim(fields[0], ",.?!'\"")
	if qt, ok := interrogatives[lead]; ok {
		return qt
	}
	return QuestionWhat
}

// KeyTerms extracts the retrieval term set from a question: stop words,
// interrogatives, and consumed temporal vocabulary are dropped.
func KeyTerms(question string) []string {
	words := strings.Fields(question)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		trimmed := strings.Trim(word, ",.?!;:'\"")
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if _, ok := interrogatives[lower]; ok {
			continue
		}
		if isTemporalWord(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	terms := tokenizer.Terms(strings.Join(kept, " "), false)
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// Answer retrieves and ranks supporting entries for question. Retrieval runs
// over the full corpus first; the temporal window (when one was recognised)
// is applied afterwards, so an unparsed phrase degrades to no filter.
func (p *Processor) Answer(question string, maxResults int) ([]search.Result, QuestionType, error) {
	qtype := Classify(question)
	window, hasWindow := ExtractTimeRange(question, p.now())
	terms := KeyTerms(question)

	p.logger.Debug("question analysed",
		"question", question,
		"type", string(qtype),
		"terms", terms,
		"temporal_filter", hasWindow,
	)

	if len(terms) == 0 {
		return []search.Result{}, qtype, nil
	}

	// Broad recall: implicit OR over every key term, unbounded so the
	// re-rank sees the full candidate set.
	root := orTree(terms)
	results, err := p.eval.EvaluateTree(root, search.Filters{})
	if err != nil {
		return nil, qtype, err
	}

	if hasWindow {
		filtered := results[:0]
		for _, r := range results {
			if window.Contains(r.CreatedAt) {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	rescore(results, qtype)

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, qtype, nil
}

// rescore blends retrieval relevance with type-adjacent tag affinity and
// re-sorts.
func rescore(results []search.Result, qtype QuestionType) {
	vocab := typeVocab[qtype]
	for i := range results {
		boost := 0.0
		for _, tag := range results[i].Tags {
			if vocabContains(vocab, tag) {
				boost = 1.0
				break
			}
		}
		results[i].Score = baseWeight*results[i].Score + tagWeight*boost
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
}

func vocabContains(vocab []string, tag string) bool {
	normalized := slot.NormalizeTag(tag)
	for _, v := range vocab {
		if v == normalized {
			return true
		}
	}
	return false
}

func orTree(terms []string) parser.Node {
	var root parser.Node
	for _, term := range terms {
		leaf := &parser.Term{Raw: term}
		if root == nil {
			root = leaf
		} else {
			root = &parser.Or{Left: root, Right: leaf}
		}
	}
	return root
}
