// Package merge consolidates multiple source slots into one target slot,
// dropping near-duplicate entries by tokenized term overlap. Planning is
// pure computation over in-memory slots; persistence and index updates are
// the engine's responsibility.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/internal/tokenizer"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
)

// DefaultThreshold is the similarity at or above which an entry is treated
// as a duplicate when the caller does not specify one.
const DefaultThreshold = 0.8

// Request describes a consolidation of source slots into a target.
type Request struct {
	Sources       []string
	Target        string
	Threshold     float64
	DeleteSources bool
}

// Dropped records one entry discarded as a duplicate and what it duplicated.
type Dropped struct {
	Entry       slot.Entry
	DuplicateOf string
	Similarity  float64
}

// Plan is the computed outcome of a merge before persistence: the entries to
// keep, in chronological order, the duplicates dropped, and the consolidated
// tag set and group path.
type Plan struct {
	Kept    []slot.Entry
	Dropped []Dropped
	Tags    []string
	Group   string
}

// Preview summarises a Plan without mutating any storage.
type Preview struct {
	Sources      []string `json:"sources"`
	Target       string   `json:"target"`
	Threshold    float64  `json:"threshold"`
	KeptCount    int      `json:"kept_count"`
	DroppedCount int      `json:"dropped_count"`
	Tags         []string `json:"tags,omitempty"`
	Group        string   `json:"group,omitempty"`
	Sample       []string `json:"sample,omitempty"`
}

// Outcome reports what an executed merge actually did.
type Outcome struct {
	Target         string   `json:"target"`
	KeptCount      int      `json:"kept_count"`
	DroppedCount   int      `json:"dropped_count"`
	Tags           []string `json:"tags,omitempty"`
	Group          string   `json:"group,omitempty"`
	SourcesDeleted []string `json:"sources_deleted,omitempty"`
}

// Validate checks a merge request against the live slot set. All problems
// that can be reported together are: missing source slots are enumerated in
// one error, not one at a time.
func Validate(req *Request, exists func(name string) bool) error {
	if req.Threshold < 0 || req.Threshold > 1 {
		return apperrors.Newf(apperrors.ErrMergeValidation,
			"similarity threshold must be in [0,1], got %g", req.Threshold)
	}
	if strings.TrimSpace(req.Target) == "" {
		return apperrors.New(apperrors.ErrMergeValidation, "target slot name is required")
	}

	distinct := make([]string, 0, len(req.Sources))
	seen := make(map[string]struct{}, len(req.Sources))
	for _, name := range req.Sources {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		distinct = append(distinct, name)
	}
	if len(distinct) < 2 {
		return apperrors.Newf(apperrors.ErrMergeValidation,
			"at least 2 distinct source slots are required, got %d", len(distinct))
	}

	missing := make([]string, 0)
	for _, name := range distinct {
		if !exists(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperrors.Newf(apperrors.ErrMergeValidation,
			"source slots not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

// BuildPlan orders all source entries chronologically (stable, insertion
// sequence as tiebreak) and greedily accepts them: an entry whose maximum
// similarity against any already-accepted entry meets or exceeds the
// threshold is dropped as a duplicate, so the first-seen copy always wins.
func BuildPlan(sources []*slot.Slot, threshold float64) *Plan {
	type sourced struct {
		entry slot.Entry
		from  string
	}
	all := make([]sourced, 0)
	for _, s := range sources {
		for _, e := range s.Entries {
			all = append(all, sourced{entry: e, from: s.Name})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].entry.CreatedAt.Equal(all[j].entry.CreatedAt) {
			return all[i].entry.CreatedAt.Before(all[j].entry.CreatedAt)
		}
		return all[i].entry.Seq < all[j].entry.Seq
	})

	plan := &Plan{
		Kept:    make([]slot.Entry, 0, len(all)),
		Dropped: make([]Dropped, 0),
	}

	type accepted struct {
		id    string
		text  string
		terms map[string]struct{}
	}
	kept := make([]accepted, 0, len(all))

	usedIDs := make(map[string]struct{})
	for _, item := range all {
		terms := tokenizer.TermSet(item.entry.Text, false)

		bestSim := 0.0
		bestID := ""
		duplicate := false
		for _, prior := range kept {
			sim := jaccard(terms, prior.terms, item.entry.Text, prior.text)
			if sim > bestSim {
				bestSim = sim
				bestID = prior.id
			}
			if sim >= threshold {
				// At threshold 1.0 only byte-identical content is a
				// duplicate: distinct texts can share a term set.
				if threshold < 1 || item.entry.Text == prior.text {
					duplicate = true
					bestSim = sim
					bestID = prior.id
					break
				}
			}
		}
		if duplicate {
			plan.Dropped = append(plan.Dropped, Dropped{
				Entry:       item.entry,
				DuplicateOf: bestID,
				Similarity:  bestSim,
			})
			continue
		}

		e := item.entry
		if _, collision := usedIDs[e.ID]; collision || e.ID == "" {
			e.ID = uuid.NewString()
		}
		usedIDs[e.ID] = struct{}{}
		e.Seq = len(plan.Kept)
		if e.Meta == nil {
			e.Meta = make(map[string]string, 1)
		}
		e.Meta["merged_from"] = item.from
		plan.Kept = append(plan.Kept, e)
		kept = append(kept, accepted{id: e.ID, text: item.entry.Text, terms: terms})
	}

	tags := make([]string, 0)
	for _, s := range sources {
		tags = append(tags, s.Tags...)
	}
	plan.Tags = slot.NormalizeTags(tags)
	for _, s := range sources {
		if s.Group != "" {
			plan.Group = s.Group
			break
		}
	}
	return plan
}

// BuildPreview renders a Plan as a non-mutating summary with a truncated
// content sample.
func BuildPreview(req *Request, plan *Plan, sampleSize int) *Preview {
	if sampleSize <= 0 {
		sampleSize = 3
	}
	sample := make([]string, 0, sampleSize)
	for _, e := range plan.Kept {
		if len(sample) == sampleSize {
			break
		}
		sample = append(sample, truncate(e.Text, 120))
	}
	return &Preview{
		Sources:      append([]string(nil), req.Sources...),
		Target:       req.Target,
		Threshold:    req.Threshold,
		KeptCount:    len(plan.Kept),
		DroppedCount: len(plan.Dropped),
		Tags:         plan.Tags,
		Group:        plan.Group,
		Sample:       sample,
	}
}

// TargetSlot materialises the plan as the consolidated target slot.
func TargetSlot(req *Request, plan *Plan, sources []*slot.Slot) *slot.Slot {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name)
	}
	return &slot.Slot{
		Name:        req.Target,
		Tags:        plan.Tags,
		Group:       plan.Group,
		Description: fmt.Sprintf("Merged from %s", strings.Join(names, ", ")),
		Entries:     plan.Kept,
	}
}

// Similarity computes the normalized term-overlap (Jaccard) coefficient of
// two texts over the shared tokenizer's output.
func Similarity(a, b string) float64 {
	return jaccard(tokenizer.TermSet(a, false), tokenizer.TermSet(b, false), a, b)
}

func jaccard(a, b map[string]struct{}, textA, textB string) float64 {
	if len(a) == 0 && len(b) == 0 {
		if textA == textB {
			return 1
		}
		return 0
	}
	shared := 0
	for term := range a {
		if _, ok := b[term]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && (text[cut]&0xC0) == 0x80 {
		cut--
	}
	return text[:cut] + "..."
}
