package search

import (
	"time"

	"github.com/memoslot/memoslot/internal/slot"
)

// Span is a highlighted byte range within a snippet.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is one ranked search hit with display context.
type Result struct {
	Slot         string    `json:"slot"`
	EntryID      string    `json:"entry_id"`
	Score        float64   `json:"score"`
	Snippet      string    `json:"snippet"`
	Highlights   []Span    `json:"highlights,omitempty"`
	MatchedTerms []string  `json:"matched_terms,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Group        string    `json:"group,omitempty"`
	Kind         slot.Kind `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filters narrows and caps an evaluation's output.
type Filters struct {
	IncludeTags   []string
	ExcludeTags   []string
	MaxResults    int
	CaseSensitive bool
}

// EntryProvider resolves an index key back to its live slot and entry for
// snippet rendering and tag filtering.
type EntryProvider interface {
	Entry(slotName, entryID string) (*slot.Slot, *slot.Entry, bool)
}
