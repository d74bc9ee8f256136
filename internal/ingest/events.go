// Package ingest consumes slot mutation events and applies them to the
// engine and the slot store, keeping the index synchronised with writes
// originating outside the daemon.
package ingest

import (
	"time"

	"github.com/memoslot/memoslot/internal/slot"
)

// MutationType discriminates the payloads on the mutations topic.
type MutationType string

const (
	MutationEntrySaved   MutationType = "entry-saved"
	MutationEntryRemoved MutationType = "entry-removed"
	MutationSlotsDeleted MutationType = "slots-deleted"
)

// EntryPayload is the wire form of a saved entry.
type EntryPayload struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
	Seq       int               `json:"seq"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Mutation is one event on the mutations topic. Exactly the fields that
// match Type are populated.
type Mutation struct {
	Type    MutationType  `json:"type"`
	Slot    string        `json:"slot,omitempty"`
	Entry   *EntryPayload `json:"entry,omitempty"`
	EntryID string        `json:"entry_id,omitempty"`
	Slots   []string      `json:"slots,omitempty"`
}

func (p *EntryPayload) toEntry() slot.Entry {
	kind := slot.Kind(p.Kind)
	switch kind {
	case slot.KindDirectSave, slot.KindSummary, slot.KindImported, slot.KindMergeResult:
	default:
		kind = slot.KindDirectSave
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return slot.Entry{
		ID:        p.ID,
		Kind:      kind,
		Text:      p.Text,
		CreatedAt: created,
		Seq:       p.Seq,
		Meta:      p.Meta,
	}
}
