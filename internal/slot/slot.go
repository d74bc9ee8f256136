// Package slot defines the in-memory model for named content containers and
// their timestamped entries, as delivered by the storage collaborator.
package slot

import (
	"sort"
	"strings"
	"time"
)

// Kind classifies how an entry's content came to exist. The set is closed:
// formatting logic downstream handles every value exhaustively.
type Kind string

const (
	KindDirectSave  Kind = "direct-save"
	KindSummary     Kind = "summary"
	KindImported    Kind = "imported"
	KindMergeResult Kind = "merge-result"
)

// Entry is one immutable unit of stored content within a slot.
type Entry struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
	Seq       int               `json:"seq"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Slot is a named container of chronological entries.
type Slot struct {
	Name        string   `json:"name"`
	Tags        []string `json:"tags,omitempty"`
	Group       string   `json:"group,omitempty"`
	Description string   `json:"description,omitempty"`
	Entries     []Entry  `json:"entries"`
}

// NormalizeTag lowercases and trims a tag so tag comparison is
// case-insensitive and order-irrelevant.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags returns the deduplicated, normalized form of tags, sorted for
// reproducible output.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		n := NormalizeTag(tag)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether the slot carries the given tag (normalized compare).
func (s *Slot) HasTag(tag string) bool {
	n := NormalizeTag(tag)
	for _, t := range s.Tags {
		if NormalizeTag(t) == n {
			return true
		}
	}
	return false
}

// Entry returns the entry with the given ID, or nil.
func (s *Slot) Entry(id string) *Entry {
	for i := range s.Entries {
		if s.Entries[i].ID == id {
			return &s.Entries[i]
		}
	}
	return nil
}

// SortChronological orders entries by timestamp ascending, with the insertion
// sequence as a stable tiebreak. It never reorders equal (timestamp, seq)
// pairs, so the ordering is reproducible.
func SortChronological(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})
}

// Clone returns a deep copy of the slot, safe to mutate independently.
func (s *Slot) Clone() *Slot {
	out := &Slot{
		Name:        s.Name,
		Group:       s.Group,
		Description: s.Description,
		Tags:        append([]string(nil), s.Tags...),
		Entries:     make([]Entry, len(s.Entries)),
	}
	copy(out.Entries, s.Entries)
	for i := range out.Entries {
		if s.Entries[i].Meta != nil {
			meta := make(map[string]string, len(s.Entries[i].Meta))
			for k, v := range s.Entries[i].Meta {
				meta[k] = v
			}
			out.Entries[i].Meta = meta
		}
	}
	return out
}
