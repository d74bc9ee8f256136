package index

// EntryKey identifies an entry across all slots.
type EntryKey struct {
	Slot  string
	Entry string
}

// Posting records one entry's occurrences of a term: the term frequency
// within the entry and the token positions at which the term appears.
// Postings are owned exclusively by the Index and never escape it by
// reference.
type Posting struct {
	Key       EntryKey
	Frequency int
	Positions []int
}

// PostingList is a sorted sequence of postings for one term.
type PostingList []Posting

// TermRecord is a term's posting list together with its corpus-wide document
// frequency (the number of distinct entries containing the term).
type TermRecord struct {
	Term     string
	Postings PostingList
	DocFreq  int
}
