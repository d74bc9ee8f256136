package search

import (
	"strings"
	"unicode"

	"github.com/memoslot/memoslot/internal/tokenizer"
)

type wordSpan struct {
	start, end int
	term       string
}

// buildSnippet renders a context window around the first matched term, with
// highlight spans for every match inside the window. Offsets are byte
// positions within the returned snippet. When nothing matches (e.g. the
// entry was selected by a NOT branch), the leading slice of the text is
// returned with no highlights.
func buildSnippet(text string, matched map[string]struct{}, radius int) (string, []Span) {
	words := scanWords(text)

	var hits []wordSpan
	for _, w := range words {
		if _, ok := matched[w.term]; ok {
			hits = append(hits, w)
		}
	}

	if len(hits) == 0 {
		return clipLeading(text, 2*radius), nil
	}

	start := hits[0].start - radius
	if start < 0 {
		start = 0
	}
	end := hits[0].end + radius
	if end > len(text) {
		end = len(text)
	}
	start = alignRuneStart(text, start)
	end = alignRuneStart(text, end)

	prefix := ""
	if start > 0 {
		prefix = "..."
	}
	suffix := ""
	if end < len(text) {
		suffix = "..."
	}
	snippet := prefix + text[start:end] + suffix

	spans := make([]Span, 0, len(hits))
	for _, h := range hits {
		if h.start < start || h.end > end {
			continue
		}
		spans = append(spans, Span{
			Start: h.start - start + len(prefix),
			End:   h.end - start + len(prefix),
		})
	}
	return snippet, spans
}

// scanWords yields each alphanumeric run in text with its byte range and
// case-folded stem.
func scanWords(text string) []wordSpan {
	words := make([]wordSpan, 0, 16)
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = appendWord(words, text, start, i)
			start = -1
		}
	}
	if start >= 0 {
		words = appendWord(words, text, start, len(text))
	}
	return words
}

func appendWord(words []wordSpan, text string, start, end int) []wordSpan {
	terms := tokenizer.Terms(text[start:end], false)
	if len(terms) == 0 {
		return words
	}
	return append(words, wordSpan{start: start, end: end, term: terms[0]})
}

func clipLeading(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	end := alignRuneStart(text, limit)
	return text[:end] + "..."
}

// alignRuneStart moves pos back to the nearest rune boundary.
func alignRuneStart(text string, pos int) int {
	for pos > 0 && pos < len(text) && (text[pos]&0xC0) == 0x80 {
		pos--
	}
	return pos
}
