// Package tokenizer provides text tokenisation for the knowledge engine.
// It lower-cases input (unless case-sensitive mode is requested), splits on
// non-alphanumeric boundaries, removes stop-words, and applies a simple
// suffix-based stemmer.
//
// Every component that compares terms — indexing, query evaluation, and
// merge similarity scoring — goes through Tokenize, so index terms and query
// terms are always comparable.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "we": {}, "if": {}, "each": {},
	"do": {}, "did": {}, "so": {}, "can": {}, "about": {},
}

// Token represents a single normalised term and its position in the
// original text. Position counts surviving tokens, not bytes.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into a slice of stemmed Tokens with stop-words
// removed. When caseSensitive is false the input is lower-cased first.
// It is total: any input yields a (possibly empty) token slice.
func Tokenize(text string, caseSensitive bool) []Token {
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[strings.ToLower(word)]; isStop {
			continue
		}
		stemmed := stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns just the term strings from Tokenize, preserving order.
func Terms(text string, caseSensitive bool) []string {
	tokens := Tokenize(text, caseSensitive)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// TermSet returns the distinct term set of text.
func TermSet(text string, caseSensitive bool) map[string]struct{} {
	tokens := Tokenize(text, caseSensitive)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok.Term] = struct{}{}
	}
	return set
}

// IsStopWord reports whether word is on the fixed stop-word list.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

// stem applies a simple suffix-stripping stemmer to the given word. Rules are
// ordered longest-suffix first; the first applicable rule wins.
func stem(word string) string {
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"eness", "ene", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ling", "l", 3},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"est", "", 3},
		{"ful", "", 3},
		{"ous", "", 3},
		{"ess", "", 3},
		{"ble", "", 3},
		{"ed", "", 3},
		{"er", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
