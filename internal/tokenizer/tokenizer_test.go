package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeLowercasesAndStems(t *testing.T) {
	tokens := Tokenize("Discussed the Pricing strategy", false)

	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	assert.Equal(t, []string{"discuss", "pric", "strategy"}, terms)
}

func TestTokenizePositionsCountSurvivors(t *testing.T) {
	// "the" is a stop word; surviving tokens renumber from zero.
	tokens := Tokenize("alpha the beta gamma", false)

	assert.Len(t, tokens, 3)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestTokenizeDropsStopWordsAndShortWords(t *testing.T) {
	tokens := Tokenize("a i of to x alpha", false)

	assert.Len(t, tokens, 1)
	assert.Equal(t, "alpha", tokens[0].Term)
}

func TestTokenizeCaseSensitivePreservesCase(t *testing.T) {
	terms := Terms("API Design notes", true)

	assert.Contains(t, terms, "API")
	assert.Contains(t, terms, "Design")
}

func TestTokenizeEmptyInput(t *testing.T) {
	assert.Empty(t, Tokenize("", false))
	assert.Empty(t, Tokenize("   \t\n", false))
	assert.Empty(t, Tokenize("!!! ... ???", false))
}

func TestTokenizeSplitsOnPunctuation(t *testing.T) {
	terms := Terms("budget,numbers;quarterly-review", false)

	assert.Equal(t, []string{"budget", "number", "quarter", "review"}, terms)
}

func TestStemRules(t *testing.T) {
	cases := map[string]string{
		"searching":  "search",
		"archived":   "archiv",
		"meetings":   "meeting",
		"numbers":    "number",
		"quarterly":  "quarter",
		"discuss":    "discuss",
		"relational": "relate",
		"policies":   "policy",
	}
	for word, want := range cases {
		got := Terms(word, false)
		assert.Equal(t, []string{want}, got, "stem of %q", word)
	}
}

func TestTermSetDeduplicates(t *testing.T) {
	set := TermSet("pricing pricing pricing model", false)

	assert.Len(t, set, 2)
	assert.Contains(t, set, "pric")
	assert.Contains(t, set, "model")
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("The"))
	assert.False(t, IsStopWord("pricing"))
}
