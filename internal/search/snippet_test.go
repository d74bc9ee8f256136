package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchedSet(terms ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		set[term] = struct{}{}
	}
	return set
}

func TestBuildSnippetHighlightsMatch(t *testing.T) {
	text := "Discussed pricing strategy for the enterprise tier"
	snippet, spans := buildSnippet(text, matchedSet("pric"), 60)

	assert.Equal(t, text, snippet) // fits entirely inside the radius
	require.Len(t, spans, 1)
	assert.Equal(t, "pricing", snippet[spans[0].Start:spans[0].End])
}

func TestBuildSnippetWindowsLongText(t *testing.T) {
	long := strings.Repeat("filler words before the match ", 20) +
		"pricing appears here" +
		strings.Repeat(" and trailing context afterwards", 20)

	snippet, spans := buildSnippet(long, matchedSet("pric"), 30)

	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.Less(t, len(snippet), len(long))
	require.NotEmpty(t, spans)
	assert.Equal(t, "pricing", snippet[spans[0].Start:spans[0].End])
}

func TestBuildSnippetNoMatchClipsLeading(t *testing.T) {
	long := strings.Repeat("unmatched content here ", 30)
	snippet, spans := buildSnippet(long, matchedSet("absent"), 40)

	assert.Empty(t, spans)
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.LessOrEqual(t, len(snippet), 80+len("..."))
}

func TestBuildSnippetMultipleHitsInWindow(t *testing.T) {
	text := "pricing notes compare pricing tiers"
	snippet, spans := buildSnippet(text, matchedSet("pric"), 60)

	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "pricing", snippet[span.Start:span.End])
	}
}
