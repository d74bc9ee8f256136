package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memoslot/memoslot/internal/search"
)

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "pricing AND notes", normalizeQuery("pricing   and\tnotes"))
	assert.Equal(t, "alpha OR NOT beta", normalizeQuery("alpha or not beta"))
	// Keywords inside phrases are content, not operators.
	assert.Equal(t, `"alpha and beta" gamma`, normalizeQuery(`"alpha and beta"   gamma`))
}

func TestBuildKeyIsStableAcrossEquivalentSpellings(t *testing.T) {
	c := &SearchCache{}

	a := c.buildKey("pricing and notes", search.Filters{IncludeTags: []string{"Work", "meeting"}})
	b := c.buildKey("pricing  AND notes", search.Filters{IncludeTags: []string{"meeting", "work"}})
	assert.Equal(t, a, b)
}

func TestBuildKeyDistinguishesFilters(t *testing.T) {
	c := &SearchCache{}

	base := c.buildKey("pricing", search.Filters{})
	assert.NotEqual(t, base, c.buildKey("pricing", search.Filters{MaxResults: 5}))
	assert.NotEqual(t, base, c.buildKey("pricing", search.Filters{CaseSensitive: true}))
	assert.NotEqual(t, base, c.buildKey("pricing", search.Filters{ExcludeTags: []string{"archive"}}))
	assert.NotEqual(t, base, c.buildKey("notes", search.Filters{}))
}
