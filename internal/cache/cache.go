// Package cache provides a Redis-backed cache for search results, keyed on
// the normalized query and filters. Concurrent identical lookups collapse
// through singleflight, and any index mutation invalidates the whole
// namespace.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/memoslot/memoslot/internal/search"
	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/pkg/config"
	pkgredis "github.com/memoslot/memoslot/pkg/redis"
)

const keyPrefix = "memoslot:search:"

// SearchCache caches ranked result lists in Redis.
type SearchCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a SearchCache over a connected Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *SearchCache {
	return &SearchCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "search-cache"),
	}
}

// Get returns the cached results for the query/filters pair, if present.
func (c *SearchCache) Get(ctx context.Context, query string, filters search.Filters) ([]search.Result, bool) {
	key := c.buildKey(query, filters)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var results []search.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return results, true
}

// Set stores the results with the configured TTL.
func (c *SearchCache) Set(ctx context.Context, query string, filters search.Filters, results []search.Result) {
	key := c.buildKey(query, filters)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results or computes and stores them, collapsing
// concurrent identical requests into a single computation.
func (c *SearchCache) GetOrCompute(
	ctx context.Context,
	query string,
	filters search.Filters,
	computeFn func() ([]search.Result, error),
) ([]search.Result, bool, error) {
	if results, ok := c.Get(ctx, query, filters); ok {
		return results, true, nil
	}
	key := c.buildKey(query, filters)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.Get(ctx, query, filters); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, filters, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]search.Result), false, nil
}

// Invalidate drops every cached search result. Called whenever the index
// mutates so stale rankings are never served.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("search cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns lifetime hit and miss counts.
func (c *SearchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *SearchCache) buildKey(query string, filters search.Filters) string {
	include := slot.NormalizeTags(filters.IncludeTags)
	exclude := slot.NormalizeTags(filters.ExcludeTags)
	raw := fmt.Sprintf("%s|inc=%s|exc=%s|limit=%d|cs=%t",
		normalizeQuery(query),
		strings.Join(include, ","),
		strings.Join(exclude, ","),
		filters.MaxResults,
		filters.CaseSensitive,
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery canonicalises whitespace and keyword case so equivalent
// spellings share a cache entry. Quoted phrases are preserved verbatim.
func normalizeQuery(query string) string {
	fields := strings.Fields(query)
	parts := make([]string, 0, len(fields))
	inPhrase := false
	for _, f := range fields {
		switch strings.ToUpper(f) {
		case "AND", "OR", "NOT":
			if !inPhrase {
				parts = append(parts, strings.ToUpper(f))
				continue
			}
		}
		if strings.Count(f, `"`)%2 == 1 {
			inPhrase = !inPhrase
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}
