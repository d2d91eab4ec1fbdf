// Package cache keeps search responses in Redis. Keys include the corpus
// generation, so a reload makes every earlier entry unreachable even before
// Invalidate sweeps it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/executor"
	pkgredis "github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/redis"
)

const keyPrefix = "govdoc:search:"

// Backend is the key-value store behind the cache. *pkgredis.Client
// satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cacheable response.
type Key struct {
	Query      string
	Limit      int
	MinScore   int
	Generation uint64
}

// String hashes the key fields into a Redis key. Surrounding whitespace in
// the query is ignored; inner whitespace is kept because quoted phrases
// match it literally.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(k.Query))
	b.WriteString("\x00limit=")
	b.WriteString(strconv.Itoa(k.Limit))
	b.WriteString("\x00min=")
	b.WriteString(strconv.Itoa(k.MinScore))
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%sg%d:%s", keyPrefix, k.Generation, hex.EncodeToString(sum[:16]))
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached response for key. Backend failures count as misses.
func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := key.String()
	data, err := c.backend.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", k, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("cache entry unreadable", "key", k, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := key.String()
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.backend.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute serves key from the cache or runs compute once for all
// concurrent callers asking for the same key. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached response and returns the number removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.DeleteMatching(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats is a point-in-time view of the hit counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hitRate"`
}

func (c *QueryCache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}
