package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/ranker"
)

type memBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemBackend() *memBackend { return &memBackend{data: map[string][]byte{}} }

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) DeleteMatching(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult(q string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:   q,
		Results: []ranker.Result{{FileName: "act.json", Snippet: "Wages shall be paid.", Score: 10}},
	}
}

func TestKeyString(t *testing.T) {
	base := Key{Query: "minimum wage", Limit: 1, Generation: 1}
	assert.Equal(t, base.String(), Key{Query: "  minimum wage ", Limit: 1, Generation: 1}.String())
	assert.NotEqual(t, base.String(), Key{Query: "minimum  wage", Limit: 1, Generation: 1}.String())
	assert.NotEqual(t, base.String(), Key{Query: "minimum wage", Limit: 2, Generation: 1}.String())
	assert.NotEqual(t, base.String(), Key{Query: "minimum wage", Limit: 1, Generation: 2}.String())
	assert.NotEqual(t, base.String(), Key{Query: "minimum wage", Limit: 1, MinScore: 5, Generation: 1}.String())
	assert.Contains(t, base.String(), keyPrefix)
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(newMemBackend(), time.Minute)
	key := Key{Query: "wage", Limit: 1, Generation: 1}
	calls := 0
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls++
		return sampleResult("wage"), nil
	}

	res, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "act.json", res.Results[0].FileName)

	res, hit, err = c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Wages shall be paid.", res.Results[0].Snippet)
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, time.Minute)
	boom := errors.New("scan failed")
	_, _, err := c.GetOrCompute(context.Background(), Key{Query: "x"}, func(context.Context) (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, backend.data)
}

func TestGenerationChangeMisses(t *testing.T) {
	c := New(newMemBackend(), time.Minute)
	c.Set(context.Background(), Key{Query: "wage", Generation: 1}, sampleResult("wage"))

	_, ok := c.Get(context.Background(), Key{Query: "wage", Generation: 2})
	assert.False(t, ok)
	_, ok = c.Get(context.Background(), Key{Query: "wage", Generation: 1})
	assert.True(t, ok)
}

func TestBackendErrorIsMiss(t *testing.T) {
	backend := newMemBackend()
	backend.getErr = errors.New("connection refused")
	c := New(backend, time.Minute)
	_, ok := c.Get(context.Background(), Key{Query: "wage"})
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	backend.data["unrelated"] = []byte("keep")
	c := New(backend, time.Minute)
	c.Set(context.Background(), Key{Query: "a", Generation: 1}, sampleResult("a"))
	c.Set(context.Background(), Key{Query: "b", Generation: 3}, sampleResult("b"))

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, backend.data, 1)
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMemBackend(), time.Minute)
	key := Key{Query: "leave", Limit: 1, Generation: 1}
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return sampleResult("leave"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}
