package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/metrics"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func writeDoc(t *testing.T, dir, name string, doc corpus.Document) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

type fixture struct {
	dir     string
	holder  *corpus.Holder
	handler *Handler
	agg     *analytics.Aggregator
	cache   *cache.QueryCache
	mux     *http.ServeMux
}

func newFixture(t *testing.T, withCache bool, cfg Config) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeDoc(t, dir, "a.json", corpus.Document{FileName: "employment-standards.pdf", Text: "An employer cannot withhold pay for more than a month.", NumPages: 12})
	writeDoc(t, dir, "b.json", corpus.Document{FileName: "police-act.pdf", Text: "Police oversight agencies accept complaints."})

	holder, err := corpus.NewHolder(dir)
	require.NoError(t, err)

	f := &fixture{dir: dir, holder: holder, agg: analytics.NewAggregator()}
	opts := []Option{WithTracker(f.agg), WithMetrics(metrics.New(prometheus.NewRegistry()))}
	if withCache {
		f.cache = cache.New(&memBackend{data: map[string][]byte{}}, time.Minute)
		opts = append(opts, WithCache(f.cache))
	}
	f.handler = New(executor.New(holder, executor.DefaultConfig()), holder, cfg, opts...)
	f.mux = http.NewServeMux()
	f.handler.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) executor.SearchResult {
	t.Helper()
	var res executor.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestSearchQuotedPhrase(t *testing.T) {
	f := newFixture(t, false, Config{MaxResults: 10})
	rec := f.do(t, http.MethodGet, `/api/v1/search?q=%22withhold+pay%22`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	res := decodeResult(t, rec)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "employment-standards.pdf", res.Results[0].FileName)
	assert.Equal(t, "An employer cannot withhold pay for more than a month.", res.Results[0].Snippet)
	assert.Equal(t, 20, res.Results[0].Score)
	assert.Equal(t, 12, res.Results[0].NumPages)

	s := f.agg.Stats()
	assert.Equal(t, int64(1), s.TotalSearches)
	assert.Equal(t, "employment-standards.pdf", s.TopDocuments[0].Query)
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t, true, Config{})
	for _, target := range []string{"/api/v1/search", "/api/v1/search?q=+++"} {
		rec := f.do(t, http.MethodGet, target)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeResult(t, rec)
		require.NotNil(t, res.Results)
		assert.Empty(t, res.Results)
	}
	assert.Equal(t, int64(2), f.agg.Stats().EmptyQueryCount)
	assert.Zero(t, f.cache.Stats().Total)
}

func TestSearchNoMatch(t *testing.T) {
	f := newFixture(t, false, Config{})
	rec := f.do(t, http.MethodGet, "/api/v1/search?q=spaceship")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeResult(t, rec).Results)
	assert.Equal(t, int64(1), f.agg.Stats().ZeroResultCount)
}

func TestSearchInvalidLimit(t *testing.T) {
	f := newFixture(t, false, Config{})
	for _, limit := range []string{"0", "-3", "ten"} {
		rec := f.do(t, http.MethodGet, "/api/v1/search?q=police&limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
		assert.Contains(t, rec.Body.String(), "limit must be a positive integer")
	}
}

func TestSearchLimitCappedByMaxResults(t *testing.T) {
	f := newFixture(t, false, Config{MaxResults: 2})
	writeDoc(t, f.dir, "c.json", corpus.Document{FileName: "tenancy.pdf", Text: "Rent increases need three months notice."})
	writeDoc(t, f.dir, "d.json", corpus.Document{FileName: "rent.pdf", Text: "Rent is due monthly."})
	writeDoc(t, f.dir, "e.json", corpus.Document{FileName: "deposit.pdf", Text: "Tenants pay rent."})
	_, err := f.handler.Reload(context.Background(), "test")
	require.NoError(t, err)

	res := decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=rent&limit=50"))
	assert.Len(t, res.Results, 2)

	res = decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=rent"))
	assert.Len(t, res.Results, 1)
	assert.Equal(t, "tenancy.pdf", res.Results[0].FileName)
}

func TestSearchServedFromCache(t *testing.T) {
	f := newFixture(t, true, Config{})
	rec := f.do(t, http.MethodGet, "/api/v1/search?q=police")
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))
	first := decodeResult(t, rec)
	rec = f.do(t, http.MethodGet, "/api/v1/search?q=police")
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	second := decodeResult(t, rec)
	assert.Equal(t, first, second)

	rec = f.do(t, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	s := f.agg.Stats()
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.CacheMisses)

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":1`)
}

func TestCacheEndpointsDisabled(t *testing.T) {
	f := newFixture(t, false, Config{})
	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReloadPicksUpNewDocuments(t *testing.T) {
	f := newFixture(t, true, Config{})
	assert.Empty(t, decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=tenancy")).Results)

	writeDoc(t, f.dir, "c.json", corpus.Document{FileName: "tenancy.pdf", Text: "The tenancy ends on notice."})
	rec := f.do(t, http.MethodPost, "/api/v1/corpus/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Documents  int    `json:"documents"`
		Generation uint64 `json:"generation"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body.Documents)
	assert.Equal(t, uint64(2), body.Generation)

	res := decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=tenancy"))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "tenancy.pdf", res.Results[0].FileName)
	assert.Equal(t, int64(1), f.agg.Stats().CorpusReloads)
}

func TestReloadFailureKeepsCorpus(t *testing.T) {
	f := newFixture(t, false, Config{})
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "broken.json"), []byte(`{"fileName": 3`), 0o644))

	rec := f.do(t, http.MethodPost, "/api/v1/corpus/reload")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "previous corpus still serving")
	assert.Equal(t, 2, f.holder.Current().Len())
	assert.Equal(t, uint64(1), f.holder.Generation())
	assert.Equal(t, int64(1), f.agg.Stats().FailedReloads)

	res := decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?q=police"))
	assert.Len(t, res.Results, 1)
}

func TestReloadMessageHandler(t *testing.T) {
	f := newFixture(t, false, Config{})
	writeDoc(t, f.dir, "c.json", corpus.Document{FileName: "c.pdf", Text: "Something new."})

	h := f.handler.ReloadMessageHandler()
	require.NoError(t, h(context.Background(), nil, []byte(`{"reason":"gazette update"}`)))
	assert.Equal(t, 3, f.holder.Current().Len())

	require.NoError(t, h(context.Background(), nil, []byte(`garbage`)))
	assert.Equal(t, uint64(3), f.holder.Generation())
}

func TestCorpusInfo(t *testing.T) {
	f := newFixture(t, false, Config{})
	rec := f.do(t, http.MethodGet, "/api/v1/corpus")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, f.dir, body["dir"])
	assert.Equal(t, float64(2), body["documents"])
	assert.NotEmpty(t, body["loaded_at"])
}

type blockingSearcher struct{}

func (blockingSearcher) SearchWithPolicy(ctx context.Context, _ string, _ ranker.Policy) (*executor.SearchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSearcher) Policy() ranker.Policy { return ranker.Policy{TopN: 1} }

func TestSearchTimeout(t *testing.T) {
	holder := corpus.NewStaticHolder(corpus.New())
	agg := analytics.NewAggregator()
	h := New(blockingSearcher{}, holder, Config{Timeout: 20 * time.Millisecond}, WithTracker(agg))

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=police", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, int64(1), agg.Stats().TimeoutCount)
}
