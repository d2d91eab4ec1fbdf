package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	EmptyQueryCount   int64        `json:"empty_query_count"`
	ErrorCount        int64        `json:"error_count"`
	TimeoutCount      int64        `json:"timeout_count"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	AvgTopScore       float64      `json:"avg_top_score"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopDocuments      []QueryCount `json:"top_documents"`
	CorpusReloads     int64        `json:"corpus_reloads"`
	FailedReloads     int64        `json:"failed_reloads"`
	CorpusDocuments   int          `json:"corpus_documents"`
	LastReload        *time.Time   `json:"last_reload,omitempty"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

// QueryCount pairs a key (a query or a file name) with how often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running statistics. It is safe for
// concurrent use and implements Tracker for in-process delivery.
type Aggregator struct {
	mu          sync.Mutex
	stats       AggregatedStats
	latencies   []float64
	next        int
	scoreSum    int64
	scored      int64
	queries     map[string]int64
	zeroQueries map[string]int64
	documents   map[string]int64
	started     time.Time
	now         func() time.Time
	logger      *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]float64, 0, 256),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		documents:   make(map[string]int64),
		started:     time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records e immediately.
func (a *Aggregator) Track(e Event) {
	a.Record(e)
}

// Record folds one event into the running stats.
func (a *Aggregator) Record(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Type {
	case EventCorpusReload:
		a.stats.CorpusReloads++
		a.stats.CorpusDocuments = e.Documents
		ts := e.Timestamp
		a.stats.LastReload = &ts
		return
	case EventReloadFailed:
		a.stats.FailedReloads++
		return
	}
	if !e.IsSearch() {
		a.logger.Debug("ignoring unknown event type", "type", e.Type)
		return
	}

	a.stats.TotalSearches++
	a.addLatency(e.LatencyMs)
	switch e.Type {
	case EventEmptyQuery:
		a.stats.EmptyQueryCount++
		return
	case EventSearchError:
		a.stats.ErrorCount++
		return
	case EventSearchTimeout:
		a.stats.TimeoutCount++
		return
	}

	if e.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	q := normalizeQuery(e.Query)
	a.queries[q]++
	if e.Type == EventZeroResult || e.Returned == 0 {
		a.stats.ZeroResultCount++
		a.zeroQueries[q]++
		return
	}
	a.scoreSum += int64(e.TopScore)
	a.scored++
	if e.TopFile != "" {
		a.documents[e.TopFile]++
	}
}

func (a *Aggregator) addLatency(ms float64) {
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.next] = ms
	a.next = (a.next + 1) % latencyWindow
}

// HandleMessage decodes a Kafka message into an Event and records it.
// Undecodable messages are logged and committed.
func (a *Aggregator) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		e, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			a.logger.Warn("dropping undecodable analytics event", "error", err)
			return nil
		}
		if e.Type == "" {
			a.logger.Warn("dropping analytics event without type")
			return nil
		}
		a.Record(e)
		return nil
	}
}

// Stats returns a snapshot of the running statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats
	if s.LastReload != nil {
		ts := *s.LastReload
		s.LastReload = &ts
	}
	if n := len(a.latencies); n > 0 {
		sorted := make([]float64, n)
		copy(sorted, a.latencies)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		s.AvgLatencyMs = sum / float64(n)
		s.P50LatencyMs = percentile(sorted, 50)
		s.P95LatencyMs = percentile(sorted, 95)
		s.P99LatencyMs = percentile(sorted, 99)
	}
	if a.scored > 0 {
		s.AvgTopScore = float64(a.scoreSum) / float64(a.scored)
	}
	s.TopQueries = topCounts(a.queries, 10)
	s.ZeroResultQueries = topCounts(a.zeroQueries, 10)
	s.TopDocuments = topCounts(a.documents, 10)
	if elapsed := a.now().Sub(a.started).Minutes(); elapsed > 0 {
		s.QueriesPerMinute = float64(s.TotalSearches) / elapsed
	}
	return s
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topCounts returns the n most frequent keys, ties broken alphabetically.
func topCounts(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, QueryCount{Query: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
