// Package handler serves the search, corpus and cache endpoints of the
// search service.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/analyzer"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/tracing"
)

// Searcher runs a query under a ranking policy.
type Searcher interface {
	SearchWithPolicy(ctx context.Context, query string, p ranker.Policy) (*executor.SearchResult, error)
	Policy() ranker.Policy
}

// Corpus is the reloadable document set behind the searcher.
type Corpus interface {
	Current() *corpus.Store
	Generation() uint64
	Reload(ctx context.Context) (*corpus.Store, error)
}

type Config struct {
	// MaxResults caps the limit query parameter. Zero means no cap.
	MaxResults int
	// Timeout bounds a single search. Zero means unbounded.
	Timeout time.Duration
}

type Handler struct {
	searcher Searcher
	corpus   Corpus
	cfg      Config
	cache    *cache.QueryCache
	tracker  analytics.Tracker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Handler)

// WithCache serves repeated queries from c.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithTracker sends one analytics event per search and reload.
func WithTracker(t analytics.Tracker) Option {
	return func(h *Handler) {
		if t != nil {
			h.tracker = t
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(s Searcher, c Corpus, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		searcher: s,
		corpus:   c,
		cfg:      cfg,
		tracker:  analytics.Discard{},
		logger:   slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics != nil {
		h.metrics.CorpusDocuments.Set(float64(c.Current().Len()))
	}
	return h
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/corpus", h.CorpusInfo)
	mux.HandleFunc("POST /api/v1/corpus/reload", h.ReloadCorpus)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=...&limit=N. A query with no usable
// terms answers 200 with an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()
	query := r.URL.Query().Get("q")

	policy := h.searcher.Policy()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		if h.cfg.MaxResults > 0 && limit > h.cfg.MaxResults {
			limit = h.cfg.MaxResults
		}
		policy.TopN = limit
	}

	event := analytics.Event{
		Timestamp: start.UTC(),
		RequestID: middleware.GetRequestID(ctx),
		Query:     query,
	}

	if analyzer.Analyze(query).Empty() {
		event.Type = analytics.EventEmptyQuery
		h.finishSearch(event, metrics.ResultEmpty, "none", start, 0, 0)
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   query,
			Results: []ranker.Result{},
		})
		return
	}

	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	err := resilience.WithTimeout(ctx, h.cfg.Timeout, "search", func(ctx context.Context) error {
		var err error
		if h.cache != nil {
			key := cache.Key{
				Query:      query,
				Limit:      policy.TopN,
				MinScore:   policy.MinScore,
				Generation: h.corpus.Generation(),
			}
			result, cacheHit, err = h.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*executor.SearchResult, error) {
				return h.searcher.SearchWithPolicy(ctx, query, policy)
			})
			return err
		}
		result, err = h.searcher.SearchWithPolicy(ctx, query, policy)
		return err
	})
	if err != nil {
		kind := metrics.ResultError
		event.Type = analytics.EventSearchError
		if apperrors.Is(err, apperrors.ErrTimeout) {
			kind = metrics.ResultTimeout
			event.Type = analytics.EventSearchTimeout
		}
		event.Error = err.Error()
		h.finishSearch(event, kind, "none", start, 0, 0)
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	event.Phrases = result.Phrases
	event.Keywords = result.Keywords
	event.Candidates = result.Candidates
	event.Returned = len(result.Results)
	event.CacheHit = cacheHit
	kind := metrics.ResultHit
	event.Type = analytics.EventSearch
	topScore := 0
	if len(result.Results) == 0 {
		kind = metrics.ResultZero
		event.Type = analytics.EventZeroResult
	} else {
		topScore = result.Results[0].Score
		event.TopScore = topScore
		event.TopFile = result.Results[0].FileName
	}
	h.finishSearch(event, kind, cacheStatus, start, len(result.Results), topScore)

	log.Info("search completed",
		"query", query,
		"candidates", result.Candidates,
		"returned", len(result.Results),
		"top_score", topScore,
		"cache", cacheStatus,
		"latency_ms", event.LatencyMs,
	)
	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) finishSearch(e analytics.Event, kind, cacheStatus string, start time.Time, returned, topScore int) {
	elapsed := time.Since(start)
	e.LatencyMs = float64(elapsed.Microseconds()) / 1000
	h.tracker.Track(e)
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(kind).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	switch cacheStatus {
	case "hit":
		h.metrics.CacheHitsTotal.Inc()
	case "miss":
		h.metrics.CacheMissesTotal.Inc()
	}
	if kind == metrics.ResultHit || kind == metrics.ResultZero {
		h.metrics.SearchResultsCount.Observe(float64(returned))
	}
	if kind == metrics.ResultHit {
		h.metrics.SearchTopScore.Observe(float64(topScore))
	}
}

// Reload re-reads the corpus and, on success, drops cached responses. The
// old corpus keeps serving when the reload fails.
func (h *Handler) Reload(ctx context.Context, trigger string) (*corpus.Store, error) {
	start := time.Now()
	store, err := h.corpus.Reload(ctx)
	event := analytics.Event{
		Timestamp: start.UTC(),
		RequestID: middleware.GetRequestID(ctx),
		Trigger:   trigger,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		event.Type = analytics.EventReloadFailed
		event.Error = err.Error()
		h.tracker.Track(event)
		if h.metrics != nil {
			h.metrics.CorpusReloadsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if h.cache != nil {
		if _, err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	event.Type = analytics.EventCorpusReload
	event.Generation = h.corpus.Generation()
	event.Documents = store.Len()
	event.Skipped = len(store.Skipped())
	h.tracker.Track(event)
	if h.metrics != nil {
		h.metrics.CorpusReloadsTotal.WithLabelValues("ok").Inc()
		h.metrics.CorpusDocuments.Set(float64(store.Len()))
	}
	h.logger.Info("corpus reload complete", "trigger", trigger, "documents", store.Len(), "generation", event.Generation)
	return store, nil
}

// ReloadCorpus serves POST /api/v1/corpus/reload.
func (h *Handler) ReloadCorpus(w http.ResponseWriter, r *http.Request) {
	store, err := h.Reload(r.Context(), "http")
	if err != nil {
		logger.FromContext(r.Context()).Error("corpus reload failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("reload failed, previous corpus still serving: %v", err),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":  store.Len(),
		"skipped":    store.Skipped(),
		"generation": h.corpus.Generation(),
	})
}

// ReloadRequest is the payload of the corpus-reload topic.
type ReloadRequest struct {
	Reason string `json:"reason"`
}

// ReloadMessageHandler reloads the corpus for every message on the
// corpus-reload topic. Failed reloads are logged and the message is still
// committed; retrying the same directory contents would fail the same way.
func (h *Handler) ReloadMessageHandler() kafka.MessageHandler {
	return func(ctx context.Context, _, value []byte) error {
		req, err := kafka.DecodeJSON[ReloadRequest](value)
		if err != nil {
			h.logger.Warn("reload request undecodable, reloading anyway", "error", err)
		}
		trigger := "kafka"
		if req.Reason != "" {
			trigger += ":" + req.Reason
		}
		if _, err := h.Reload(ctx, trigger); err != nil {
			h.logger.Error("kafka-triggered reload failed", "error", err)
		}
		return nil
	}
}

// CorpusInfo serves GET /api/v1/corpus.
func (h *Handler) CorpusInfo(w http.ResponseWriter, r *http.Request) {
	store := h.corpus.Current()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"dir":        store.Dir(),
		"documents":  store.Len(),
		"skipped":    store.Skipped(),
		"loaded_at":  store.LoadedAt().Format(time.RFC3339),
		"generation": h.corpus.Generation(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.ErrCacheDisabled)
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": msg})
}
