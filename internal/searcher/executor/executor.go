package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/analyzer"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/locator"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/scorer"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/tracing"
)

// minDocsPerWorker keeps tiny corpora on a single goroutine.
const minDocsPerWorker = 64

// CorpusSource yields the corpus snapshot a query runs against.
type CorpusSource interface {
	Current() *corpus.Store
}

type SearchResult struct {
	Query      string          `json:"query"`
	Phrases    []string        `json:"phrases"`
	Keywords   []string        `json:"keywords"`
	Candidates int             `json:"candidates"`
	Results    []ranker.Result `json:"results"`
}

// Config tunes scoring and ranking.
type Config struct {
	Weights scorer.Weights
	Policy  ranker.Policy
	Window  int
	Workers int
}

// DefaultConfig returns weights 20/10, no threshold, top-1.
func DefaultConfig() Config {
	return Config{
		Weights: scorer.DefaultWeights,
		Policy:  ranker.Policy{MinScore: 0, TopN: 1},
		Window:  locator.DefaultWindow,
	}
}

type Executor struct {
	source  CorpusSource
	scorer  *scorer.Scorer
	policy  ranker.Policy
	window  int
	workers int
	logger  *slog.Logger
}

func New(source CorpusSource, cfg Config) *Executor {
	if cfg.Window <= 0 {
		cfg.Window = locator.DefaultWindow
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Executor{
		source:  source,
		scorer:  scorer.New(cfg.Weights),
		policy:  cfg.Policy,
		window:  cfg.Window,
		workers: cfg.Workers,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Policy returns the default ranking policy.
func (e *Executor) Policy() ranker.Policy { return e.policy }

// Search runs query under the default policy.
func (e *Executor) Search(ctx context.Context, query string) (*SearchResult, error) {
	return e.SearchWithPolicy(ctx, query, e.policy)
}

// SearchWithPolicy analyses query, locates and scores a passage in every
// document of the current snapshot and ranks them under p. An empty query or
// no match gives an empty result list, not an error.
func (e *Executor) SearchWithPolicy(ctx context.Context, query string, p ranker.Policy) (*SearchResult, error) {
	_, span := tracing.Child(ctx, "analyze")
	ts := analyzer.Analyze(query)
	span.SetAttr("phrases", len(ts.Phrases))
	span.SetAttr("keywords", len(ts.Keywords))
	span.End()

	result := &SearchResult{
		Query:    query,
		Phrases:  ts.Phrases,
		Keywords: ts.Keywords,
		Results:  []ranker.Result{},
	}
	if ts.Empty() {
		return result, nil
	}

	store := e.source.Current()
	set := matcher.Compile(ts)
	_, span = tracing.Child(ctx, "scan")
	matches, err := e.scan(ctx, store, set)
	span.SetAttr("documents", store.Len())
	span.SetAttr("candidates", len(matches))
	span.End()
	if err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}
	result.Candidates = len(matches)

	_, span = tracing.Child(ctx, "rank")
	result.Results = p.Apply(matches)
	span.End()

	e.logger.Debug("query executed",
		"query", query,
		"phrases", ts.Phrases,
		"keywords", ts.Keywords,
		"documents", store.Len(),
		"candidates", len(matches),
		"results", len(result.Results),
	)
	return result, nil
}

// scan splits the store into contiguous ranges, one per worker. Each document
// writes only its own slot, so the output order is the corpus order whatever
// the scheduling.
func (e *Executor) scan(ctx context.Context, store *corpus.Store, set *matcher.Set) ([]ranker.Match, error) {
	n := store.Len()
	slots := make([]*ranker.Match, n)

	workers := e.workers
	if limit := (n + minDocsPerWorker - 1) / minDocsPerWorker; workers > limit {
		workers = limit
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				doc := store.At(i)
				paragraph, ok := locator.LocateWith(doc.Text, set, e.window)
				if !ok {
					continue
				}
				slots[i] = &ranker.Match{
					Document:  doc,
					Ordinal:   i,
					Paragraph: paragraph,
					Score:     e.scorer.ScoreWith(paragraph, set),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]ranker.Match, 0, n)
	for _, m := range slots {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches, nil
}
