// Command query answers a single question against a corpus directory and
// prints the ranked passages as JSON.
//
// Usage:
//
//	go run ./cmd/query -corpus ./docs [-top 1] [-min 0] "minimum wage"
//
// When no passage clears the threshold it prints the fallback line
// "No relevant information found".
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/logger"
)

// NoResults is printed when nothing clears the threshold.
const NoResults = "No relevant information found"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	corpusDir := fs.String("corpus", os.Getenv("GDS_CORPUS_DIR"), "directory of document records")
	top := fs.Int("top", 1, "maximum number of results (0 = all)")
	minScore := fs.Int("min", 0, "minimum score a result needs")
	window := fs.Int("window", 0, "maximum bytes of context on each side of a match")
	skipInvalid := fs.Bool("skip-invalid", false, "skip malformed records instead of failing")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger.SetupWriter(stderr, *logLevel, "text")

	if *corpusDir == "" {
		fmt.Fprintln(stderr, "query: -corpus is required")
		fs.Usage()
		return 2
	}
	query := strings.Join(fs.Args(), " ")

	holder, err := corpus.NewHolder(*corpusDir, corpus.WithSkipInvalid(*skipInvalid))
	if err != nil {
		fmt.Fprintf(stderr, "query: %v\n", err)
		return 1
	}

	cfg := executor.DefaultConfig()
	cfg.Policy = ranker.Policy{MinScore: *minScore, TopN: *top}
	cfg.Window = *window
	res, err := executor.New(holder, cfg).Search(ctx, query)
	if err != nil {
		fmt.Fprintf(stderr, "query: %v\n", err)
		return 1
	}

	if len(res.Results) == 0 {
		fmt.Fprintln(stdout, NoResults)
		return 0
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Results); err != nil {
		fmt.Fprintf(stderr, "query: writing results: %v\n", err)
		return 1
	}
	return 0
}
