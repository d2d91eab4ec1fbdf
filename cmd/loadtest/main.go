// Command loadtest drives GET /api/v1/search with a fixed mix of queries and
// reports throughput, latency percentiles, cache hit ratio and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-queries file]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// defaultQueries mixes bare keywords, quoted phrases, comma lists and a
// query with no usable terms.
var defaultQueries = []string{
	"minimum wage",
	`"withhold pay"`,
	"overtime, holiday pay",
	"police complaints",
	`"notice of termination"`,
	"tenant deposit",
	"rent increase notice",
	"parental leave",
	"privacy breach",
	"human rights tribunal",
	"(c) 1.5% [section]",
	"an of",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
}

type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 1<<16),
		codes:     make(map[int]int64),
	}
}

// Record notes one request. status 0 means the request never got a response.
func (s *Stats) Record(d time.Duration, status int, cacheHit bool) {
	s.total.Add(1)
	if status == 0 {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

// Summary is the digest printed at the end of a run.
type Summary struct {
	Total, Success, Failed, CacheHits int64
	RPS                               float64
	Min, Avg, P50, P90, P99, Max      time.Duration
	Codes                             map[int]int64
}

func (s *Stats) Summarize(elapsed time.Duration) Summary {
	s.mu.Lock()
	lat := append([]time.Duration(nil), s.latencies...)
	codes := make(map[int]int64, len(s.codes))
	for k, v := range s.codes {
		codes[k] = v
	}
	s.mu.Unlock()

	sum := Summary{
		Total:     s.total.Load(),
		Success:   s.success.Load(),
		Failed:    s.failed.Load(),
		CacheHits: s.cacheHits.Load(),
		Codes:     codes,
	}
	if elapsed > 0 {
		sum.RPS = float64(sum.Total) / elapsed.Seconds()
	}
	if len(lat) == 0 {
		return sum
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	var total time.Duration
	for _, l := range lat {
		total += l
	}
	sum.Min = lat[0]
	sum.Max = lat[len(lat)-1]
	sum.Avg = total / time.Duration(len(lat))
	sum.P50 = percentile(lat, 50)
	sum.P90 = percentile(lat, 90)
	sum.P99 = percentile(lat, 99)
	return sum
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queriesFile := flag.String("queries", "", "file with one query per line (default: built-in mix)")
	flag.Parse()

	queries := defaultQueries
	if *queriesFile != "" {
		loaded, err := readQueries(*queriesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}
	cfg := Config{BaseURL: *baseURL, Concurrency: *concurrency, Duration: *duration, Queries: queries}

	fmt.Println("=== Document Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n\n", len(cfg.Queries))

	start := time.Now()
	stats := run(context.Background(), cfg, http.DefaultTransport)
	sum := stats.Summarize(time.Since(start))
	printSummary(os.Stdout, sum)
	if sum.Total == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening queries: %w", err)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no queries in %s", path)
	}
	return out, nil
}

func run(ctx context.Context, cfg Config, transport http.RoundTripper) *Stats {
	stats := NewStats()
	client := &http.Client{Timeout: 10 * time.Second, Transport: transport}
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				q := cfg.Queries[next%len(cfg.Queries)]
				next++
				target := fmt.Sprintf("%s/api/v1/search?q=%s", cfg.BaseURL, url.QueryEscape(q))
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.Record(0, 0, false)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(elapsed, 0, false)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(elapsed, resp.StatusCode, resp.Header.Get("X-Cache") == "hit")
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func printSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", s.Total)
	fmt.Fprintf(w, "Successful:      %d\n", s.Success)
	fmt.Fprintf(w, "Failed:          %d\n", s.Failed)
	fmt.Fprintf(w, "Requests/sec:    %.2f\n", s.RPS)
	if s.Success > 0 {
		fmt.Fprintf(w, "Cache Hit Rate:  %.1f%%\n", float64(s.CacheHits)/float64(s.Success)*100)
	}
	fmt.Fprintln(w, "\n=== Latency ===")
	fmt.Fprintf(w, "Min: %s  Avg: %s  P50: %s  P90: %s  P99: %s  Max: %s\n",
		s.Min, s.Avg, s.P50, s.P90, s.P99, s.Max)

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(s.Codes))
	for c := range s.Codes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "  %d: %d\n", c, s.Codes[c])
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
