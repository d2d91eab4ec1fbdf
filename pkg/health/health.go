// Package health runs named dependency probes concurrently and serves the
// liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds the registered probes. Probes registered as optional can only
// degrade the overall status, never take it down.
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]Check
	optional map[string]bool
	timeout  time.Duration
}

func NewChecker() *Checker {
	return &Checker{
		checks:   make(map[string]Check),
		optional: make(map[string]bool),
		timeout:  3 * time.Second,
	}
}

// Register adds a probe whose failure makes the service unready.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
	delete(c.optional, name)
}

// RegisterOptional adds a probe whose failure only degrades the service.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
	c.optional[name] = true
}

// Run executes every probe concurrently and folds the results.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]Check, len(names))
	optional := make([]bool, len(names))
	for i, name := range names {
		checks[i] = c.checks[name]
		optional[i] = c.optional[name]
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i := range checks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			res := checks[i](ctx)
			res.Latency = time.Since(start).Round(time.Microsecond).String()
			results[i] = res
		}(i)
	}
	wg.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, name := range names {
		res := results[i]
		report.Components[name] = res
		switch {
		case res.Status == StatusDown && !optional[i]:
			report.Status = StatusDown
		case res.Status != StatusUp && report.Status == StatusUp:
			report.Status = StatusDegraded
		}
	}
	return report
}

// PingCheck adapts an error-returning ping into a Check.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// LiveHandler answers 200 while the process is serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 unless a required probe is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
