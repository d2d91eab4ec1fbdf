// Package middleware holds the HTTP middleware wrapped around the search API:
// request IDs, Prometheus metrics, timeouts, CORS and per-client rate limits.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/metrics"
)

// Metrics returns middleware that records HTTP request count, latency, and
// in-flight gauge.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(sw.status),
			).Inc()
			m.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

// knownPaths bounds the label cardinality; anything else is "other".
var knownPaths = []string{
	"/api/v1/search",
	"/api/v1/corpus/reload",
	"/api/v1/corpus",
	"/api/v1/cache/stats",
	"/api/v1/cache/invalidate",
	"/api/v1/analytics",
	"/api/v1/analytics/snapshots",
	"/health/live",
	"/health/ready",
}

func normalizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	for _, p := range knownPaths {
		if path == p {
			return p
		}
	}
	return "other"
}
