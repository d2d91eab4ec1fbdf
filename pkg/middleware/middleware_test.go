package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/metrics"
)

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	require.NotEmpty(t, seen)
	assert.Len(t, seen, 16)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", seen)
	assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
}

func TestTimeoutAnswersGatewayTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		<-release
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "request timeout")
}

func TestTimeoutPassesFastHandlers(t *testing.T) {
	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	rec := httptest.NewRecorder()
	Timeout(time.Second)(fast).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMetricsRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/some/random/path", nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	labels := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "govdoc_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			var path, status string
			for _, lp := range metric.GetLabel() {
				switch lp.GetName() {
				case "path":
					path = lp.GetValue()
				case "status":
					status = lp.GetValue()
				}
			}
			labels[path+" "+status] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), labels["/api/v1/search 400"])
	assert.Equal(t, float64(1), labels["other 400"])
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := CORS([]string{"https://search.example.gov"}, 600)(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=pay", nil)
	req.Header.Set("Origin", "https://search.example.gov")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://search.example.gov", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/search?q=pay", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS([]string{"*"}, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/corpus/reload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestLimiterRefills(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(2, 2)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "clients have separate buckets")

	now = now.Add(500 * time.Millisecond)
	ok, _ = l.Allow("a")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	assert.Equal(t, 2, l.Prune(time.Minute))
	assert.Equal(t, 0, l.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewLimiter(1, 1)
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }
	h := RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.7:5123"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, do("/api/v1/search?q=a").Code)
	rec := do("/api/v1/search?q=b")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do("/health/ready").Code)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientKey(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientKey(req))
}
