package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const namespace = "embedfix"

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestCount    map[string]*uint64    // endpoint:method -> count
	requestDuration map[string]*Histogram // endpoint:method -> duration histogram
	requestErrors   map[string]*uint64    // endpoint:method:status_class -> count

	// Recognition outcomes
	recognitions map[string]*uint64 // platform -> count
	rejections   map[string]*uint64 // error code -> count
	reports      uint64

	activeWSSessions int64

	startTime time.Time
}

// Histogram tracks value distributions
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	// Buckets: 1ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s
	buckets    []float64
	bucketVals []uint64
}

// NewHistogram creates a new histogram with default buckets
func NewHistogram() *Histogram {
	buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	return &Histogram{
		buckets:    buckets,
		bucketVals: make([]uint64, len(buckets)),
	}
}

// Observe records a value
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		recognitions:    make(map[string]*uint64),
		rejections:      make(map[string]*uint64),
		startTime:       time.Now(),
	}
}

// counter returns the counter for key in m, creating it if needed
func (m *Metrics) counter(counters map[string]*uint64, key string) *uint64 {
	m.mu.RLock()
	c := counters[key]
	m.mu.RUnlock()
	if c != nil {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if counters[key] == nil {
		counters[key] = new(uint64)
	}
	return counters[key]
}

// RecordRequest records a request
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := fmt.Sprintf("%s:%s", normalizeEndpoint(path), method)

	atomic.AddUint64(m.counter(m.requestCount, key), 1)

	m.mu.Lock()
	h := m.requestDuration[key]
	if h == nil {
		h = NewHistogram()
		m.requestDuration[key] = h
	}
	m.mu.Unlock()
	h.Observe(duration.Seconds())

	if statusCode >= 400 {
		errorKey := fmt.Sprintf("%s:%d", key, statusCode/100)
		atomic.AddUint64(m.counter(m.requestErrors, errorKey), 1)
	}
}

// RecordRecognition counts a successfully recognized link
func (m *Metrics) RecordRecognition(platform string) {
	atomic.AddUint64(m.counter(m.recognitions, platform), 1)
}

// RecordRejection counts a link that could not be recognized, by error code
func (m *Metrics) RecordRejection(code string) {
	atomic.AddUint64(m.counter(m.rejections, code), 1)
}

// RecordReport counts a rendered bug report
func (m *Metrics) RecordReport() {
	atomic.AddUint64(&m.reports, 1)
}

// IncWSSessions increments live websocket sessions
func (m *Metrics) IncWSSessions() {
	atomic.AddInt64(&m.activeWSSessions, 1)
}

// DecWSSessions decrements live websocket sessions
func (m *Metrics) DecWSSessions() {
	atomic.AddInt64(&m.activeWSSessions, -1)
}

// Recognitions returns the recognition count for a platform
func (m *Metrics) Recognitions(platform string) uint64 {
	return atomic.LoadUint64(m.counter(m.recognitions, platform))
}

// Rejections returns the rejection count for an error code
func (m *Metrics) Rejections(code string) uint64 {
	return atomic.LoadUint64(m.counter(m.rejections, code))
}

// normalizeEndpoint keeps only the API prefix so query strings and unknown
// paths do not create unbounded series
func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/"), strings.HasPrefix(path, "/health"), path == "/metrics":
		return path
	default:
		return "other"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP %s_uptime_seconds Time since the server started\n", namespace)
		fmt.Fprintf(&sb, "# TYPE %s_uptime_seconds gauge\n", namespace)
		fmt.Fprintf(&sb, "%s_uptime_seconds %f\n\n", namespace, time.Since(m.startTime).Seconds())

		fmt.Fprintf(&sb, "# HELP %s_websocket_sessions_active Live recognition websocket sessions\n", namespace)
		fmt.Fprintf(&sb, "# TYPE %s_websocket_sessions_active gauge\n", namespace)
		fmt.Fprintf(&sb, "%s_websocket_sessions_active %d\n\n", namespace, atomic.LoadInt64(&m.activeWSSessions))

		fmt.Fprintf(&sb, "# HELP %s_reports_total Bug reports rendered\n", namespace)
		fmt.Fprintf(&sb, "# TYPE %s_reports_total counter\n", namespace)
		fmt.Fprintf(&sb, "%s_reports_total %d\n\n", namespace, atomic.LoadUint64(&m.reports))

		m.mu.RLock()
		defer m.mu.RUnlock()

		if len(m.recognitions) > 0 {
			fmt.Fprintf(&sb, "# HELP %s_recognitions_total Links recognized by platform\n", namespace)
			fmt.Fprintf(&sb, "# TYPE %s_recognitions_total counter\n", namespace)
			for _, platform := range sortedKeys(m.recognitions) {
				fmt.Fprintf(&sb, "%s_recognitions_total{platform=%q} %d\n", namespace, platform, atomic.LoadUint64(m.recognitions[platform]))
			}
			sb.WriteString("\n")
		}

		if len(m.rejections) > 0 {
			fmt.Fprintf(&sb, "# HELP %s_rejections_total Links rejected by error code\n", namespace)
			fmt.Fprintf(&sb, "# TYPE %s_rejections_total counter\n", namespace)
			for _, code := range sortedKeys(m.rejections) {
				fmt.Fprintf(&sb, "%s_rejections_total{code=%q} %d\n", namespace, code, atomic.LoadUint64(m.rejections[code]))
			}
			sb.WriteString("\n")
		}

		if len(m.requestCount) > 0 {
			fmt.Fprintf(&sb, "# HELP %s_http_requests_total Total HTTP requests\n", namespace)
			fmt.Fprintf(&sb, "# TYPE %s_http_requests_total counter\n", namespace)
			for _, key := range sortedKeys(m.requestCount) {
				endpoint, method, _ := strings.Cut(key, ":")
				fmt.Fprintf(&sb, "%s_http_requests_total{endpoint=%q,method=%q} %d\n", namespace, endpoint, method, atomic.LoadUint64(m.requestCount[key]))
			}
			sb.WriteString("\n")
		}

		if len(m.requestDuration) > 0 {
			fmt.Fprintf(&sb, "# HELP %s_http_request_duration_seconds HTTP request latency\n", namespace)
			fmt.Fprintf(&sb, "# TYPE %s_http_request_duration_seconds histogram\n", namespace)
			for _, key := range sortedKeys(m.requestDuration) {
				endpoint, method, _ := strings.Cut(key, ":")
				labels := fmt.Sprintf("endpoint=%q,method=%q", endpoint, method)
				h := m.requestDuration[key]
				h.mu.Lock()
				for i, bucket := range h.buckets {
					fmt.Fprintf(&sb, "%s_http_request_duration_seconds_bucket{%s,le=\"%g\"} %d\n", namespace, labels, bucket, h.bucketVals[i])
				}
				fmt.Fprintf(&sb, "%s_http_request_duration_seconds_bucket{%s,le=\"+Inf\"} %d\n", namespace, labels, h.count)
				fmt.Fprintf(&sb, "%s_http_request_duration_seconds_sum{%s} %f\n", namespace, labels, h.sum)
				fmt.Fprintf(&sb, "%s_http_request_duration_seconds_count{%s} %d\n", namespace, labels, h.count)
				h.mu.Unlock()
			}
			sb.WriteString("\n")
		}

		if len(m.requestErrors) > 0 {
			fmt.Fprintf(&sb, "# HELP %s_http_errors_total Total HTTP errors by status class\n", namespace)
			fmt.Fprintf(&sb, "# TYPE %s_http_errors_total counter\n", namespace)
			for _, key := range sortedKeys(m.requestErrors) {
				// key format: endpoint:method:class
				parts := strings.Split(key, ":")
				if len(parts) != 3 {
					continue
				}
				fmt.Fprintf(&sb, "%s_http_errors_total{endpoint=%q,method=%q,status_class=\"%sxx\"} %d\n",
					namespace, parts[0], parts[1], parts[2], atomic.LoadUint64(m.requestErrors[key]))
			}
		}

		w.Write([]byte(sb.String()))
	}
}

// Middleware records request metrics
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &statusResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			m.RecordRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
