package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler()(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	return w.Body.String()
}

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("POST", "/api/v1/recognize", 200, 100*time.Millisecond)
	m.RecordRequest("POST", "/api/v1/recognize", 200, 150*time.Millisecond)
	m.RecordRequest("POST", "/api/v1/recognize", 422, 5*time.Millisecond)

	body := scrape(t, m)

	if !strings.Contains(body, `embedfix_http_requests_total{endpoint="/api/v1/recognize",method="POST"} 3`) {
		t.Errorf("expected request counter of 3, got:\n%s", body)
	}
	if !strings.Contains(body, "embedfix_http_request_duration_seconds_count") {
		t.Error("expected embedfix_http_request_duration_seconds metric")
	}
	if !strings.Contains(body, `status_class="4xx"} 1`) {
		t.Errorf("expected one 4xx error, got:\n%s", body)
	}
}

func TestMetrics_Recognitions(t *testing.T) {
	m := New()

	m.RecordRecognition("YouTube")
	m.RecordRecognition("YouTube")
	m.RecordRecognition("Spotify")
	m.RecordRejection("UNRECOGNIZED_URL")
	m.RecordReport()

	if got := m.Recognitions("YouTube"); got != 2 {
		t.Errorf("Recognitions(YouTube) = %d, want 2", got)
	}
	if got := m.Rejections("EMPTY_INPUT"); got != 0 {
		t.Errorf("Rejections(EMPTY_INPUT) = %d, want 0", got)
	}

	body := scrape(t, m)
	for _, want := range []string{
		`embedfix_recognitions_total{platform="YouTube"} 2`,
		`embedfix_recognitions_total{platform="Spotify"} 1`,
		`embedfix_rejections_total{code="UNRECOGNIZED_URL"} 1`,
		"embedfix_reports_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in:\n%s", want, body)
		}
	}
}

func TestMetrics_WSSessions(t *testing.T) {
	m := New()

	m.IncWSSessions()
	m.IncWSSessions()
	m.DecWSSessions()

	body := scrape(t, m)

	if !strings.Contains(body, "embedfix_websocket_sessions_active 1") {
		t.Errorf("expected embedfix_websocket_sessions_active 1, got:\n%s", body)
	}
}

func TestMetrics_EndpointNormalization(t *testing.T) {
	m := New()

	m.RecordRequest("GET", "/wp-admin/login.php", 404, time.Millisecond)
	m.RecordRequest("GET", "/favicon.ico", 404, time.Millisecond)

	body := scrape(t, m)

	if !strings.Contains(body, `endpoint="other",method="GET"} 2`) {
		t.Errorf("expected unknown paths folded into other, got:\n%s", body)
	}
	if strings.Contains(body, "wp-admin") {
		t.Errorf("unexpected raw path in output:\n%s", body)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRecognition("Spotify")
			m.RecordRequest("GET", "/api/v1/platforms", 200, time.Millisecond)
		}()
	}
	wg.Wait()

	if got := m.Recognitions("Spotify"); got != 50 {
		t.Errorf("Recognitions(Spotify) = %d, want 50", got)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	wrapped := Middleware(m)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/platforms", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", w.Code)
	}

	body := scrape(t, m)
	if !strings.Contains(body, `endpoint="/api/v1/platforms",method="GET",status_class="4xx"} 1`) {
		t.Errorf("expected middleware to record the error, got:\n%s", body)
	}
}

func TestHistogram_Observe(t *testing.T) {
	h := NewHistogram()

	h.Observe(0.003)
	h.Observe(0.2)
	h.Observe(10)

	if h.count != 3 {
		t.Errorf("count = %d, want 3", h.count)
	}
	// 0.005 bucket holds only the first observation
	if h.bucketVals[1] != 1 {
		t.Errorf("le=0.005 bucket = %d, want 1", h.bucketVals[1])
	}
	// 2.5 bucket holds everything but the 10s outlier
	if h.bucketVals[len(h.bucketVals)-1] != 2 {
		t.Errorf("le=2.5 bucket = %d, want 2", h.bucketVals[len(h.bucketVals)-1])
	}
}
