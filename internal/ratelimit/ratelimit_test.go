package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/embedfixer/embedfixer/internal/errors"
	"github.com/embedfixer/embedfixer/internal/logger"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	keys   []string
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.keys = append(f.keys, key)
	f.counts[key]++
	return f.counts[key], nil
}

func TestLimiter_Allow(t *testing.T) {
	counter := newFakeCounter()
	l := New(counter, 3, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		d, err := l.Allow(ctx, "203.0.113.7")
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Errorf("Allow #%d denied, want allowed", i+1)
		}
		if d.Remaining != want {
			t.Errorf("Allow #%d remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	d, err := l.Allow(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Error("fourth request allowed, want denied")
	}
	if want := time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC); !d.Reset.Equal(want) {
		t.Errorf("Reset = %v, want %v", d.Reset, want)
	}
	if d.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %s, want 30s", d.RetryAfter)
	}

	// other clients have their own budget
	if d, _ := l.Allow(ctx, "198.51.100.1"); !d.Allowed {
		t.Error("other client denied")
	}

	// a new window starts a fresh count
	now = now.Add(time.Minute)
	if d, _ := l.Allow(ctx, "203.0.113.7"); !d.Allowed {
		t.Error("request in next window denied")
	}
}

func TestLimiter_KeyHidesClient(t *testing.T) {
	counter := newFakeCounter()
	l := New(counter, 10, time.Minute)

	if _, err := l.Allow(context.Background(), "203.0.113.7"); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	key := counter.keys[0]
	if !strings.HasPrefix(key, keyPrefix) {
		t.Errorf("key %q missing prefix", key)
	}
	if strings.Contains(key, "203.0.113.7") {
		t.Errorf("key %q leaks the client address", key)
	}
	if key != l.key("203.0.113.7", l.now().Truncate(time.Minute)) {
		t.Error("key is not stable for the same client and window")
	}
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Output: &buf, Level: logger.LevelDebug})
	counter := newFakeCounter()
	l := New(counter, 1, time.Minute)

	h := Middleware(l, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", nil)
	req.RemoteAddr = "192.0.2.10:51234"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	var resp apperrors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != apperrors.CodeRateLimited {
		t.Errorf("code = %s, want %s", resp.Error.Code, apperrors.CodeRateLimited)
	}
}

func TestMiddleware_FailsOpen(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Output: &buf, Level: logger.LevelDebug})
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")

	h := Middleware(New(counter, 1, time.Minute), log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/platforms", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if !strings.Contains(buf.String(), "rate limit check failed") {
		t.Errorf("expected warning, got %s", buf.String())
	}
}

func TestClientKey(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
	}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded ignored without trusted proxies", nil, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "10.0.0.1:80", "10.0.0.1"},
		{"real ip ignored without trusted proxies", nil, map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "10.0.0.1"},
		{"forwarded ignored from untrusted peer", trusted, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "192.0.2.9:80", "192.0.2.9"},
		{"forwarded from trusted peer", trusted, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "10.0.0.1:80", "203.0.113.5"},
		{"rightmost untrusted hop wins", trusted, map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.5, 10.0.0.7"}, "10.0.0.1:80", "203.0.113.5"},
		{"garbage hop stops the walk", trusted, map[string]string{"X-Forwarded-For": "not-an-ip, 10.0.0.7"}, "10.0.0.1:80", "10.0.0.7"},
		{"real ip from trusted peer", trusted, map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
		{"ipv6 loopback proxy", trusted, map[string]string{"X-Forwarded-For": "2001:db8::1"}, "[::1]:80", "2001:db8::1"},
		{"no port", trusted, nil, "pipe", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(newFakeCounter(), 1, time.Minute).WithTrustedProxies(tt.trusted)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := l.clientKey(req); got != tt.want {
				t.Errorf("clientKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware_RotatingForwardedForStillLimited(t *testing.T) {
	log := logger.New(&logger.Config{Output: &bytes.Buffer{}})
	l := New(newFakeCounter(), 2, time.Minute)

	h := Middleware(l, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/platforms", nil)
		req.RemoteAddr = "192.0.2.10:51234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			allowed++
		} else if w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}

	if allowed != 2 {
		t.Errorf("allowed %d requests from one peer, want 2", allowed)
	}
}

func TestMiddleware_RetryAfterUsesLimiterClock(t *testing.T) {
	log := logger.New(&logger.Config{Output: &bytes.Buffer{}})
	l := New(newFakeCounter(), 1, time.Minute)
	l.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 45, 0, time.UTC) }

	h := Middleware(l, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var w *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/platforms", nil)
		req.RemoteAddr = "192.0.2.10:51234"
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
	}

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "15" {
		t.Errorf("Retry-After = %q, want 15", got)
	}
}
