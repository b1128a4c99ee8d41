package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/embedfixer/embedfixer/internal/logger"
)

// SlowRequestThreshold is the duration above which a request is logged as slow
const SlowRequestThreshold = 500 * time.Millisecond

// Timing returns a middleware that adds a Server-Timing header and logs slow
// requests. The header is written just before the status line, so it reflects
// handler time up to the first write.
func Timing(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.WithComponent("timing")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &timingResponseWriter{ResponseWriter: w, start: start, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if duration := time.Since(start); duration > SlowRequestThreshold {
				log.Warn(r.Context(), "slow request", map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      wrapped.statusCode,
					"duration_ms": duration.Milliseconds(),
				})
			}
		})
	}
}

// timingResponseWriter sets Server-Timing when the header is flushed
type timingResponseWriter struct {
	http.ResponseWriter
	start       time.Time
	statusCode  int
	wroteHeader bool
}

func (w *timingResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.statusCode = code
		w.Header().Set("Server-Timing", formatServerTiming(time.Since(w.start)))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *timingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.wroteHeader = true
	w.statusCode = http.StatusSwitchingProtocols
	return hijack(w.ResponseWriter)
}

func formatServerTiming(d time.Duration) string {
	ms := float64(d.Nanoseconds()) / 1e6
	return "total;dur=" + strconv.FormatFloat(ms, 'f', 2, 64)
}
