// Package ratelimit implements a fixed-window request limit per client.
package ratelimit

import (
	"context"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	apperrors "github.com/embedfixer/embedfixer/internal/errors"
	"github.com/embedfixer/embedfixer/internal/logger"
)

const keyPrefix = "embedfix:rl:"

// Counter increments a counter that expires after window
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration // until Reset, measured on the limiter's clock
}

// Limiter allows limit requests per client in each window
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	trusted []netip.Prefix
	now     func() time.Time
}

// New creates a limiter allowing limit requests per window
func New(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{
		counter: counter,
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// WithTrustedProxies makes the limiter key requests arriving from these
// peers on the forwarded client address. Without it only the peer address
// counts.
func (l *Limiter) WithTrustedProxies(prefixes []netip.Prefix) *Limiter {
	l.trusted = append([]netip.Prefix(nil), prefixes...)
	return l
}

// Allow counts one request for client and reports whether it is within the limit
func (l *Limiter) Allow(ctx context.Context, client string) (Decision, error) {
	now := l.now()
	start := now.Truncate(l.window)
	d := Decision{Limit: l.limit, Reset: start.Add(l.window)}
	d.RetryAfter = d.Reset.Sub(now)

	n, err := l.counter.Incr(ctx, l.key(client, start), l.window)
	if err != nil {
		return d, err
	}

	d.Allowed = n <= int64(l.limit)
	if remaining := int64(l.limit) - n; remaining > 0 {
		d.Remaining = int(remaining)
	}
	return d, nil
}

// key hashes the client so raw addresses never reach Redis
func (l *Limiter) key(client string, windowStart time.Time) string {
	sum := blake2b.Sum256([]byte(client))
	return keyPrefix + hex.EncodeToString(sum[:16]) + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

// Middleware rejects requests over the limit with 429. Counter failures let
// the request through.
func Middleware(l *Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	log = log.WithComponent("ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), l.clientKey(r))
			if err != nil {
				log.Warn(r.Context(), "rate limit check failed, allowing request", map[string]interface{}{
					"error": err.Error(),
				})
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apperrors.WriteError(w, apperrors.GetRequestID(r.Context()), apperrors.RateLimited())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller by its peer address. Forwarding headers are
// only believed when the peer is a trusted proxy; the forwarded chain is then
// walked from the right, skipping trusted hops.
func (l *Limiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !l.isTrusted(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				// unparsable hops come from the untrusted side
				break
			}
			if !l.isTrusted(addr) {
				return addr.Unmap().String()
			}
			host = addr.Unmap().String()
		}
		return host
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return host
}

func (l *Limiter) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
