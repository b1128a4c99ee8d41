package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/embedfixer/embedfixer/internal/embed"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Pinger is anything whose connection can be checked, such as the Redis
// counter behind the rate limiter
type Pinger interface {
	Ping(ctx context.Context) error
}

// selfTestURLs are links every registry built from the default matchers must
// recognize
var selfTestURLs = map[embed.Platform]string{
	embed.PlatformYouTube: "https://youtu.be/dQw4w9WgXcQ",
	embed.PlatformSpotify: "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT",
}

// Checker performs health checks on various components
type Checker struct {
	redis        Pinger
	registry     *embed.Registry
	memoryLimit  uint64
	rss          func(ctx context.Context) (uint64, error)
	version      string
	checkTimeout time.Duration
}

// CheckerConfig holds configuration for the health checker
type CheckerConfig struct {
	Redis       Pinger // nil when rate limiting is disabled
	Registry    *embed.Registry
	MemoryLimit uint64 // resident set size in bytes above which the process is degraded; 0 disables
	Version     string
	Timeout     time.Duration
}

// NewChecker creates a new health checker
func NewChecker(cfg *CheckerConfig) *Checker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		redis:        cfg.Redis,
		registry:     cfg.Registry,
		memoryLimit:  cfg.MemoryLimit,
		rss:          processRSS,
		version:      cfg.Version,
		checkTimeout: timeout,
	}
}

// CheckRedis checks Redis connectivity. Without Redis the server runs
// unlimited, which is a valid configuration.
func (c *Checker) CheckRedis(ctx context.Context) ComponentHealth {
	start := time.Now()

	if c.redis == nil {
		return ComponentHealth{
			Status:  StatusHealthy,
			Message: "disabled",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := c.redis.Ping(ctx); err != nil {
		// Requests still pass because the limiter fails open
		return ComponentHealth{
			Status:   StatusDegraded,
			Message:  "redis ping failed",
			Duration: time.Since(start).String(),
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// CheckMatchers recognizes a known link for every registered platform
func (c *Checker) CheckMatchers(ctx context.Context) ComponentHealth {
	start := time.Now()

	if c.registry == nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: "registry not configured",
		}
	}

	platforms := c.registry.Platforms()
	if len(platforms) == 0 {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: "no matchers registered",
		}
	}

	for _, p := range platforms {
		sample, ok := selfTestURLs[p]
		if !ok {
			continue
		}
		r, err := c.registry.Recognize(sample)
		if err != nil || r.Platform != p {
			return ComponentHealth{
				Status:   StatusUnhealthy,
				Message:  string(p) + " self-test failed",
				Duration: time.Since(start).String(),
			}
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// processRSS reads the resident set size of this process
func processRSS(ctx context.Context) (uint64, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// CheckProcess reports the process memory. Where it cannot be read the
// component stays healthy since serving does not depend on it.
func (c *Checker) CheckProcess(ctx context.Context) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	rss, err := c.rss(ctx)
	if err != nil {
		return ComponentHealth{
			Status:   StatusHealthy,
			Message:  "memory usage unavailable",
			Duration: time.Since(start).String(),
		}
	}

	ch := ComponentHealth{
		Status:   StatusHealthy,
		Message:  fmt.Sprintf("rss %.1f MiB", float64(rss)/(1<<20)),
		Duration: time.Since(start).String(),
	}
	if c.memoryLimit > 0 && rss > c.memoryLimit {
		ch.Status = StatusDegraded
		ch.Message += fmt.Sprintf(" exceeds limit %.1f MiB", float64(c.memoryLimit)/(1<<20))
	}
	return ch
}

// Check performs a basic health check (liveness)
func (c *Checker) Check(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck performs a comprehensive health check (readiness)
func (c *Checker) DeepCheck(ctx context.Context) *HealthResponse {
	response := &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	checks := map[string]func(context.Context) ComponentHealth{
		"redis":    c.CheckRedis,
		"matchers": c.CheckMatchers,
		"process":  c.CheckProcess,
	}

	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch func(context.Context) ComponentHealth) {
			defer wg.Done()
			result := ch(ctx)
			mu.Lock()
			response.Components[n] = result
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()

	for _, comp := range response.Components {
		if comp.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
			break
		} else if comp.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// Handler provides HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
}

// NewHandler creates a new health handler
func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

// LivenessHandler handles liveness probe requests
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.checker.Check(r.Context()))
}

// ReadinessHandler handles readiness probe requests. Degraded still accepts
// traffic.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.checker.DeepCheck(r.Context()))
}

func writeResponse(w http.ResponseWriter, response *HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}
