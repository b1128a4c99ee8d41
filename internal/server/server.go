// Package server assembles and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/embedfixer/embedfixer/internal/api"
	"github.com/embedfixer/embedfixer/internal/config"
	"github.com/embedfixer/embedfixer/internal/embed"
	"github.com/embedfixer/embedfixer/internal/fixer"
	"github.com/embedfixer/embedfixer/internal/health"
	"github.com/embedfixer/embedfixer/internal/logger"
	"github.com/embedfixer/embedfixer/internal/metrics"
	"github.com/embedfixer/embedfixer/internal/ratelimit"
	"github.com/embedfixer/embedfixer/internal/report"
	"github.com/embedfixer/embedfixer/internal/websocket"
)

const shutdownTimeout = 15 * time.Second

// Server is a configured, not yet listening HTTP server
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	http    *http.Server
	hub     *websocket.Hub
	counter *ratelimit.RedisCounter
}

// New builds the server from cfg. It connects to Redis when rate limiting is
// enabled.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log.WithComponent("server")}

	registry := embed.DefaultRegistry()
	m := metrics.New()
	signer := report.NewSigner(cfg.ReportSecret, cfg.ReportTokenTTL)
	f := fixer.New(registry, signer, m)
	s.log.Info(ctx, "report tokens enabled", map[string]interface{}{
		"ttl": signer.TTL().String(),
	})

	var limiter *ratelimit.Limiter
	var redisPinger health.Pinger
	if cfg.RateLimitEnabled() {
		trusted, err := cfg.TrustedProxyPrefixes()
		if err != nil {
			return nil, err
		}
		counter, err := ratelimit.NewRedisCounter(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		s.counter = counter
		redisPinger = counter
		limiter = ratelimit.New(counter, cfg.RateLimit, time.Minute).WithTrustedProxies(trusted)
		s.log.Info(ctx, "rate limiting enabled", map[string]interface{}{
			"redis_addr":      cfg.RedisAddr,
			"per_minute":      cfg.RateLimit,
			"trusted_proxies": len(trusted),
		})
	}

	s.hub = websocket.NewHub(func(delta int) {
		if delta > 0 {
			m.IncWSSessions()
		} else {
			m.DecWSSessions()
		}
	})

	checker := health.NewChecker(&health.CheckerConfig{
		Redis:       redisPinger,
		Registry:    registry,
		MemoryLimit: uint64(cfg.MemoryLimitMB) << 20,
		Version:     cfg.Version,
	})

	router := api.NewRouter(api.Deps{
		Fixer:          f,
		Health:         health.NewHandler(checker),
		Metrics:        m,
		WebSocket:      websocket.NewHandler(s.hub, f, cfg.AllowedOrigins, log),
		Limiter:        limiter,
		Logger:         log,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Run listens until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ServerAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "server listening", map[string]interface{}{
			"addr":    ln.Addr().String(),
			"version": s.cfg.Version,
		})
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.log.Info(context.Background(), "shutting down", nil)
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.counter != nil {
		if err := s.counter.Close(); err != nil {
			s.log.Warn(context.Background(), "closing redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

// NewLogger builds the process logger from cfg and makes it the default
func NewLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	log := logger.New(&logger.Config{
		Output:   out,
		Level:    logger.ParseLevel(cfg.LogLevel),
		Redactor: logger.DefaultRedactor(),
	})
	logger.SetDefault(log)
	return log
}

// ListenAndServe builds a server from cfg and runs it until ctx is done
func ListenAndServe(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	s, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
