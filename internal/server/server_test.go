package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/embedfixer/embedfixer/internal/config"
	"github.com/embedfixer/embedfixer/internal/logger"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.ServerAddr = "127.0.0.1:0"
	cfg.Version = "test"

	var buf bytes.Buffer
	log := logger.New(&logger.Config{Output: &buf, Level: logger.LevelDebug})

	srv, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ln, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/recognize?url=youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["content_id"] != "dQw4w9WgXcQ" {
		t.Errorf("content_id = %v", body["content_id"])
	}

	if !strings.Contains(buf.String(), `"ttl":"24h0m0s"`) {
		t.Errorf("startup log does not report the token TTL: %s", buf.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := config.Default()
	// Nothing listens on port 1
	cfg.RedisAddr = "127.0.0.1:1"

	log := logger.New(&logger.Config{Output: &bytes.Buffer{}})
	if _, err := New(context.Background(), cfg, log); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
