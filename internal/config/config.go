// Package config loads settings from defaults, an optional TOML file and the
// environment, in that order of precedence (later wins).
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ServerAddr     string        `toml:"server_addr"`
	LogLevel       string        `toml:"log_level"`
	AllowedOrigins []string      `toml:"allowed_origins"`
	RedisAddr      string        `toml:"redis_addr"` // empty disables rate limiting
	RateLimit      int           `toml:"rate_limit"` // requests per client per minute
	TrustedProxies []string      `toml:"trusted_proxies"` // addresses or CIDRs allowed to set X-Forwarded-For
	ReportSecret   string        `toml:"report_secret"`
	ReportTokenTTL time.Duration `toml:"report_token_ttl"`
	MemoryLimitMB  int           `toml:"memory_limit_mb"` // readiness degrades above this RSS; 0 disables
	Version        string        `toml:"-"`
}

// Version is set at build time via ldflags
var Version = "dev"

// Default returns the default configuration
func Default() *Config {
	return &Config{
		ServerAddr:     ":8080",
		LogLevel:       "info",
		AllowedOrigins: []string{"*"},
		RateLimit:      60,
		ReportSecret:   generateDefaultSecret(),
		ReportTokenTTL: 24 * time.Hour,
		Version:        Version,
	}
}

// Path returns the config file location: EMBEDFIX_CONFIG, else
// $XDG_CONFIG_HOME/embedfix/config.toml, else ~/.config/embedfix/config.toml.
func Path() (string, error) {
	if p := os.Getenv("EMBEDFIX_CONFIG"); p != "" {
		return p, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "embedfix", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "embedfix", "config.toml"), nil
}

// Load merges defaults < config file < environment. A missing config file is
// not an error.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	// toml decodes durations from strings such as "12h"
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.ServerAddr = getEnvOrDefault("SERVER_ADDR", c.ServerAddr)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.RedisAddr = getEnvOrDefault("REDIS_ADDR", c.RedisAddr)
	c.ReportSecret = getEnvOrDefault("REPORT_SECRET", c.ReportSecret)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}

	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		c.TrustedProxies = splitList(proxies)
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}

	if v := os.Getenv("MEMORY_LIMIT_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEMORY_LIMIT_MB: %w", err)
		}
		c.MemoryLimitMB = n
	}

	if v := os.Getenv("REPORT_TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REPORT_TOKEN_TTL: %w", err)
		}
		c.ReportTokenTTL = ttl
	}
	return nil
}

// Validate checks config values are within acceptable bounds
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("unsupported log level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit)
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}

	// HS256 keys shorter than the hash output weaken the signature
	if len(c.ReportSecret) < 32 {
		return fmt.Errorf("report secret must be at least 32 characters")
	}

	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("memory limit cannot be negative, got %d", c.MemoryLimitMB)
	}

	if c.ReportTokenTTL < time.Minute {
		return fmt.Errorf("report token TTL must be at least 1m, got %s", c.ReportTokenTTL)
	}
	return nil
}

// RateLimitEnabled reports whether a Redis backend is configured
func (c *Config) RateLimitEnabled() bool {
	return c.RedisAddr != ""
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single host
// prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, p := range c.TrustedProxies {
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production-0000"
	}
	return hex.EncodeToString(bytes)
}
