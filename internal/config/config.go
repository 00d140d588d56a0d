// Package config loads process settings from a .env file and the
// environment. Command-line flags are applied on top by cmd/openagi.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIBase    = "https://api.openai.com/v1"
	DefaultAddr       = ":8080"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultRunHistory = 128
)

type Config struct {
	Addr           string
	APIBase        string
	APIKey         string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	RunHistory     int
	// AllowedOrigins lists browser origins trusted by CORS and the events
	// websocket. Empty means same-origin and loopback only.
	AllowedOrigins []string
}

// Load reads .env (if present) and then the environment. A missing .env file
// is not an error; malformed numeric values are.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv without touching .env files.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Addr:       normalizeAddr(firstNonEmpty(getenv("OPENAGI_ADDR"), getenv("PORT"), DefaultAddr)),
		APIBase:    strings.TrimRight(firstNonEmpty(getenv("OPENAI_API_BASE"), DefaultAPIBase), "/"),
		APIKey:     strings.TrimSpace(getenv("OPENAI_API_KEY")),
		LogLevel:   strings.ToLower(firstNonEmpty(getenv("OPENAGI_LOG_LEVEL"), DefaultLogLevel)),
		LogFormat:  strings.ToLower(firstNonEmpty(getenv("OPENAGI_LOG_FORMAT"), DefaultLogFormat)),
		RunHistory:     DefaultRunHistory,
		AllowedOrigins: splitList(getenv("OPENAGI_ALLOWED_ORIGINS")),
	}

	if raw := strings.TrimSpace(getenv("OPENAGI_REQUEST_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("OPENAGI_REQUEST_TIMEOUT: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("OPENAGI_REQUEST_TIMEOUT: must not be negative, got %s", d)
		}
		cfg.RequestTimeout = d
	}

	if raw := strings.TrimSpace(getenv("OPENAGI_RUN_HISTORY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("OPENAGI_RUN_HISTORY: %w", err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("OPENAGI_RUN_HISTORY: must be positive, got %d", n)
		}
		cfg.RunHistory = n
	}
	return cfg, nil
}

// normalizeAddr accepts a bare port ("8080") as well as host:port.
func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.Contains(addr, ":") {
		return addr
	}
	return ":" + addr
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
