package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("COOKIE_SIGNING_KEY", "test-secret")
	t.Setenv("STARTGG_OAUTH_CLIENT_ID", "client")
	t.Setenv("STARTGG_OAUTH_CLIENT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want :3000", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.FanoutCapacity != 32 {
		t.Errorf("FanoutCapacity = %d, want 32", cfg.FanoutCapacity)
	}
	if cfg.SSEKeepAlive != 15*time.Second {
		t.Errorf("SSEKeepAlive = %v, want 15s", cfg.SSEKeepAlive)
	}
	if cfg.StartGG.GraphQLURL != "https://api.start.gg/gql/alpha" {
		t.Errorf("GraphQLURL = %q", cfg.StartGG.GraphQLURL)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
	if len(cfg.WSOrigins) != 0 {
		t.Errorf("WSOrigins = %q, want none", cfg.WSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("FANOUT_CAPACITY", "8")
	t.Setenv("SSE_KEEPALIVE", "2s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WS_ORIGIN_PATTERNS", "obs.example,*.vercel.app")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if cfg.FanoutCapacity != 8 {
		t.Errorf("FanoutCapacity = %d, want 8", cfg.FanoutCapacity)
	}
	if cfg.SSEKeepAlive != 2*time.Second {
		t.Errorf("SSEKeepAlive = %v, want 2s", cfg.SSEKeepAlive)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if len(cfg.WSOrigins) != 2 || cfg.WSOrigins[0] != "obs.example" || cfg.WSOrigins[1] != "*.vercel.app" {
		t.Errorf("WSOrigins = %q", cfg.WSOrigins)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing cookie key", env: map[string]string{
			"STARTGG_OAUTH_CLIENT_ID":     "client",
			"STARTGG_OAUTH_CLIENT_SECRET": "secret",
		}},
		{name: "non-positive capacity", env: map[string]string{
			"COOKIE_SIGNING_KEY":          "k",
			"STARTGG_OAUTH_CLIENT_ID":     "client",
			"STARTGG_OAUTH_CLIENT_SECRET": "secret",
			"FANOUT_CAPACITY":             "0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COOKIE_SIGNING_KEY", "")
			os.Unsetenv("COOKIE_SIGNING_KEY")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
