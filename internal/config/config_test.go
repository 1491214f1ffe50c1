package config

import (
	"testing"
	"time"
)

func TestLoadBoltDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "bolt")
	t.Setenv("CATALOG_DSN", "host=localhost dbname=catalog")
	t.Setenv("CANCELLATION_WINDOW", "48h")

	cfg := Load()
	if cfg.StoreDriver != DriverBolt {
		t.Fatalf("expected bolt driver, got %q", cfg.StoreDriver)
	}
	if cfg.CancellationWindow != 48*time.Hour {
		t.Fatalf("expected 48h window, got %s", cfg.CancellationWindow)
	}
	if cfg.CancellationPolicy != "enforce" {
		t.Fatalf("expected enforce policy by default, got %q", cfg.CancellationPolicy)
	}
	if cfg.Port != "8080" || cfg.BoltPath == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "2")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Fatalf("expected capacity clamped to 1, got %d", cfg.Capacity)
	}
	if cfg.TTL != 5*time.Second {
		t.Fatalf("expected ttl raised to 5s, got %s", cfg.TTL)
	}
	if cfg.PerTokenInterval() != 500*time.Millisecond {
		t.Fatalf("expected 500ms per token, got %s", cfg.PerTokenInterval())
	}
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "bogus")

	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || cfg.Methods["POST"] {
		t.Fatalf("unexpected methods %v", cfg.Methods)
	}
	if cfg.TTL != 30*time.Second {
		t.Fatalf("invalid TTL should fall back to default, got %s", cfg.TTL)
	}
}
