package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Delivery.IncrementMs != 35 {
		t.Fatalf("increment: %d", cfg.Delivery.IncrementMs)
	}
	if cfg.Delivery.MaxAttempts != 0 {
		t.Fatalf("maxAttempts should default unbounded, got %d", cfg.Delivery.MaxAttempts)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Size == 0 {
		t.Fatalf("cache defaults: %+v", cfg.Cache)
	}
	if cfg.DomainName == "" {
		t.Fatalf("domain name default missing")
	}
}

func TestLoadJSONOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := []byte(`{"domainName":"edit.example.com","delivery":{"incrementMs":10,"maxAttempts":3},"cache":{"enabled":false}}`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DomainName != "edit.example.com" {
		t.Fatalf("domainName: %q", cfg.DomainName)
	}
	if cfg.Delivery.IncrementMs != 10 || cfg.Delivery.MaxAttempts != 3 {
		t.Fatalf("delivery: %+v", cfg.Delivery)
	}
	if cfg.Cache.Enabled {
		t.Fatalf("cache should be disabled")
	}
	// untouched sections keep defaults
	if cfg.Toc.DebounceMs != 250 {
		t.Fatalf("toc default lost: %+v", cfg.Toc)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GRAPH_SERVER_DOMAIN_NAME", "ws.example.com")
	t.Setenv("GRAPH_SERVER_DELIVERY_MAX_ATTEMPTS", "7")
	t.Setenv("GRAPH_SERVER_CACHE_ENABLED", "false")
	cfg := Default()
	FromEnv(&cfg)
	if cfg.DomainName != "ws.example.com" {
		t.Fatalf("domainName: %q", cfg.DomainName)
	}
	if cfg.Delivery.MaxAttempts != 7 {
		t.Fatalf("maxAttempts: %d", cfg.Delivery.MaxAttempts)
	}
	if cfg.Cache.Enabled {
		t.Fatalf("cache should be disabled")
	}
}
