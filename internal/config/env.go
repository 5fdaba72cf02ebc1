package config

import (
	"os"
	"strconv"
)

// FromEnv overlays GRAPH_SERVER_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("GRAPH_SERVER_DOMAIN_NAME"); v != "" {
		cfg.DomainName = v
	}
	if v := os.Getenv("GRAPH_SERVER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GRAPH_SERVER_DELIVERY_INCREMENT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Delivery.IncrementMs = n
		}
	}
	if v := os.Getenv("GRAPH_SERVER_DELIVERY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Delivery.MaxAttempts = n
		}
	}
	if v := os.Getenv("GRAPH_SERVER_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("GRAPH_SERVER_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Size = n
		}
	}
	if v := os.Getenv("GRAPH_SERVER_TOC_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Toc.DebounceMs = n
		}
	}
	if v := os.Getenv("GRAPH_SERVER_SOCKET_SEND_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Socket.SendBuffer = n
		}
	}
}
