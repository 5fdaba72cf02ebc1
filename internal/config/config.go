package config

import (
	"encoding/json"
	"os"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DomainName is the routing endpoint name this server advertises to
	// connecting clients (the original deployment used the API gateway host).
	DomainName string         `json:"domainName"`
	DataDir    string         `json:"dataDir"`
	Delivery   DeliveryPolicy `json:"delivery"`
	Cache      CachePolicy    `json:"cache"`
	Toc        TocPolicy      `json:"toc"`
	Socket     SocketPolicy   `json:"socket"`
}

// DeliveryPolicy tunes the fan-out backoff behavior.
type DeliveryPolicy struct {
	// IncrementMs is the linear backoff step between posts and between
	// throttled retries.
	IncrementMs int `json:"incrementMs"`
	// MaxAttempts bounds throttled retries per post. Zero means unbounded,
	// matching the original behavior; retries still stop when the request
	// context is done.
	MaxAttempts int `json:"maxAttempts"`
}

// CachePolicy controls the non-authoritative document read cache.
type CachePolicy struct {
	Enabled bool `json:"enabled"`
	Size    int  `json:"size"`
}

// TocPolicy controls index rebuild scheduling.
type TocPolicy struct {
	// DebounceMs delays a rebuild so bursts of mutations coalesce.
	DebounceMs int `json:"debounceMs"`
}

// SocketPolicy tunes per-connection websocket buffers.
type SocketPolicy struct {
	// SendBuffer is the outbound queue depth per connection; a full queue
	// reports a throttled delivery.
	SendBuffer int `json:"sendBuffer"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DomainName: "localhost",
		Delivery: DeliveryPolicy{
			IncrementMs: 35,
			MaxAttempts: 0,
		},
		Cache: CachePolicy{
			Enabled: true,
			Size:    128,
		},
		Toc: TocPolicy{
			DebounceMs: 250,
		},
		Socket: SocketPolicy{
			SendBuffer: 64,
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
