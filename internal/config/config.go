// Package config loads application configuration from defaults, an optional
// YAML file, and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables before they are merged.
// Double underscores mark nesting, so GNH_REDIS__ADDR becomes redis.addr
// while GNH_CLIENT_ORIGIN stays client_origin.
const envPrefix = "GNH_"

// Config holds all runtime configuration for the server.
type Config struct {
	Addr         string `koanf:"addr"`
	ClientOrigin string `koanf:"client_origin"`
	SecretKey    string `koanf:"secret_key"`
	DatabaseURL  string `koanf:"database_url"`
	RateLimit    int    `koanf:"rate_limit"`
	Debug        bool   `koanf:"debug"`

	BGG    BGG    `koanf:"bgg"`
	Redis  Redis  `koanf:"redis"`
	Cache  Cache  `koanf:"cache"`
	Dedupe Dedupe `koanf:"dedupe"`
}

// BGG configures the upstream BoardGameGeek client.
type BGG struct {
	BaseURL     string `koanf:"base_url"`
	BrowseURL   string `koanf:"browse_url"`
	MaxAttempts int    `koanf:"max_attempts"`
}

// Redis configures the shared cache backend and its reconnect policy.
type Redis struct {
	Enabled        bool          `koanf:"enabled"`
	Addr           string        `koanf:"addr"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
	ErrorDebounce  time.Duration `koanf:"error_debounce"`
}

// Cache configures TTLs for the cached views plus debug knobs.
type Cache struct {
	ListingTTL  time.Duration `koanf:"listing_ttl"`
	ProfileTTL  time.Duration `koanf:"profile_ttl"`
	TrendingTTL time.Duration `koanf:"trending_ttl"`
	TopTTL      time.Duration `koanf:"top_ttl"`
	ErrorRate   float64       `koanf:"error_rate"`
}

// Dedupe selects the request-deduplication strategy for cache fills.
type Dedupe struct {
	Type    string `koanf:"type"`
	LockDir string `koanf:"lock_dir"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Addr:         ":3001",
		ClientOrigin: "*",
		SecretKey:    "secret-dev",
		DatabaseURL:  "postgres:///gnh",
		RateLimit:    100,
		BGG: BGG{
			BaseURL:     "https://boardgamegeek.com/xmlapi2",
			BrowseURL:   "https://boardgamegeek.com/browse/boardgame?sort=rank&sortdir=asc",
			MaxAttempts: 6,
		},
		Redis: Redis{
			Enabled:        true,
			Addr:           "127.0.0.1:6379",
			MaxReconnects:  10,
			ReconnectDelay: time.Second,
			ErrorDebounce:  5 * time.Second,
		},
		Cache: Cache{
			ListingTTL:  time.Hour,
			ProfileTTL:  time.Hour,
			TrendingTTL: 3 * time.Hour,
			TopTTL:      12 * time.Hour,
		},
		Dedupe: Dedupe{Type: "memory"},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then GNH_*
// environment variables.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
