package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":3001", cfg.Addr)
	require.Equal(t, "https://boardgamegeek.com/xmlapi2", cfg.BGG.BaseURL)
	require.Equal(t, 6, cfg.BGG.MaxAttempts)
	require.Equal(t, 10, cfg.Redis.MaxReconnects)
	require.Equal(t, time.Second, cfg.Redis.ReconnectDelay)
	require.Equal(t, 3*time.Hour, cfg.Cache.TrendingTTL)
	require.Equal(t, 12*time.Hour, cfg.Cache.TopTTL)
	require.Equal(t, "memory", cfg.Dedupe.Type)
	require.True(t, cfg.Redis.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":8080"
redis:
  enabled: false
cache:
  listing_ttl: 30m
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, 30*time.Minute, cfg.Cache.ListingTTL)

	// Untouched keys keep their defaults.
	require.Equal(t, "secret-dev", cfg.SecretKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GNH_CLIENT_ORIGIN", "http://games.example.com")
	t.Setenv("GNH_REDIS__ADDR", "redis.internal:6379")
	t.Setenv("GNH_BGG__MAX_ATTEMPTS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://games.example.com", cfg.ClientOrigin)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	require.Equal(t, 3, cfg.BGG.MaxAttempts)
}

func TestLoadMissingFileIsSkipped(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":3001", cfg.Addr)
}
