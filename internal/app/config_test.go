package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 4*time.Hour, cfg.Cache.DefaultTTL)
	require.False(t, cfg.Cache.StrictValidation)
	require.True(t, cfg.Cache.Sweep.Enabled)
	require.Equal(t, "@hourly", cfg.Cache.Sweep.Schedule)
	require.Equal(t, 24*time.Hour, cfg.Cache.Sweep.Grace)
	require.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	raw := `
server:
  port: 9100
cache:
  default_ttl: 2h
  timezone: "America/New_York"
  strict_validation: true
upstream:
  base_url: "https://grid.example.com"
  timeout: 5s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(raw), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, 2*time.Hour, cfg.Cache.DefaultTTL)
	require.Equal(t, "America/New_York", cfg.Cache.Timezone)
	require.True(t, cfg.Cache.StrictValidation)
	require.Equal(t, "https://grid.example.com", cfg.Upstream.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	// Untouched sections keep their defaults.
	require.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8000},
			Upstream: UpstreamConfig{BaseURL: "https://grid.example.com"},
			Cache:    CacheConfig{DefaultTTL: time.Hour},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Upstream.BaseURL = "  "
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.DefaultTTL = 0
	require.Error(t, cfg.Validate())
}
