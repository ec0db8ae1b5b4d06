package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Zero(t, cfg.Catalog.WriteRate)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileLayersYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  read_timeout: 5s
logging:
  level: debug
cors:
  origins:
    - https://a.example
`), 0o600))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CATALOG_WRITE_RATE", "2.5")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.InDelta(t, 2.5, cfg.Catalog.WriteRate, 1e-9)
	assert.Equal(t, []string{"https://a.example"}, cfg.CORS.Origins)
}

func TestLoadFileSplitsEnvOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.Origins)
}

func TestLoadFileIgnoresUnmappedEnv(t *testing.T) {
	t.Setenv("PORT", "1")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	t.Setenv("CATALOG_PORT", "70000")

	_, err := LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"tracing without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Endpoint = ""
		}, "tracing.endpoint"},
		{"zero requests", func(c *Config) { c.RateLimit.Requests = 0 }, "ratelimit.requests"},
		{"negative write rate", func(c *Config) { c.Catalog.WriteRate = -1 }, "catalog.write_rate"},
		{"rate without burst", func(c *Config) {
			c.Catalog.WriteRate = 1
			c.Catalog.WriteBurst = 0
		}, "catalog.write_burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("disabled rate limit skips its checks", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.RateLimit.Disabled = true
		cfg.RateLimit.Requests = 0
		assert.NoError(t, cfg.Validate())
	})
}
