package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-matter"))
	require.Error(t, err, "explicit missing file is an error")

	// No explicit path and no lattice.yaml in cwd falls back to defaults.
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 10, cfg.Scheduler.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  request_timeout: 5s
cache:
  type: redis
  url: redis://localhost:6379/2
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Cache.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Scheduler.RedisAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
`)
	t.Setenv("LATTICE_SERVER_ADDR", ":7070")
	t.Setenv("LATTICE_LOGGING_LEVEL", "warn")
	t.Setenv("LATTICE_SCHEDULER__REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "redis.internal:6379", cfg.Scheduler.RedisAddr)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("LATTICE_SERVER_ADDR"))
	assert.Equal(t, "scheduler.redis_addr", envKey("LATTICE_SCHEDULER__REDIS_ADDR"))
	assert.Equal(t, "cache.type", envKey("LATTICE_CACHE_TYPE"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Logging.Level")

	cfg = Default()
	cfg.Cache.Type = "redis"
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.url")

	cfg = Default()
	cfg.Scheduler.Concurrency = 0
	assert.Error(t, Validate(cfg))
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: extreme
`)
	_, err := Load(path)
	assert.Error(t, err)
}
