package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:3007", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout.Std())
	assert.Equal(t, 2, cfg.API.Retries)

	assert.Equal(t, time.Second, cfg.Terminal.ReconnectDelay.Std())
	assert.Equal(t, 24, cfg.Terminal.DefaultRows)
	assert.Equal(t, 80, cfg.Terminal.DefaultCols)

	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, "kanban-terminal-tab-order", cfg.Store.Key)
	assert.NotEmpty(t, cfg.Store.Path)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.API, cfg.API)
	assert.Equal(t, def.Terminal, cfg.Terminal)
	assert.Equal(t, def.Store, cfg.Store)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("WORKTABS_API_BASE_URL", "https://kanban.example:8443")
	t.Setenv("WORKTABS_API_WS_BASE_URL", "wss://ws.example")
	t.Setenv("WORKTABS_API_TIMEOUT", "3s")
	t.Setenv("WORKTABS_API_RETRIES", "5")
	t.Setenv("WORKTABS_TERMINAL_RECONNECT_DELAY", "250ms")
	t.Setenv("WORKTABS_STORE_BACKEND", "memory")
	t.Setenv("WORKTABS_LOGGING_LEVEL", "debug")
	t.Setenv("WORKTABS_METRICS_ADDRESS", ":9999")
	t.Setenv("WORKTABS_METRICS_ALLOW_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://kanban.example:8443", cfg.API.BaseURL)
	assert.Equal(t, "wss://ws.example", cfg.API.WSBaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout.Std())
	assert.Equal(t, 5, cfg.API.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Terminal.ReconnectDelay.Std())
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Metrics.AllowOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "relative base url", key: "WORKTABS_API_BASE_URL", val: "/api"},
		{name: "zero reconnect delay", key: "WORKTABS_TERMINAL_RECONNECT_DELAY", val: "0s"},
		{name: "unknown backend", key: "WORKTABS_STORE_BACKEND", val: "redis"},
		{name: "negative retries", key: "WORKTABS_API_RETRIES", val: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("WORKTABS_STORE_BACKEND", "redis")

	cfg := LoadOrDefault()
	assert.Equal(t, StoreFile, cfg.Store.Backend)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worktabs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: http://kanban.local:3007
  retries: 1
terminal:
  reconnect_delay: 2s
  default_cols: 120
store:
  backend: sqlite
  path: /tmp/worktabs-test.db
logging:
  level: warn
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://kanban.local:3007", cfg.API.BaseURL)
	assert.Equal(t, 1, cfg.API.Retries)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout.Std())
	assert.Equal(t, 2*time.Second, cfg.Terminal.ReconnectDelay.Std())
	assert.Equal(t, 120, cfg.Terminal.DefaultCols)
	assert.Equal(t, 24, cfg.Terminal.DefaultRows)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/worktabs-test.db", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFileTOMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worktabs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
base_url = "http://from-file:3007"
timeout = "7s"

[store]
backend = "memory"
`), 0o644))

	t.Setenv("WORKTABS_API_BASE_URL", "http://from-env:3007")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:3007", cfg.API.BaseURL)
	assert.Equal(t, 7*time.Second, cfg.API.Timeout.Std())
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	ini := filepath.Join(dir, "worktabs.ini")
	require.NoError(t, os.WriteFile(ini, []byte("x=1"), 0o644))
	_, err = LoadFile(ini)
	assert.ErrorContains(t, err, "unsupported")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("terminal:\n  reconnect_delay: soon\n"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}
