package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSec)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, 24, cfg.Ledger.TTLHours)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.ListenAddr)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
api:
  base_url: https://class.example.com/api
  timeout_sec: 10
ledger:
  backend: sqlite
  sqlite_path: /tmp/ledger.db
classroom:
  default_id: room-7
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://class.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.API.TimeoutSec)
	assert.Equal(t, "sqlite", cfg.Ledger.Backend)
	assert.Equal(t, "/tmp/ledger.db", cfg.Ledger.SQLitePath)
	assert.Equal(t, "room-7", cfg.Classroom.DefaultID)
	// Unset keys keep their defaults.
	assert.Equal(t, 24, cfg.Ledger.TTLHours)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CLASSROOM_API_BASE_URL", "https://env.example.com/api")
	t.Setenv("CLASSROOM_LEDGER_TTL_HOURS", "6")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 6, cfg.Ledger.TTLHours)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  backend: etcd\n"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "ledger.backend")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.API.BaseURL = "https://saved.example.com/api"
	cfg.Metrics.ListenAddr = ":9090"
	cfg.Classroom.DefaultID = "room-1"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
