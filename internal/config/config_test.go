package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ryokai.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Pacing.StepPause)
	assert.Equal(t, 50*time.Millisecond, cfg.Pacing.FastPause)
	assert.Equal(t, 0, cfg.Persona.SummaryCap)
	assert.Equal(t, 15*time.Minute, cfg.Pacing.RunTimeout)
}

func TestLoadRunTimeoutFromEnv(t *testing.T) {
	t.Setenv("RYOKAI_RUN_TIMEOUT", "90s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Pacing.RunTimeout)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
storage_backend: sqlite
retry:
  max_attempts: 3
  base_delay: 250ms
pacing:
  step_pause: 2s
persona:
  summary_cap: 500
`)
	t.Setenv("RYOKAI_PORT", "7070")
	t.Setenv("RYOKAI_SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Pacing.StepPause)
	assert.Equal(t, 500, cfg.Persona.SummaryCap)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"firestore without project", "storage_backend: firestore\n", "gcp_project is required"},
		{"unknown backend", "storage_backend: redis\n", "unknown storage_backend"},
		{"negative cap", "persona:\n  summary_cap: -1\n", "summary_cap must not be negative"},
		{"fast pause above step pause", "pacing:\n  step_pause: 10ms\n  fast_pause: 20ms\n", "fast_pause must not exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBadEnvDuration(t *testing.T) {
	t.Setenv("RYOKAI_STEP_PAUSE", "soon")
	_, err := Load("")
	require.Error(t, err)
}
