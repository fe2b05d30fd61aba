package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/ryokai-gateway/internal/adapters/llm"
	"github.com/PabloGalante/ryokai-gateway/internal/config"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "ryokai-api dev")
}

func TestExportCmdPrintsActiveSession(t *testing.T) {
	t.Setenv("RYOKAI_STORAGE_BACKEND", config.StorageSQLite)
	t.Setenv("RYOKAI_SQLITE_PATH", filepath.Join(t.TempDir(), "ryokai.db"))
	t.Setenv("RYOKAI_USE_MOCK_LLM", "true")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"export"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Ryōkai OS Archive: First Dialogue")
}

func TestExportCmdUnknownSession(t *testing.T) {
	t.Setenv("RYOKAI_STORAGE_BACKEND", config.StorageMemory)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"export", "--session", "missing"})

	assert.Error(t, cmd.Execute())
}

func TestServiceOptionsFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.APIKey = "seed-key-1234567890"

	opts := serviceOptions(cfg, true)
	assert.True(t, opts.Background)
	assert.Equal(t, cfg.Models.Gateway, opts.Flow.GatewayModel)
	assert.Equal(t, cfg.Pacing.StepPause, opts.Flow.Pacing.StepPause)
	assert.Equal(t, cfg.Pacing.VideoMaxPolls, opts.Flow.VideoMaxPolls)
	assert.Equal(t, cfg.Pacing.RunTimeout, opts.RunTimeout)
	assert.Equal(t, "seed-key-1234567890", opts.InitialCredential)
}

func TestNewBackendsHonoursMockFlag(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.UseMockLLM = true
	assert.IsType(t, &llm.MockFactory{}, newBackends(cfg))

	cfg.UseMockLLM = false
	assert.IsType(t, &llm.GenAIFactory{}, newBackends(cfg))
}
