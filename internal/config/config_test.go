package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().LLM.BaseURL, cfg.LLM.BaseURL)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  base_url: https://example.test/v1\n  model: custom-model\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "custom-model", cfg.LLM.Model)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: yaml-model\n"), 0o644))
	t.Setenv("AXONFORGE_LLM_MODEL", "env-model")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.LLM.Model)
}

func TestValidateRejectsBadSQLBackend(t *testing.T) {
	cfg := Default()
	cfg.SQL.Backend = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresDSNForPostgres(t *testing.T) {
	cfg := Default()
	cfg.SQL.Backend = "postgres"
	cfg.SQL.DSN = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadImprovementThreshold(t *testing.T) {
	cfg := Default()
	cfg.Autoloop.ImprovementThreshold = 0
	assert.Error(t, cfg.Validate())
}
