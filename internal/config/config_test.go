package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Run in an empty dir so no stray config.yaml is picked up.
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 10, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, 2, cfg.Anthropic.MaxAttempts)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentJobs)
	assert.Equal(t, 30, cfg.Retention.JobMaxAgeDays)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leadscan
anthropic:
  model: claude-sonnet-4-5-20250929
batch:
  max_concurrent_jobs: 8
`
	require.NoError(t, os.WriteFile(dir+"/config.yaml", []byte(yaml), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leadscan", cfg.Store.DatabaseURL)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentJobs)
	// Untouched keys keep defaults.
	assert.Equal(t, 10, cfg.Anthropic.TimeoutSecs)
}

func TestAnthropicTimeout_Fallback(t *testing.T) {
	assert.Equal(t, "10s", AnthropicConfig{}.Timeout().String())
	assert.Equal(t, "3s", AnthropicConfig{TimeoutSecs: 3}.Timeout().String())
}
