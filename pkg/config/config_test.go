package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SITESMITH_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 0.1, cfg.Temperature)
	assert.Equal(t, 15, cfg.MaxIterations)
	assert.Equal(t, 10*time.Minute, cfg.SandboxTimeout)
	assert.Equal(t, 3000, cfg.PreviewPort)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "sitesmith.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model_provider: gemini
model: gemini-2.0-flash
workers: 2
sandbox_timeout: 5m
journal: badger
`), 0o644))

	t.Setenv("SITESMITH_CONFIG", path)
	t.Setenv("WORKERS", "8")
	t.Setenv("SANDBOX_TIMEOUT", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.ModelProvider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, "badger", cfg.Journal)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.SandboxTimeout)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SITESMITH_CONFIG", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAX_ITERATIONS=3\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MAX_ITERATIONS") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxIterations)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Journal = "postgres"
	assert.ErrorContains(t, cfg.Validate(), "unknown journal")

	cfg = Default()
	cfg.MaxIterations = 0
	assert.ErrorContains(t, cfg.Validate(), "max iterations")
}
