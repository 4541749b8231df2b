package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, 14, cfg.RetentionDays)
	assert.Equal(t, 0, cfg.Workers)
	assert.False(t, cfg.Nonblocking)
	assert.Empty(t, cfg.Tools)
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	content := `
mode: ci
workers: 8
timeout_seconds: 120
nonblocking: true
disabled_tools:
  - semgrep
tools:
  - name: custom-lint
    match: ["*.xyz"]
    license: permissive
    command: ["custom-lint", "--strict"]
    check_args: ["--verify"]
    fix_args: ["--write"]
    supports_fix: true
    cost: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".huskycat.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "ci", cfg.Mode)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 120, cfg.TimeoutSeconds)
	assert.True(t, cfg.Nonblocking)
	assert.Equal(t, []string{"semgrep"}, cfg.DisabledTools)

	require.Len(t, cfg.Tools, 1)
	tool := cfg.Tools[0]
	assert.Equal(t, "custom-lint", tool.Name)
	assert.Equal(t, []string{"*.xyz"}, tool.Match)
	assert.Equal(t, []string{"custom-lint", "--strict"}, tool.Command)
	assert.Equal(t, []string{"--verify"}, tool.CheckArgs)
	assert.True(t, tool.SupportsFix)
	assert.Equal(t, 4, tool.Cost)
}

func TestLoadMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".huskycat.yaml"), []byte("mode: [unclosed"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HUSKYCAT_MODE", "pipeline")
	t.Setenv("HUSKYCAT_TIMEOUT_SECONDS", "30")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "pipeline", cfg.Mode)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
}

func TestLoadClampsInvalidValues(t *testing.T) {
	t.Setenv("HUSKYCAT_TIMEOUT_SECONDS", "-5")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.TimeoutSeconds)
	assert.Equal(t, 14, cfg.RetentionDays)
}
