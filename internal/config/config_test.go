package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4096, cfg.Window.Total)
	assert.Equal(t, 512, cfg.Window.ResponseReserve)
	assert.Equal(t, 128, cfg.Window.SafetyMargin)
	assert.Equal(t, "gemini-2.0-flash", cfg.Generator.Model)
	assert.Equal(t, 8, cfg.Quest.DefaultEncounters)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Window, cfg.Window)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
generator:
  model: gemini-2.0-pro
window:
  total: 8192
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-pro", cfg.Generator.Model)
	assert.Equal(t, 8192, cfg.Window.Total)
	// Unset fields fall back.
	assert.Equal(t, 512, cfg.Window.ResponseReserve)
	assert.Equal(t, "normal", cfg.Quest.Difficulty)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window: ["), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvAPIKeyOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
generator:
  api_key: from-file
`), 0o600))

	t.Setenv(APIKeyEnv, "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Generator.APIKey)

	t.Setenv(APIKeyEnv, "")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Generator.APIKey)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Quest.DefaultEncounters = 12
	cfg.Logging.DebugMode = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Quest.DefaultEncounters)
	assert.True(t, loaded.Logging.DebugMode)
}
