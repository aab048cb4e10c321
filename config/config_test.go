package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
        "catalog": {"path": "catalog.json"},
        "optimizer": {"waterfill_threshold": 16},
        "cache": {"size": 64},
        "http": {"addr": ":9000"}
    }`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "catalog.json", cfg.Catalog.Path)
	assert.Equal(t, 16, cfg.Optimizer.WaterfillThreshold)
	assert.Equal(t, 64, cfg.Cache.Size)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	// Unset sections receive defaults.
	assert.Equal(t, 30, cfg.Optimizer.YearBudgetSeconds)
	assert.Equal(t, "fleetpath.db", cfg.Store.Path)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
catalog:
  path: catalog.yaml
http:
  addr: ":8080"
`)
	require.NoError(t, os.Setenv("FP_HTTP__ADDR", ":7070"))
	defer func() { _ = os.Unsetenv("FP_HTTP__ADDR") }()

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoadRejectsMissingCatalog(t *testing.T) {
	path := writeConfig(t, "config.json", `{"http": {"addr": ":8080"}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", `x = 1`)
	_, err := Load(path)
	require.Error(t, err)
}
