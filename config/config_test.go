package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentworld/storage"
	"agentworld/storage/sqlite"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentworld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: sqlite
  path: ./data/agentworld.db
providers:
  default: anthropic
  anthropic:
    api_key: sk-test
    model: claude-sonnet-4-20250514
limits:
  history_capacity: 500
  memory_window: 20
  max_turns: 8
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "./data/agentworld.db", cfg.Storage.Path)
	assert.Equal(t, "anthropic", cfg.Providers.Default)
	assert.Equal(t, "sk-test", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, 500, cfg.Limits.HistoryCapacity)
	assert.Equal(t, 20, cfg.Limits.MemoryWindow)
	assert.Equal(t, 8, cfg.Limits.MaxTurns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("AGENTWORLD_LOG_LEVEL", "error")
	t.Setenv("AGENTWORLD_PROVIDERS_OPENAI_API_KEY", "sk-env")

	path := writeConfig(t, `
log:
  level: info
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "sk-env", cfg.Providers.OpenAI.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  backend: postgres\n"))
	require.ErrorContains(t, err, "storage backend")

	_, err = Load(writeConfig(t, "storage:\n  backend: sqlite\n"))
	require.ErrorContains(t, err, "storage.path")

	_, err = Load(writeConfig(t, "log:\n  level: loud\n"))
	require.ErrorContains(t, err, "log level")

	_, err = Load(writeConfig(t, "limits:\n  max_turns: -1\n"))
	require.ErrorContains(t, err, "negative")
}

func TestStoreConstruction(t *testing.T) {
	mem := Config{}
	s, err := mem.Store()
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)

	dir := t.TempDir()
	file := Config{Storage: StorageConfig{Backend: BackendFile, Path: dir}}
	s, err = file.Store()
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStore{}, s)

	db := Config{Storage: StorageConfig{Backend: BackendSQLite, Path: filepath.Join(dir, "w.db")}}
	s, err = db.Store()
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
}

func TestModelsBuiltForConfiguredProviders(t *testing.T) {
	cfg := Config{}
	assert.Empty(t, cfg.Models())

	cfg.Providers.OpenAI.APIKey = "sk-test"
	models := cfg.Models()
	require.Len(t, models, 1)
	assert.Equal(t, "openai", models["openai"].Info().Provider)

	cfg.Providers.Default = "anthropic"
	cfg.Providers.Anthropic.Model = "claude-sonnet-4-20250514"
	models = cfg.Models()
	require.Len(t, models, 2)
	assert.Equal(t, "claude-sonnet-4-20250514", models["anthropic"].Info().Name)
}
