package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file does not exist", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentengine.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"backend": {"provider": "openai", "model": "gpt-4o", "api_key": "sk-test"},
			"engine": {"max_iterations": 3},
			"sessions": {"driver": "sqlite", "dsn": "file:sessions.db", "cleanup_age": "90m"}
		}`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.Backend.Provider)
		assert.Equal(t, "sk-test", cfg.Backend.APIKey)
		assert.Equal(t, 3, cfg.Engine.MaxIterations)
		assert.Equal(t, "sqlite", cfg.Sessions.Driver)
		assert.Equal(t, 90*time.Minute, cfg.Sessions.CleanupAge)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 8000, cfg.Server.Port)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentengine.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\nprofiles_file: profiles.yaml\n"), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "profiles.yaml", cfg.ProfilesFile)
	})

	t.Run("environment overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentengine.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"backend": {"provider": "openai"}}`), 0644))

		t.Setenv("AGENTENGINE_BACKEND_PROVIDER", "anthropic")
		t.Setenv("AGENTENGINE_BACKEND_API_KEY", "sk-ant-env")
		t.Setenv("AGENTENGINE_ENGINE_MAX_ITERATIONS", "9")
		t.Setenv("AGENTENGINE_SESSIONS_TTL", "2h")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.Backend.Provider)
		assert.Equal(t, "sk-ant-env", cfg.Backend.APIKey)
		assert.Equal(t, 9, cfg.Engine.MaxIterations)
		assert.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	})

	t.Run("file driver gets a default directory", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("AGENTENGINE_SESSIONS_DRIVER", "file")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		require.NoError(t, err)
		assert.Equal(t, "sessions", filepath.Base(cfg.Sessions.Dir))
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agentengine.json")
		require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}
