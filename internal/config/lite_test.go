package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caddl-lab-desk/internal/domain"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "gemini-3-flash-preview", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.AITimeout)
	assert.Equal(t, 128, cfg.CacheSize)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.CatalogPath)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("CADDL_DATA_DIR", "/tmp/test-caddl")
	t.Setenv("CADDL_CATALOG_PATH", "/tmp/catalog.yaml")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CADDL_AI_TIMEOUT", "10s")
	t.Setenv("CADDL_AI_CACHE_SIZE", "0")
	t.Setenv("CADDL_SEED_DEMO", "false")
	t.Setenv("CADDL_LOG_LEVEL", "debug")
	t.Setenv("CADDL_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-caddl", cfg.DataDir)
	assert.Equal(t, "/tmp/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, 10*time.Second, cfg.AITimeout)
	assert.Equal(t, 0, cfg.CacheSize)
	assert.False(t, cfg.SeedDemo)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_IgnoresBadValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("CADDL_AI_TIMEOUT", "soon")
	t.Setenv("CADDL_AI_CACHE_SIZE", "-4")
	t.Setenv("CADDL_SEED_DEMO", "maybe")

	cfg := LoadLiteConfig()

	assert.Equal(t, 30*time.Second, cfg.AITimeout)
	assert.Equal(t, 128, cfg.CacheSize)
	assert.True(t, cfg.SeedDemo)
}

func TestLoadLiteConfig_FallbackAPIKey(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("API_KEY", "fallback")

	assert.Equal(t, "fallback", LoadLiteConfig().APIKey)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.caddl-lab-desk"}

	assert.Equal(t, "/home/user/.caddl-lab-desk/caddl.db", cfg.DBPath())
	assert.Equal(t, "/home/user/.caddl-lab-desk/exports", cfg.ExportDir())
	assert.Equal(t, "/home/user/.caddl-lab-desk/config.yaml", cfg.ConfigPath())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "caddl")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err := os.Stat(cfg.DataDir)
	assert.NoError(t, err)
	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func TestLiteConfig_ToConfig(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/data", Model: "m", AITimeout: time.Second, LogLevel: "warn", LogFormat: "text"}

	full := cfg.ToConfig()
	assert.Equal(t, domain.BackendSQLite, full.Storage.Backend)
	assert.Equal(t, "/data/caddl.db", full.Storage.SQLitePath)
	assert.False(t, full.AI.Enabled, "no key means AI is off")
	assert.Equal(t, "stderr", full.Logging.Output)

	cfg.APIKey = "k"
	assert.True(t, cfg.ToConfig().AI.Enabled)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"CADDL_DATA_DIR",
		"CADDL_CATALOG_PATH",
		"GEMINI_API_KEY",
		"API_KEY",
		"CADDL_AI_MODEL",
		"CADDL_AI_TIMEOUT",
		"CADDL_AI_CACHE_SIZE",
		"CADDL_SEED_DEMO",
		"CADDL_LOG_LEVEL",
		"CADDL_LOG_FORMAT",
	}
	for _, v := range vars {
		// t.Setenv restores the original value after the test.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
