// Package config loads application settings. The Manager reads a viper
// config file with environment overrides; LiteConfig needs only a few
// environment variables and backs the stdio tools.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caddl-lab-desk/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// Data lives in one SQLite file under DataDir.
type LiteConfig struct {
	DataDir     string
	CatalogPath string // optional catalog YAML

	// AI settings; an empty key disables insight generation
	APIKey    string
	Model     string
	AITimeout time.Duration
	CacheSize int

	SeedDemo bool

	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	return &LiteConfig{
		DataDir:   filepath.Join(homeDir, ".caddl-lab-desk"),
		Model:     "gemini-3-flash-preview",
		AITimeout: 30 * time.Second,
		CacheSize: 128,
		SeedDemo:  true,
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("CADDL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.CatalogPath = os.Getenv("CADDL_CATALOG_PATH")

	cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("API_KEY")
	}
	if v := os.Getenv("CADDL_AI_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("CADDL_AI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AITimeout = d
		}
	}
	if v := os.Getenv("CADDL_AI_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("CADDL_SEED_DEMO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SeedDemo = b
		}
	}

	if v := os.Getenv("CADDL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CADDL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DBPath returns the path to the SQLite database.
func (c *LiteConfig) DBPath() string {
	return filepath.Join(c.DataDir, "caddl.db")
}

// ExportDir returns the directory for backup archives.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// ConfigPath returns where setup writes the full server config.
func (c *LiteConfig) ConfigPath() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration backed by
// the SQLite store.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Environment: "development",
		Storage: domain.StorageConfig{
			Backend:    domain.BackendSQLite,
			SQLitePath: c.DBPath(),
			SeedDemo:   c.SeedDemo,
		},
		Catalog: domain.CatalogConfig{Path: c.CatalogPath},
		AI: domain.AIConfig{
			Enabled:     c.APIKey != "",
			APIKey:      c.APIKey,
			Model:       c.Model,
			VisionModel: c.Model,
			Timeout:     c.AITimeout,
			RateLimit:   2,
			CacheSize:   c.CacheSize,
			CacheTTL:    time.Hour,
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
		MCP: domain.MCPConfig{
			ServerName:    "caddl-lab-desk",
			ServerVersion: "1.0.0",
		},
	}
}
