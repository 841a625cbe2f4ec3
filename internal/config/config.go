package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/caddl-lab-desk/internal/database"
	"github.com/caddl-lab-desk/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. CADDL_SERVER_PORT.
const EnvPrefix = "CADDL"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager. An empty configFile
// searches the default locations; a missing file is not an error.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/caddl-lab-desk/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "GEMINI_API_KEY", "API_KEY")

	setDefaults(v)
	return v
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := newViper()
	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "45s")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Storage defaults
	v.SetDefault("storage.backend", domain.BackendSQLite)
	v.SetDefault("storage.sqlite_path", "caddl.db")
	v.SetDefault("storage.seed_demo", true)
	v.SetDefault("storage.redis.url", "redis://localhost:6379")
	v.SetDefault("storage.redis.key_prefix", "caddl:")
	v.SetDefault("storage.redis.max_retries", 3)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.pool_timeout", "4s")
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.database", "caddl")
	v.SetDefault("storage.database.username", "postgres")
	v.SetDefault("storage.database.password", "")
	v.SetDefault("storage.database.ssl_mode", "disable")
	v.SetDefault("storage.database.max_open_conns", 25)
	v.SetDefault("storage.database.max_idle_conns", 5)
	v.SetDefault("storage.database.conn_max_lifetime", "5m")
	v.SetDefault("storage.database.migrations_path", "")

	// Catalog defaults
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.watch", false)

	// AI defaults
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.model", "gemini-3-flash-preview")
	v.SetDefault("ai.vision_model", "gemini-3-flash-preview")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.rate_limit", 2)
	v.SetDefault("ai.thinking_budget", 10000)
	v.SetDefault("ai.cache_size", 128)
	v.SetDefault("ai.cache_ttl", "1h")
	v.SetDefault("ai.breaker.max_requests", 5)
	v.SetDefault("ai.breaker.interval", "30s")
	v.SetDefault("ai.breaker.timeout", "60s")

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_ttl", "12h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "caddl-lab-desk")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// WriteDefaults writes a config file holding every default value.
func WriteDefaults(path string) error {
	v := viper.New()
	setDefaults(v)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetStorageConfig returns storage configuration
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// GetAIConfig returns AI adapter configuration
func (m *Manager) GetAIConfig() *domain.AIConfig {
	return &m.config.AI
}

// ConfigFileUsed returns the file the configuration was read from, if any.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

var validBackends = map[string]bool{
	domain.BackendMemory:     true,
	domain.BackendSQLite:     true,
	domain.BackendRedis:      true,
	domain.BackendPostgresKV: true,
	domain.BackendPostgres:   true,
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	if !validBackends[config.Storage.Backend] {
		return fmt.Errorf("unknown storage backend: %q", config.Storage.Backend)
	}
	switch config.Storage.Backend {
	case domain.BackendSQLite:
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case domain.BackendRedis:
		if config.Storage.Redis.URL == "" {
			return fmt.Errorf("redis URL is required")
		}
	case domain.BackendPostgres, domain.BackendPostgresKV:
		db := config.Storage.Database
		if db.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if db.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if db.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if config.AI.Enabled && config.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	if config.Auth.Enabled {
		if config.Auth.TechNumber == "" || config.Auth.Password == "" {
			return fmt.Errorf("auth requires a tech number and password")
		}
		if len(config.Auth.JWTSecret) < 16 {
			return fmt.Errorf("auth jwt secret must be at least 16 bytes")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// GetDatabaseConnectionString returns a lib/pq style keyword string.
func (m *Manager) GetDatabaseConnectionString() string {
	return database.ConfigFromDomain(m.config.Storage.Database).DSN()
}

// GetDatabaseURL returns a postgres:// URL for pgx and golang-migrate.
func (m *Manager) GetDatabaseURL() string {
	return database.ConfigFromDomain(m.config.Storage.Database).URL()
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

var _ domain.ConfigManager = (*Manager)(nil)
