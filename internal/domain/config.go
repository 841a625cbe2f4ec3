package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	Storage     StorageConfig `mapstructure:"storage"`
	Catalog     CatalogConfig `mapstructure:"catalog"`
	AI          AIConfig      `mapstructure:"ai"`
	Auth        AuthConfig    `mapstructure:"auth"`
	Logging     LoggingConfig `mapstructure:"logging"`
	MCP         MCPConfig     `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// Storage backends
const (
	BackendMemory     = "memory"
	BackendSQLite     = "sqlite"
	BackendRedis      = "redis"
	BackendPostgresKV = "postgres-kv"
	BackendPostgres   = "postgres"
)

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend    string         `mapstructure:"backend"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	SeedDemo   bool           `mapstructure:"seed_demo"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Database   DatabaseConfig `mapstructure:"database"`
}

// RedisConfig represents Redis connection configuration
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CatalogConfig points at an optional catalog schema file.
type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// AIConfig configures the generative AI adapter.
type AIConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	VisionModel    string        `mapstructure:"vision_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	ThinkingBudget int32         `mapstructure:"thinking_budget"`
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig represents circuit breaker configuration
type BreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AuthConfig configures the static credential gate.
type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TechNumber string        `mapstructure:"tech_number"`
	Password   string        `mapstructure:"password"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
