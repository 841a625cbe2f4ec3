// Package setup prepares the data directory and registers the MCP server
// with a desktop MCP client.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caddl-lab-desk/internal/config"
)

// ServerKey is the entry name written into the client's mcpServers map.
const ServerKey = "caddl-lab-desk"

// ClientConfig represents the desktop client configuration file structure.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	// other keys of the client's file are preserved
	extra map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// RegisterOptions contains options for registering the server.
type RegisterOptions struct {
	ConfigPath string // client config file; empty selects the platform default
	BinaryPath string
	DataDir    string
	APIKeyEnv  bool // forward GEMINI_API_KEY from the current environment
}

// DefaultClientConfigPath returns the platform location of the desktop
// client's config file.
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig loads the client configuration. A missing file yields
// an empty configuration.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]MCPServerConfig{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		if cfg.MCPServers == nil {
			cfg.MCPServers = map[string]MCPServerConfig{}
		}
		delete(cfg.extra, "mcpServers")
	}
	return cfg, nil
}

// SaveClientConfig writes the configuration, keeping unrelated keys.
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or updates the server entry in the client configuration
// and returns the file that was written.
func Register(opts RegisterOptions) (string, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = DefaultClientConfigPath(); err != nil {
			return "", err
		}
	}
	if opts.BinaryPath == "" {
		return "", fmt.Errorf("server binary path is required")
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	entry := MCPServerConfig{Command: opts.BinaryPath, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env["CADDL_DATA_DIR"] = opts.DataDir
	}
	if opts.APIKeyEnv {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			entry.Env["GEMINI_API_KEY"] = key
		}
	}
	cfg.MCPServers[ServerKey] = entry

	return path, SaveClientConfig(path, cfg)
}

// Status represents the current setup status.
type Status struct {
	DataDir          string
	DataDirExists    bool
	DatabaseExists   bool
	ConfigFileExists bool
	AIConfigured     bool
	ClientConfigPath string
	Registered       bool
	ServerPath       string
	Issues           []string
}

// GetStatus inspects the data directory and the client registration.
func GetStatus(lite *config.LiteConfig, clientConfigPath string) *Status {
	status := &Status{
		DataDir:          lite.DataDir,
		AIConfigured:     lite.APIKey != "",
		ClientConfigPath: clientConfigPath,
	}

	status.DataDirExists = exists(lite.DataDir)
	status.DatabaseExists = exists(lite.DBPath())
	status.ConfigFileExists = exists(lite.ConfigPath())
	if !status.DataDirExists {
		status.Issues = append(status.Issues, fmt.Sprintf("Data directory will be created on first run: %s", lite.DataDir))
	}
	if !status.AIConfigured {
		status.Issues = append(status.Issues, "GEMINI_API_KEY is not set; AI insight is disabled")
	}

	if clientConfigPath != "" {
		cfg, err := LoadClientConfig(clientConfigPath)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load client config: %v", err))
		} else if entry, ok := cfg.MCPServers[ServerKey]; ok {
			status.Registered = true
			status.ServerPath = entry.Command
			if !exists(entry.Command) {
				status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", entry.Command))
			}
		}
	}
	return status
}

// Validate checks the lite configuration and the data directory. Issues
// that resolve themselves on first run are warnings and do not fail.
func Validate(lite *config.LiteConfig) (bool, []string) {
	var (
		issues []string
		ok     = true
	)

	if lite.DataDir == "" {
		return false, []string{"data directory is not set"}
	}
	if info, err := os.Stat(lite.DataDir); err == nil && !info.IsDir() {
		ok = false
		issues = append(issues, fmt.Sprintf("Data path is not a directory: %s", lite.DataDir))
	}
	if lite.CatalogPath != "" && !exists(lite.CatalogPath) {
		ok = false
		issues = append(issues, fmt.Sprintf("Catalog file not found: %s", lite.CatalogPath))
	}
	if lite.AITimeout <= 0 {
		ok = false
		issues = append(issues, "AI timeout must be positive")
	}
	if lite.APIKey == "" {
		issues = append(issues, "GEMINI_API_KEY is not set; AI insight is disabled")
	}
	return ok, issues
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
