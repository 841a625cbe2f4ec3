package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/app"
	"github.com/caddl-lab-desk/internal/config"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	cfg    *config.LiteConfig
	out    io.Writer
	reader *bufio.Reader
	logger *logrus.Logger
}

// NewCLI creates a new setup CLI instance.
func NewCLI(cfg *config.LiteConfig, logger *logrus.Logger) *CLI {
	return &CLI{
		cfg:    cfg,
		out:    os.Stdout,
		reader: bufio.NewReader(os.Stdin),
		logger: logger,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "init":
		return c.initialize(ctx)
	case "status":
		return c.showStatus(args[1:])
	case "validate":
		return c.validate()
	case "seed":
		return c.seed(ctx, hasFlag(args[1:], "--force", "-f"))
	case "register":
		return c.register(args[1:])
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		c.showHelp()
		return fmt.Errorf("unknown setup command %q", args[0])
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprint(c.out, `
CADDL Lab Desk Setup

Usage:
  mcp-server setup <command> [options]

Commands:
  init       Create the data directory, a default config.yaml and the database
  status     Show data directory, database and client registration status
  validate   Validate the current environment configuration
  seed       Write the demo report if no reports exist (--force to append anyway)
  register   Add this server to the desktop MCP client config
             [--binary PATH] [--config PATH] [--with-api-key] [--yes]

Environment:
  CADDL_DATA_DIR, CADDL_CATALOG_PATH, GEMINI_API_KEY, CADDL_LOG_LEVEL
`)
	return nil
}

func (c *CLI) initialize(ctx context.Context) error {
	if err := c.cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	fmt.Fprintf(c.out, "✓ Data directory: %s\n", c.cfg.DataDir)

	if exists(c.cfg.ConfigPath()) {
		fmt.Fprintf(c.out, "- Config file already present: %s\n", c.cfg.ConfigPath())
	} else {
		if err := config.WriteDefaults(c.cfg.ConfigPath()); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✓ Config file: %s\n", c.cfg.ConfigPath())
	}

	a, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Fprintf(c.out, "✓ Database: %s\n", c.cfg.DBPath())

	if c.cfg.SeedDemo {
		seeded, err := a.Reports.Seed(ctx, false)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintln(c.out, "✓ Demo report written")
		}
	}
	return nil
}

func (c *CLI) showStatus(args []string) error {
	clientPath := flagValue(args, "--config", "-c")
	if clientPath == "" {
		clientPath, _ = DefaultClientConfigPath()
	}
	status := GetStatus(c.cfg, clientPath)

	fmt.Fprintln(c.out, "CADDL Lab Desk Status")
	fmt.Fprintln(c.out, "=====================")
	fmt.Fprintf(c.out, "Data directory: %s (%s)\n", status.DataDir, mark(status.DataDirExists))
	fmt.Fprintf(c.out, "Database:       %s (%s)\n", c.cfg.DBPath(), mark(status.DatabaseExists))
	fmt.Fprintf(c.out, "Config file:    %s (%s)\n", c.cfg.ConfigPath(), mark(status.ConfigFileExists))
	fmt.Fprintf(c.out, "AI analysis:    %s\n", mark(status.AIConfigured))
	fmt.Fprintf(c.out, "MCP client:     %s (%s)\n", status.ClientConfigPath, mark(status.Registered))
	if status.Registered {
		fmt.Fprintf(c.out, "  Binary: %s\n", status.ServerPath)
	}

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "\nIssues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
	}
	return nil
}

func (c *CLI) validate() error {
	valid, issues := Validate(c.cfg)
	if valid {
		fmt.Fprintln(c.out, "✓ Configuration is valid!")
	} else {
		fmt.Fprintln(c.out, "✗ Configuration has issues:")
	}
	for _, issue := range issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	if !valid {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

func (c *CLI) seed(ctx context.Context, force bool) error {
	a, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	seeded, err := a.Reports.Seed(ctx, force)
	if err != nil {
		return err
	}
	if seeded {
		fmt.Fprintln(c.out, "✓ Demo report written")
	} else {
		fmt.Fprintln(c.out, "- Reports already exist; nothing seeded (use --force to append)")
	}
	return nil
}

func (c *CLI) register(args []string) error {
	opts := RegisterOptions{
		ConfigPath: flagValue(args, "--config", "-c"),
		BinaryPath: flagValue(args, "--binary", "-b"),
		DataDir:    c.cfg.DataDir,
		APIKeyEnv:  hasFlag(args, "--with-api-key"),
	}
	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	if !hasFlag(args, "--yes", "-y") {
		fmt.Fprintf(c.out, "Register %s in the MCP client config? [Y/n]: ", opts.BinaryPath)
		response, _ := c.reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Registration cancelled.")
			return nil
		}
	}

	path, err := Register(opts)
	if err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}
	fmt.Fprintf(c.out, "✓ Registered in %s\n", path)
	fmt.Fprintln(c.out, "Restart the MCP client to load the new configuration.")
	return nil
}

// openApp opens the lite stack without AI and without implicit seeding.
func (c *CLI) openApp(ctx context.Context) (*app.App, error) {
	cfg := c.cfg.ToConfig()
	cfg.Storage.SeedDemo = false
	cfg.AI.Enabled = false
	return app.New(ctx, cfg, "setup", c.logger)
}

func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}

func flagValue(args []string, names ...string) string {
	for i := 0; i < len(args)-1; i++ {
		for _, n := range names {
			if args[i] == n {
				return args[i+1]
			}
		}
	}
	return ""
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
