// Command labctl administers a lab desk installation: it classifies
// values, inspects the catalog and saved reports, moves backups and runs
// schema migrations against the configured backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caddl-lab-desk/internal/app"
	"github.com/caddl-lab-desk/internal/config"
	"github.com/caddl-lab-desk/internal/domain"
)

var version = "dev"

// cli carries state shared by every subcommand.
type cli struct {
	configFile string
	verbose    bool

	cfg    *domain.Config
	logger *logrus.Logger
	app    *app.App
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root, c := newRootCmd()
	err := root.ExecuteContext(ctx)
	if closeErr := c.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:           "labctl",
		Short:         "Administer the CADDL lab desk",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "path to config.yaml")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.classifyCmd(),
		c.catalogCmd(),
		c.reportsCmd(),
		c.backupCmd(),
		c.seedCmd(),
		c.migrateCmd(),
	)
	return root, c
}

// loadConfig reads and validates the configuration once.
func (c *cli) loadConfig() (*domain.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	m, err := config.NewManager(c.configFile)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := m.GetConfig()
	cfg.Logging.Output = "stderr"
	if c.verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}
	// The CLI never seeds implicitly; use "labctl seed".
	cfg.Storage.SeedDemo = false

	c.cfg = cfg
	c.logger = app.NewLogger(cfg.Logging)
	return cfg, nil
}

// open wires the application against the configured backend.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, version, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}
