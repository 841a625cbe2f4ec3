// Command mcp-server serves the lab desk tools over MCP stdio. It needs no
// external services: data lives in a SQLite file under CADDL_DATA_DIR.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caddl-lab-desk/internal/app"
	"github.com/caddl-lab-desk/internal/config"
	"github.com/caddl-lab-desk/internal/mcp"
	"github.com/caddl-lab-desk/internal/setup"
)

var version = "dev"

func main() {
	liteCfg := config.LoadLiteConfig()
	cfg := liteCfg.ToConfig()
	cfg.MCP.ServerVersion = version
	logger := app.NewLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(liteCfg, logger)
		if err := cli.Run(ctx, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := liteCfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	application, err := app.New(ctx, cfg, version, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	logger.WithField("data_dir", liteCfg.DataDir).Info("Starting CADDL Lab Desk MCP server")

	server := mcp.NewServer(cfg.MCP, application.Reports, application.Insights, logger)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("MCP server stopped")
}
