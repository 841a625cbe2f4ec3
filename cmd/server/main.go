package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/caddl-lab-desk/internal/app"
	"github.com/caddl-lab-desk/internal/config"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "path to config.yaml (default: search ., ./config, /etc/caddl-lab-desk)")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := app.NewLogger(cfg.Logging)
	logger.WithField("config_file", configManager.ConfigFileUsed()).Info("Configuration loaded")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	application, err := app.New(ctx, cfg, version, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start background services")
	}

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.Storage.Backend,
	}).Info("Starting CADDL Lab Desk")

	if err := application.HTTPServer().Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
