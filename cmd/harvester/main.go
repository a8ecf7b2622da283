package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/fetchapi/internal/app"
	"github.com/samvad-hq/fetchapi/internal/config"
	"github.com/samvad-hq/fetchapi/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "harvester start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	log := logger.Default()
	log.InfoObj("harvester starting", "config", map[string]any{
		"app_env":          cfg.Env,
		"document_url":     cfg.DocumentURL,
		"production":       cfg.Production,
		"credentials_mode": cfg.CredentialsMode,
		"endpoints_file":   cfg.EndpointsFile,
		"publishers_file":  cfg.PublishersFile,
		"harvest_interval": cfg.HarvestInterval.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	harvester, err := app.NewHarvester(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize harvester", "error", err.Error())
		return err
	}

	if err := harvester.Run(ctx); err != nil {
		return fmt.Errorf("harvester run: %w", err)
	}

	return nil
}
