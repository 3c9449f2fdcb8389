package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"bootforge/internal/api"
	"bootforge/internal/builder"
	"bootforge/internal/config"
	"bootforge/internal/daemon"
	"bootforge/internal/history"
	"bootforge/internal/logging"
	"bootforge/internal/manifest"
	"bootforge/internal/preview"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store := manifest.NewStore()
	runs, err := history.Open(cfg)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return
	}
	defer runs.Close()

	portal := api.NewPortal(cfg, store,
		builder.New(cfg, store, logger),
		preview.New(cfg, logger),
		runs, logger)

	d, err := daemon.New(cfg, portal, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	d.Stop()
	logger.Info("bootforged shutting down")
}
