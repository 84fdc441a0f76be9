package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"m3u-live-events/config"
	"m3u-live-events/logger"
	"m3u-live-events/runner"
)

func main() {
	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// manually set time zone
	if tz := os.Getenv("TZ"); tz != "" {
		var err error
		time.Local, err = time.LoadLocation(tz)
		if err != nil {
			logger.Default.Errorf("error loading location '%s': %v", tz, err)
		}
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Default.Fatalf("Error loading config: %v", err)
	}
	config.SetConfig(cfg)

	closer := logger.Configure(cfg.LogFile)

	err = runner.Run(ctx, cfg)
	if err != nil {
		logger.Default.Errorf("Scrape failed: %v", err)
	}
	_ = closer.Close()
	if err != nil {
		os.Exit(1)
	}
}
