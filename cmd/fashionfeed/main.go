package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"fashionfeed/internal/app"
	"fashionfeed/internal/config"
	"fashionfeed/internal/logging"
)

func main() {
	loop := flag.Duration("loop", 0, "re-run on this interval instead of exiting (local operation)")
	flag.Parse()

	// .env is optional; scheduled environments inject variables directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	application := app.New(cfg, logger)
	ctx := context.Background()

	runOnce := func() {
		stats := application.Run(ctx)
		logger.Info("invocation finished",
			"posted", stats.Posted,
			"checked", stats.Checked,
			"errors", stats.Errors,
		)
	}

	runOnce()
	if *loop <= 0 {
		return
	}

	ticker := time.NewTicker(*loop)
	defer ticker.Stop()
	for range ticker.C {
		runOnce()
	}
}
