package app

import (
	"context"
	"log/slog"
	"net/http"

	"fashionfeed/internal/config"
	"fashionfeed/internal/domain"
	"fashionfeed/internal/infrastructure/appwrite"
	"fashionfeed/internal/infrastructure/feed"
	"fashionfeed/internal/infrastructure/images"
	"fashionfeed/internal/infrastructure/telegram"
	"fashionfeed/internal/logging"
	"fashionfeed/internal/relevance"
	"fashionfeed/internal/usecase"
)

// Application wires configuration to adapters and the run orchestration.
type Application struct {
	cfg    config.Config
	runner *usecase.Runner
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	fetcher := feed.NewFetcher(
		&http.Client{Timeout: cfg.Run.FetchTimeout()},
		cfg.Run.FetchTimeout(),
		feed.RetryPolicy{
			MaxAttempts: cfg.Run.RetryAttempts,
			BaseDelay:   cfg.Run.RetryBaseDelay(),
		},
		baseLogger.With("component", "feed"),
	)

	store := appwrite.NewClient(cfg.Appwrite, baseLogger.With("component", "store"))

	resolver := images.NewResolver(
		&http.Client{Timeout: cfg.Run.PageTimeout()},
		cfg.Run.PageTimeout(),
		cfg.Run.MaxImages,
		baseLogger.With("component", "images"),
	)

	publisher := telegram.NewPublisher(cfg.Telegram, baseLogger.With("component", "telegram"))

	filter := relevance.NewFilter(cfg.Filter.Allow, cfg.Filter.Block)

	runner := usecase.NewRunner(usecase.RunnerDeps{
		Source:    fetcher,
		Store:     store,
		Images:    resolver,
		Publisher: publisher,
		Filter:    filter,
		Logger:    baseLogger.With("component", "runner"),
	}, cfg.Feeds, cfg.Run, cfg.Caption)

	return &Application{cfg: cfg, runner: runner}
}

// Run performs a single pipeline invocation and returns its summary.
func (a *Application) Run(ctx context.Context) domain.RunStats {
	return a.runner.Run(ctx)
}
