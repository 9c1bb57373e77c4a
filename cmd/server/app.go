package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/content"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/health"
	"github.com/phrazzld/quill/internal/platform/blob"
	"github.com/phrazzld/quill/internal/platform/gemini"
	"github.com/phrazzld/quill/internal/platform/ollama"
	"github.com/phrazzld/quill/internal/platform/openai"
	"github.com/phrazzld/quill/internal/platform/postgres"
	"github.com/phrazzld/quill/internal/schedule"
	"github.com/phrazzld/quill/internal/series"
	"github.com/phrazzld/quill/internal/service/auth"
	"github.com/phrazzld/quill/internal/store"
	"github.com/phrazzld/quill/internal/task"
)

// application holds the wired dependencies of the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore     store.TaskStore
	topicStore    store.TopicStore
	seriesStore   store.SeriesStore
	documentStore store.ContentRepository
	settingsStore store.SettingsStore

	tokens    auth.TokenService
	providers *generation.Registry
	media     *blob.LocalStore

	timer    *schedule.Timer
	queue    *task.Queue
	runner   *task.Runner
	series   *series.Service
	reporter *health.Reporter
}

// newProviderRegistry registers every supported text provider.
func newProviderRegistry(logger *slog.Logger) *generation.Registry {
	registry := generation.NewRegistry(logger)
	registry.Register(config.ProviderOpenAI, openai.Factory)
	registry.Register(config.ProviderGemini, gemini.Factory)
	registry.Register(config.ProviderOllama, ollama.Factory)
	return registry
}

// newApplication wires stores, providers, the queue and its runner. Nothing
// runs until Run is called.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.tokens, err = auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	app.taskStore = postgres.NewTaskStore(db, logger)
	app.topicStore = postgres.NewTopicStore(db)
	app.seriesStore = postgres.NewSeriesStore(db)
	app.documentStore = postgres.NewDocumentStore(db)
	app.settingsStore = postgres.NewSettingsStore(db)
	uow := postgres.NewUnitOfWork(db)

	app.providers = newProviderRegistry(logger)

	app.media, err = blob.NewLocalStore(cfg.Media.Dir, cfg.Media.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	imageGen, err := gemini.NewImageGenerator(gemini.ImageConfig{
		Model:       cfg.Image.Model,
		AspectRatio: cfg.Image.AspectRatio,
		KeySource:   app.imageAPIKey,
	}, logger.With("component", "image_generator"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image generator: %w", err)
	}
	images := content.NewImageResolver(imageGen, app.media, cfg.Image.RatePerMinute, logger)

	app.timer = schedule.NewTimer(logger)
	app.queue = task.NewQueue(app.taskStore, app.timer, logger)
	pipeline := task.NewPipeline(app.topicStore, app.documentStore, uow, app.providers, images, logger)
	app.runner = task.NewRunner(app.queue, pipeline, cfg, app.settingsStore, logger)

	app.series = series.NewService(app.seriesStore, app.queue, func(ctx context.Context) (generation.Provider, error) {
		return task.SelectProvider(app.providers, app.runner.Runtime(ctx))
	}, logger)

	app.reporter = health.NewReporter(db, app.taskStore, app.timer, app.runner.Runtime, app.providers, logger)

	logger.Info("application initialized",
		"providers", app.providers.Names(),
		"image_generation", imageGen.Configured(context.Background()))
	return app, nil
}

// imageAPIKey resolves the image key from the current runtime settings so
// stored overrides apply without a restart.
func (app *application) imageAPIKey(ctx context.Context) string {
	if app.runner == nil {
		return app.config.Runtime().ImageAPIKey()
	}
	return app.runner.Runtime(ctx).ImageAPIKey()
}

// Run starts the timer and the runner, then serves HTTP until ctx is done.
func (app *application) Run(ctx context.Context) error {
	app.timer.Start()
	if err := app.runner.Start(ctx); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start runner: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the timer and closes the database pool.
func (app *application) cleanup() {
	if app.timer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.timer.Stop(ctx); err != nil {
			app.logger.Error("timer did not stop cleanly", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
