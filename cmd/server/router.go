package main

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/quill/internal/api"
	apiMiddleware "github.com/phrazzld/quill/internal/api/middleware"
	"github.com/phrazzld/quill/internal/service/auth"
)

// handlers groups the API handlers mounted by newRouter.
type handlers struct {
	tasks    *api.TaskHandler
	series   *api.SeriesHandler
	topics   *api.TopicHandler
	settings *api.SettingsHandler
	health   *api.HealthHandler
}

// setupRouter builds the handlers from the application dependencies.
func (app *application) setupRouter() http.Handler {
	h := handlers{
		tasks: api.NewTaskHandler(app.queue, app.runner, app.taskStore, app.documentStore,
			app.config.Queue.RetentionDays, app.logger),
		series:   api.NewSeriesHandler(app.series, app.seriesStore, app.logger),
		topics:   api.NewTopicHandler(app.topicStore),
		settings: api.NewSettingsHandler(app.settingsStore, app.runner, app.logger),
		health:   api.NewHealthHandler(app.reporter),
	}
	return newRouter(h, app.tokens, app.media.Dir(), app.logger)
}

// newRouter mounts the public liveness and media routes and the token
// protected admin API.
func newRouter(h handlers, tokens auth.TokenService, mediaDir string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health.Live)
	if mediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(filesOnly{http.Dir(mediaDir)})))
	}

	authMiddleware := apiMiddleware.NewAuthMiddleware(tokens)
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/health", h.health.Report)

		r.Post("/tasks", h.tasks.CreateTask)
		r.Get("/tasks", h.tasks.ListTasks)
		r.Get("/tasks/{id}", h.tasks.GetTask)
		r.Post("/documents/{id}/rewrite", h.tasks.RewriteDocument)

		r.Get("/queue/stats", h.tasks.Stats)
		r.Post("/queue/run", h.tasks.RunQueue)
		r.Post("/queue/cleanup", h.tasks.Cleanup)

		r.Get("/topics", h.topics.ListTopics)
		r.Post("/topics", h.topics.CreateTopic)

		r.Get("/series", h.series.ListSeries)
		r.Post("/series", h.series.CreateSeries)
		r.Get("/series/{id}", h.series.GetSeries)
		r.Post("/series/{id}/suggestions", h.series.Suggest)
		r.Post("/series/{id}/topics", h.series.Accept)

		r.Get("/settings", h.settings.ListSettings)
		r.Put("/settings/{key}", h.settings.SetSetting)
		r.Delete("/settings/{key}", h.settings.DeleteSetting)
	})

	return r
}

// filesOnly hides directories so the media route never lists its contents.
type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
