package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veloxi/forge-api/internal/api"
	apiMiddleware "github.com/veloxi/forge-api/internal/api/middleware"
)

// buildRouter configures the application router with all routes and
// middleware.
func (app *application) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	generationHandler := api.NewGenerationHandler(app.generationService, app.logger)
	statusHandler := api.NewStatusHandler(app.broker, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generations/mesh", generationHandler.GenerateMesh)
		r.Post("/generations/audio", generationHandler.GenerateAudio)
		r.Get("/generations", generationHandler.ListMine)
		r.Get("/generations/{taskID}", generationHandler.GetResult)
		r.Get("/generations/{taskID}/events", statusHandler.Stream)
		r.Get("/gallery/{category}", generationHandler.Gallery)
	})

	// Downloaded artifacts are served directly from the storage directory
	// under the same layout the fetcher uses for public URLs.
	fileServer := http.StripPrefix("/assets/", http.FileServer(http.Dir(app.config.Storage.Dir)))
	r.Get("/assets/*", fileServer.ServeHTTP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
