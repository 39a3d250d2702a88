package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/veloxi/forge-api/internal/artifact"
	"github.com/veloxi/forge-api/internal/config"
	"github.com/veloxi/forge-api/internal/events"
	"github.com/veloxi/forge-api/internal/platform/postgres"
	"github.com/veloxi/forge-api/internal/provider"
	"github.com/veloxi/forge-api/internal/service"
	"github.com/veloxi/forge-api/internal/worker"
)

// application holds the fully wired dependencies of the running server.
type application struct {
	config            *config.Config
	logger            *slog.Logger
	broker            *events.Broker
	orchestrator      *worker.Orchestrator
	generationService *service.GenerationService
}

// newApplication wires stores, provider clients, the worker orchestrator,
// and the generation service from configuration.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	generations := postgres.NewPostgresGenerationStore(db, logger)
	textures := postgres.NewPostgresTextureStore(db, logger)

	broker := events.NewBroker(logger)
	fetcher := artifact.NewFetcher(cfg.Storage.Dir, cfg.Storage.PublicBaseURL, logger)

	var renderer artifact.Renderer = artifact.NoopRenderer{}
	if external := artifact.NewExternalRenderer(cfg.Storage.ThumbnailRenderCmd, logger); external != nil {
		renderer = external
	}

	meshy := provider.NewMeshyClient(cfg.Providers.MeshyBaseURL, cfg.Providers.MeshyAPIKey, logger)
	masterpiece := provider.NewMasterpieceClient(cfg.Providers.MasterpieceBaseURL, cfg.Providers.MasterpieceAPIKey, logger)
	rodin := provider.NewRodinClient(cfg.Providers.RodinBaseURL, cfg.Providers.RodinAPIKey, logger)
	sonic := provider.NewSonicClient(cfg.Providers.SonicBaseURL, cfg.Providers.SonicAPIKey, logger)

	lanes := worker.StandardLanes(
		provider.NewMeshyPreviewAdapter(meshy),
		provider.NewMeshyRefineAdapter(meshy),
		provider.NewMasterpieceAdapter(masterpiece),
		provider.NewRodinAdapter(rodin),
		provider.NewSonicAdapter(sonic),
	)

	orchestrator, err := worker.NewOrchestrator(worker.Deps{
		Generations: generations,
		Textures:    textures,
		Fetcher:     fetcher,
		Renderer:    renderer,
		Notifier:    broker,
		Logger:      logger,
	}, lanes...)
	if err != nil {
		return nil, fmt.Errorf("failed to build worker orchestrator: %w", err)
	}

	generationService := service.NewGenerationService(
		generations,
		textures,
		orchestrator,
		service.NewCooldownPolicy(generations, logger),
		meshy,
		masterpiece,
		rodin,
		sonic,
		logger,
	)

	return &application{
		config:            cfg,
		logger:            logger,
		broker:            broker,
		orchestrator:      orchestrator,
		generationService: generationService,
	}, nil
}
