package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/provider"
	"github.com/veloxi/forge-api/internal/store"
)

// MeshMode selects which mesh backend a submission goes to.
type MeshMode string

// Supported mesh generation modes.
const (
	MeshModePreview    MeshMode = "preview"
	MeshModeComposite  MeshMode = "composite"
	MeshModeGenerative MeshMode = "generative"
)

// MeshRequest describes a new mesh generation.
type MeshRequest struct {
	Mode   MeshMode
	Prompt string
	Style  string
	Owner  domain.OwnerRef
}

// AudioRequest describes a new audio generation.
type AudioRequest struct {
	Prompt string
	Owner  domain.OwnerRef
}

// PreviewSubmitter starts the preview phase of a two-phase mesh job.
type PreviewSubmitter interface {
	SubmitPreview(ctx context.Context, prompt, artStyle string) (string, error)
}

// PromptSubmitter starts a single-phase job from a prompt. The
// composite, generative, and audio clients all satisfy it.
type PromptSubmitter interface {
	Submit(ctx context.Context, prompt string) (string, error)
}

// Enqueuer places a task on a named worker lane.
type Enqueuer interface {
	Enqueue(lane, taskID string) error
}

// GenerationService implements the submission and retrieval use cases
// exposed to the request and bot layers.
type GenerationService struct {
	generations store.GenerationStore
	textures    store.TextureStore
	enqueuer    Enqueuer
	cooldown    *CooldownPolicy
	logger      *slog.Logger

	meshyPreview PreviewSubmitter
	composite    PromptSubmitter
	generative   PromptSubmitter
	audio        PromptSubmitter
}

// NewGenerationService wires the service from its collaborators.
func NewGenerationService(
	generations store.GenerationStore,
	textures store.TextureStore,
	enqueuer Enqueuer,
	cooldown *CooldownPolicy,
	meshyPreview PreviewSubmitter,
	composite PromptSubmitter,
	generative PromptSubmitter,
	audio PromptSubmitter,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		generations:  generations,
		textures:     textures,
		enqueuer:     enqueuer,
		cooldown:     cooldown,
		logger:       logger.With("component", "generation_service"),
		meshyPreview: meshyPreview,
		composite:    composite,
		generative:   generative,
		audio:        audio,
	}
}

// SubmitMesh starts a new mesh generation with the backend selected by
// the request mode, creates its pending record, and enqueues it for
// polling. A cooldown denial is returned as *CooldownError before any
// remote work is started.
func (s *GenerationService) SubmitMesh(ctx context.Context, req MeshRequest) (*domain.Generation, error) {
	if err := s.cooldown.Check(ctx, req.Owner); err != nil {
		return nil, err
	}

	var (
		taskID string
		prov   domain.Provider
		lane   string
		err    error
	)
	switch req.Mode {
	case MeshModePreview:
		taskID, err = s.meshyPreview.SubmitPreview(ctx, req.Prompt, req.Style)
		prov, lane = domain.ProviderMeshy, provider.LaneMeshPreview
	case MeshModeComposite:
		taskID, err = s.composite.Submit(ctx, req.Prompt)
		prov, lane = domain.ProviderComposite, provider.LaneMeshComposite
	case MeshModeGenerative:
		taskID, err = s.generative.Submit(ctx, req.Prompt)
		prov, lane = domain.ProviderGenerative, provider.LaneMeshGenerative
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("mesh submission failed: %w", err)
	}

	return s.track(ctx, prov, domain.CategoryMesh, lane, taskID, req.Prompt, req.Style, req.Owner)
}

// SubmitAudio starts a new audio generation, creates its pending record,
// and enqueues it for polling.
func (s *GenerationService) SubmitAudio(ctx context.Context, req AudioRequest) (*domain.Generation, error) {
	if err := s.cooldown.Check(ctx, req.Owner); err != nil {
		return nil, err
	}

	taskID, err := s.audio.Submit(ctx, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("audio submission failed: %w", err)
	}

	return s.track(ctx, domain.ProviderAudio, domain.CategoryAudio, provider.LaneAudio, taskID, req.Prompt, "", req.Owner)
}

// track persists the pending record and enqueues the task. A task whose
// record cannot be created is not enqueued.
func (s *GenerationService) track(
	ctx context.Context,
	prov domain.Provider,
	category domain.Category,
	lane string,
	taskID, prompt, style string,
	owner domain.OwnerRef,
) (*domain.Generation, error) {
	gen, err := domain.NewGeneration(prov, category, taskID, prompt, style, owner)
	if err != nil {
		return nil, err
	}
	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, fmt.Errorf("failed to create generation record: %w", err)
	}

	if err := s.enqueuer.Enqueue(lane, taskID); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.Info("generation submitted",
		"generation_id", gen.ID,
		"provider", string(prov),
		"lane", lane,
		"task_id", taskID)
	return gen, nil
}

// GetResult retrieves a generation by task identifier, counts the view,
// and re-enqueues the task if it is still pending so a dropped poll loop
// resumes. The re-enqueue is idempotent against the queue's dedup.
func (s *GenerationService) GetResult(ctx context.Context, taskID string) (*domain.Generation, error) {
	gen, err := s.generations.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.generations.IncrementViewCount(ctx, taskID); err != nil {
		s.logger.Warn("failed to increment view count", "task_id", taskID, "error", err)
	}

	if gen.State == domain.StatePending {
		lane, pollID := laneFor(gen)
		if err := s.enqueuer.Enqueue(lane, pollID); err != nil {
			s.logger.Warn("failed to re-enqueue pending task",
				"task_id", pollID,
				"lane", lane,
				"error", err)
		}
	}

	s.loadTextures(ctx, gen)
	return gen, nil
}

// loadTextures attaches the stored textures to a mesh generation. A
// texture load failure is logged and leaves the generation usable.
func (s *GenerationService) loadTextures(ctx context.Context, gen *domain.Generation) {
	if gen.Category != domain.CategoryMesh {
		return
	}
	textures, err := s.textures.ListByGenerationID(ctx, gen.ID)
	if err != nil {
		s.logger.Warn("failed to load textures", "generation_id", gen.ID, "error", err)
		return
	}
	gen.Textures = textures
}

// laneFor resolves the lane and poll identifier for a pending
// generation. A two-phase generation that already has its refine
// identifier continues on the refine lane.
func laneFor(gen *domain.Generation) (lane, pollID string) {
	switch gen.Provider {
	case domain.ProviderMeshy:
		if gen.IsRefinePhase(gen.SecondaryID) {
			return provider.LaneMeshRefine, gen.SecondaryID
		}
		return provider.LaneMeshPreview, gen.PrimaryID
	case domain.ProviderComposite:
		return provider.LaneMeshComposite, gen.PrimaryID
	case domain.ProviderGenerative:
		return provider.LaneMeshGenerative, gen.PrimaryID
	default:
		return provider.LaneAudio, gen.PrimaryID
	}
}

// ListForOwner returns all generations belonging to the requester,
// newest first.
func (s *GenerationService) ListForOwner(ctx context.Context, owner domain.OwnerRef) ([]*domain.Generation, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	gens, err := s.generations.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, gen := range gens {
		s.loadTextures(ctx, gen)
	}
	return gens, nil
}

// ListPublic returns the public gallery for the given category.
func (s *GenerationService) ListPublic(ctx context.Context, category domain.Category) ([]*domain.Generation, error) {
	gens, err := s.generations.ListPublic(ctx, category)
	if err != nil {
		return nil, err
	}
	for _, gen := range gens {
		s.loadTextures(ctx, gen)
	}
	return gens, nil
}
