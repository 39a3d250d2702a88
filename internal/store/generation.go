package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/veloxi/forge-api/internal/domain"
)

// GenerationStore defines the interface for generation record persistence.
// Implementations must be safe for concurrent use: records are read and
// updated by the per-provider polling loops as well as the request layer.
type GenerationStore interface {
	// Create saves a new generation to the store.
	// Returns validation errors from the domain Generation if data is
	// invalid, or ErrTaskIDExists if the primary task ID is already taken.
	Create(ctx context.Context, generation *domain.Generation) error

	// GetByTaskID retrieves a generation whose primary or secondary task
	// identifier equals taskID.
	// Returns ErrGenerationNotFound if no generation matches.
	GetByTaskID(ctx context.Context, taskID string) (*domain.Generation, error)

	// Update saves changes to an existing generation, matched by its ID.
	// Returns ErrGenerationNotFound if the generation does not exist.
	// Returns validation errors if the generation data is invalid.
	Update(ctx context.Context, generation *domain.Generation) error

	// UpdateState sets only the state of an existing generation.
	// Returns ErrGenerationNotFound if the generation does not exist.
	UpdateState(ctx context.Context, id uuid.UUID, state domain.GenerationState) error

	// IncrementViewCount atomically increments the view counter of the
	// generation matching the given task identifier (primary or secondary).
	// A missing record is not an error; reads of unknown IDs are common.
	IncrementViewCount(ctx context.Context, taskID string) error

	// FindLatestByOwner retrieves the most recently created generation for
	// the given requester, regardless of state.
	// Returns ErrGenerationNotFound if the requester has no generations.
	FindLatestByOwner(ctx context.Context, owner domain.OwnerRef) (*domain.Generation, error)

	// ListByOwner retrieves all generations for the given requester,
	// newest first. Returns an empty slice if there are none.
	ListByOwner(ctx context.Context, owner domain.OwnerRef) ([]*domain.Generation, error)

	// ListPublic retrieves generations in the given category that belong to
	// registered users, newest first. Used for the public gallery.
	ListPublic(ctx context.Context, category domain.Category) ([]*domain.Generation, error)
}

// TextureStore defines the interface for texture record persistence.
// Textures are append-only: created after the owning generation succeeds,
// never mutated.
type TextureStore interface {
	// Create saves a new texture to the store.
	// Returns validation errors from the domain Texture if data is invalid.
	Create(ctx context.Context, texture *domain.Texture) error

	// ListByGenerationID retrieves all textures attached to the given
	// generation. Returns an empty slice if there are none.
	ListByGenerationID(ctx context.Context, generationID uuid.UUID) ([]*domain.Texture, error)
}
