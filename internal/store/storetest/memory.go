// Package storetest provides in-memory store implementations for tests.
// They honor the same contracts as the postgres stores, including the
// sentinel errors, so components can be exercised without a database.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/store"
)

// MemoryGenerationStore is a concurrency-safe in-memory GenerationStore.
type MemoryGenerationStore struct {
	mu          sync.Mutex
	generations map[uuid.UUID]*domain.Generation
}

// NewMemoryGenerationStore creates an empty in-memory generation store.
func NewMemoryGenerationStore() *MemoryGenerationStore {
	return &MemoryGenerationStore{generations: make(map[uuid.UUID]*domain.Generation)}
}

var _ store.GenerationStore = (*MemoryGenerationStore)(nil)

func clone(g *domain.Generation) *domain.Generation {
	copied := *g
	copied.Artifacts = domain.ArtifactSet{}.Merge(g.Artifacts)
	return &copied
}

// Create saves a new generation.
func (s *MemoryGenerationStore) Create(_ context.Context, generation *domain.Generation) error {
	if err := generation.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.generations {
		if existing.PrimaryID == generation.PrimaryID {
			return store.ErrTaskIDExists
		}
	}
	s.generations[generation.ID] = clone(generation)
	return nil
}

// GetByTaskID retrieves a generation by primary or secondary task id.
func (s *MemoryGenerationStore) GetByTaskID(_ context.Context, taskID string) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.generations {
		if g.PrimaryID == taskID || (g.SecondaryID != "" && g.SecondaryID == taskID) {
			return clone(g), nil
		}
	}
	return nil, store.ErrGenerationNotFound
}

// Update replaces an existing generation, matched by ID.
func (s *MemoryGenerationStore) Update(_ context.Context, generation *domain.Generation) error {
	if err := generation.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.generations[generation.ID]; !exists {
		return store.ErrGenerationNotFound
	}
	s.generations[generation.ID] = clone(generation)
	return nil
}

// UpdateState sets only the state of an existing generation.
func (s *MemoryGenerationStore) UpdateState(_ context.Context, id uuid.UUID, state domain.GenerationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.generations[id]
	if !exists {
		return store.ErrGenerationNotFound
	}
	g.State = state
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementViewCount bumps the view counter; unknown ids are ignored.
func (s *MemoryGenerationStore) IncrementViewCount(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.generations {
		if g.PrimaryID == taskID || (g.SecondaryID != "" && g.SecondaryID == taskID) {
			g.ViewCount++
			return nil
		}
	}
	return nil
}

// FindLatestByOwner returns the newest generation for the given owner.
func (s *MemoryGenerationStore) FindLatestByOwner(_ context.Context, owner domain.OwnerRef) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.Generation
	for _, g := range s.generations {
		if g.Owner != owner {
			continue
		}
		if latest == nil || g.CreatedAt.After(latest.CreatedAt) {
			latest = g
		}
	}
	if latest == nil {
		return nil, store.ErrGenerationNotFound
	}
	return clone(latest), nil
}

// ListByOwner returns all generations for the owner, newest first.
func (s *MemoryGenerationStore) ListByOwner(_ context.Context, owner domain.OwnerRef) ([]*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*domain.Generation{}
	for _, g := range s.generations {
		if g.Owner == owner {
			result = append(result, clone(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// ListPublic returns registered-user generations in the category,
// newest first.
func (s *MemoryGenerationStore) ListPublic(_ context.Context, category domain.Category) ([]*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*domain.Generation{}
	for _, g := range s.generations {
		if g.Category == category && g.Owner.UserID != uuid.Nil {
			result = append(result, clone(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// MemoryTextureStore is a concurrency-safe in-memory TextureStore.
type MemoryTextureStore struct {
	mu       sync.Mutex
	textures []*domain.Texture
}

// NewMemoryTextureStore creates an empty in-memory texture store.
func NewMemoryTextureStore() *MemoryTextureStore {
	return &MemoryTextureStore{}
}

var _ store.TextureStore = (*MemoryTextureStore)(nil)

// Create saves a new texture.
func (s *MemoryTextureStore) Create(_ context.Context, texture *domain.Texture) error {
	if err := texture.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *texture
	s.textures = append(s.textures, &copied)
	return nil
}

// ListByGenerationID returns all textures attached to the generation.
func (s *MemoryTextureStore) ListByGenerationID(_ context.Context, generationID uuid.UUID) ([]*domain.Texture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*domain.Texture{}
	for _, t := range s.textures {
		if t.GenerationID == generationID {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}
