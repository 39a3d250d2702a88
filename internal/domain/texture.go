package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Texture-specific validation errors.
var (
	ErrEmptyTextureID           = errors.New("texture ID cannot be empty")
	ErrEmptyTextureGenerationID = errors.New("texture generation ID cannot be empty")
	ErrEmptyTextureSlot         = errors.New("texture slot cannot be empty")
	ErrEmptyTextureURL          = errors.New("texture URL cannot be empty")
)

// Texture is a secondary artifact attached to a succeeded generation's
// refine phase. Textures are only created after the owning generation
// reaches the succeeded state and are never mutated, only appended.
type Texture struct {
	ID           uuid.UUID `json:"id"`
	GenerationID uuid.UUID `json:"generation_id"`
	Slot         string    `json:"slot"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTexture creates a Texture attached to the given generation.
// Returns an error if validation fails.
func NewTexture(generationID uuid.UUID, slot, url string) (*Texture, error) {
	t := &Texture{
		ID:           uuid.New(),
		GenerationID: generationID,
		Slot:         slot,
		URL:          url,
		CreatedAt:    time.Now().UTC(),
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Texture has valid data.
func (t *Texture) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTextureID
	}

	if t.GenerationID == uuid.Nil {
		return ErrEmptyTextureGenerationID
	}

	if t.Slot == "" {
		return ErrEmptyTextureSlot
	}

	if t.URL == "" {
		return ErrEmptyTextureURL
	}

	return nil
}
