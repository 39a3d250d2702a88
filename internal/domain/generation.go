package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// GenerationState represents the lifecycle state of a generation.
type GenerationState string

// Possible generation state values. A generation transitions from pending
// to exactly one of the terminal states and never back.
const (
	StatePending   GenerationState = "pending"
	StateSucceeded GenerationState = "succeeded"
	StateFailed    GenerationState = "failed"
	StateTimeout   GenerationState = "timeout"
)

// Terminal reports whether the state allows no further automatic transitions.
func (s GenerationState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimeout
}

// isValidState checks if the given state is a valid GenerationState.
func isValidState(s GenerationState) bool {
	switch s {
	case StatePending, StateSucceeded, StateFailed, StateTimeout:
		return true
	default:
		return false
	}
}

// ArtifactKind identifies one downloadable output of a generation.
type ArtifactKind string

// Known artifact kinds.
const (
	ArtifactModelGLB     ArtifactKind = "model-glb"
	ArtifactModelFBX     ArtifactKind = "model-fbx"
	ArtifactModelOBJ     ArtifactKind = "model-obj"
	ArtifactModelUSDZ    ArtifactKind = "model-usdz"
	ArtifactModelMTL     ArtifactKind = "model-mtl"
	ArtifactPreviewImage ArtifactKind = "preview-image"
	ArtifactRefineImage  ArtifactKind = "refine-image"
	ArtifactVideo        ArtifactKind = "video"
	ArtifactAudio        ArtifactKind = "audio"

	// ArtifactTexture is used for standalone texture files attached to a
	// generation as Texture records rather than ArtifactSet entries.
	ArtifactTexture ArtifactKind = "texture"
)

// ArtifactSet maps artifact kinds to durably hosted URLs. Kinds the
// provider never returned are simply absent.
type ArtifactSet map[ArtifactKind]string

// Merge copies every non-empty entry of other into the set, allocating the
// receiver's map if needed, and returns the merged set.
func (a ArtifactSet) Merge(other ArtifactSet) ArtifactSet {
	merged := a
	if merged == nil {
		merged = make(ArtifactSet, len(other))
	}
	for kind, url := range other {
		if url != "" {
			merged[kind] = url
		}
	}
	return merged
}

// Generation-specific validation errors.
var (
	ErrEmptyGenerationID = errors.New("generation ID cannot be empty")
	ErrEmptyPrimaryID    = errors.New("generation primary task ID cannot be empty")
)

// OwnerRef identifies the requester of a generation: either a registered
// user or a chat-bot identity. At most one side may be set; the zero value
// means anonymous.
type OwnerRef struct {
	UserID uuid.UUID `json:"user_id,omitempty"`
	ChatID string    `json:"chat_id,omitempty"`
}

// IsZero reports whether neither identity is set.
func (o OwnerRef) IsZero() bool {
	return o.UserID == uuid.Nil && o.ChatID == ""
}

// Validate checks that at most one identity side is set.
func (o OwnerRef) Validate() error {
	if o.UserID != uuid.Nil && o.ChatID != "" {
		return ErrAmbiguousOwner
	}
	return nil
}

// Generation represents one tracked asynchronous generation request and
// its lifecycle. PrimaryID is the identifier returned by the provider at
// submission and is the poll key for the initial phase; SecondaryID holds
// the identifier of a dependent refinement phase when the provider splits
// the work in two (for single-phase providers with a refinement surface it
// equals PrimaryID).
type Generation struct {
	ID          uuid.UUID       `json:"id"`
	PrimaryID   string          `json:"primary_id"`
	SecondaryID string          `json:"secondary_id,omitempty"`
	Provider    Provider        `json:"provider"`
	Category    Category        `json:"category"`
	State       GenerationState `json:"state"`
	Prompt      string          `json:"prompt"`
	Style       string          `json:"style,omitempty"`
	Owner       OwnerRef        `json:"owner,omitempty"`
	ViewCount   int             `json:"view_count"`
	Artifacts   ArtifactSet     `json:"artifacts,omitempty"`

	// Audio result metadata, populated on success for audio generations.
	Title  string `json:"title,omitempty"`
	Tags   string `json:"tags,omitempty"`
	Lyrics string `json:"lyrics,omitempty"`

	// Textures attached by the refine phase. Loaded from the texture store
	// on reads; never persisted through the generation store.
	Textures []*Texture `json:"textures,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGeneration creates a pending Generation for the given provider and
// category, keyed by the task identifier the provider returned at
// submission. Returns an error if validation fails.
func NewGeneration(
	provider Provider,
	category Category,
	primaryID string,
	prompt string,
	style string,
	owner OwnerRef,
) (*Generation, error) {
	now := time.Now().UTC()
	g := &Generation{
		ID:        uuid.New(),
		PrimaryID: primaryID,
		Provider:  provider,
		Category:  category,
		State:     StatePending,
		Prompt:    prompt,
		Style:     style,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Validate checks if the Generation has valid data.
// Returns an error if any field fails validation.
func (g *Generation) Validate() error {
	if g.ID == uuid.Nil {
		return ErrEmptyGenerationID
	}

	if g.PrimaryID == "" {
		return ErrEmptyPrimaryID
	}

	if !isValidProvider(g.Provider) {
		return ErrInvalidProvider
	}

	if !isValidCategory(g.Category) {
		return ErrInvalidCategory
	}

	if !isValidState(g.State) {
		return ErrInvalidState
	}

	return g.Owner.Validate()
}

// IsRefinePhase reports whether the given task identifier refers to the
// generation's dependent refinement phase rather than its initial phase.
func (g *Generation) IsRefinePhase(taskID string) bool {
	return g.SecondaryID != "" && taskID == g.SecondaryID && g.SecondaryID != g.PrimaryID
}
