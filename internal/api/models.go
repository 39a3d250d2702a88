package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloxi/forge-api/internal/domain"
)

// GenerateMeshRequest represents the request body for submitting a new
// mesh generation.
type GenerateMeshRequest struct {
	Mode     string `json:"mode"      validate:"required,oneof=preview composite generative"`
	Prompt   string `json:"prompt"    validate:"required,min=1,max=600"`
	ArtStyle string `json:"art_style" validate:"omitempty,oneof=realistic cartoon sculpture"`
	UserID   string `json:"user_id"   validate:"omitempty,uuid"`
	ChatID   string `json:"chat_id"   validate:"omitempty,max=128"`
}

// GenerateAudioRequest represents the request body for submitting a new
// audio generation.
type GenerateAudioRequest struct {
	Prompt string `json:"prompt"  validate:"required,min=1,max=600"`
	UserID string `json:"user_id" validate:"omitempty,uuid"`
	ChatID string `json:"chat_id" validate:"omitempty,max=128"`
}

// TextureResponse represents one texture attached to a mesh generation.
type TextureResponse struct {
	Slot string `json:"slot"`
	URL  string `json:"url"`
}

// GenerationResponse represents the response data for a generation.
type GenerationResponse struct {
	ID          string            `json:"id"`
	TaskID      string            `json:"task_id"`
	RefineID    string            `json:"refine_id,omitempty"`
	Provider    string            `json:"provider"`
	Category    string            `json:"category"`
	State       string            `json:"state"`
	Prompt      string            `json:"prompt"`
	Style       string            `json:"style,omitempty"`
	ViewCount   int               `json:"view_count"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
	Textures    []TextureResponse `json:"textures,omitempty"`
	Title       string            `json:"title,omitempty"`
	Tags        string            `json:"tags,omitempty"`
	Lyrics      string            `json:"lyrics,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// generationToResponse converts a domain.Generation to its DTO.
func generationToResponse(gen *domain.Generation) GenerationResponse {
	var artifacts map[string]string
	if len(gen.Artifacts) > 0 {
		artifacts = make(map[string]string, len(gen.Artifacts))
		for kind, url := range gen.Artifacts {
			artifacts[string(kind)] = url
		}
	}

	var textures []TextureResponse
	for _, tex := range gen.Textures {
		textures = append(textures, TextureResponse{Slot: tex.Slot, URL: tex.URL})
	}

	return GenerationResponse{
		ID:        gen.ID.String(),
		TaskID:    gen.PrimaryID,
		RefineID:  gen.SecondaryID,
		Provider:  string(gen.Provider),
		Category:  string(gen.Category),
		State:     string(gen.State),
		Prompt:    gen.Prompt,
		Style:     gen.Style,
		ViewCount: gen.ViewCount,
		Artifacts: artifacts,
		Textures:  textures,
		Title:     gen.Title,
		Tags:      gen.Tags,
		Lyrics:    gen.Lyrics,
		CreatedAt: gen.CreatedAt,
		UpdatedAt: gen.UpdatedAt,
	}
}

// generationsToResponses converts a slice of generations.
func generationsToResponses(gens []*domain.Generation) []GenerationResponse {
	responses := make([]GenerationResponse, 0, len(gens))
	for _, gen := range gens {
		responses = append(responses, generationToResponse(gen))
	}
	return responses
}

// ownerFromRequest builds the owner reference from the optional identity
// fields of a request. The user id has already passed uuid validation.
func ownerFromRequest(userID, chatID string) (domain.OwnerRef, error) {
	owner := domain.OwnerRef{ChatID: chatID}
	if userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return domain.OwnerRef{}, domain.ErrInvalidID
		}
		owner.UserID = parsed
	}
	if err := owner.Validate(); err != nil {
		return domain.OwnerRef{}, err
	}
	return owner, nil
}
