package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/veloxi/forge-api/internal/domain"
)

// DefaultSonicBaseURL is the production audio synthesis endpoint.
const DefaultSonicBaseURL = "https://api.musicapi.ai/api/v1/sonic"

// LaneAudio is the lane name for audio generations.
const LaneAudio = "audio"

// SonicClient talks to the audio synthesis backend.
type SonicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewSonicClient creates a client for the audio backend. An empty baseURL
// selects the production endpoint.
func NewSonicClient(baseURL, apiKey string, logger *slog.Logger) *SonicClient {
	if baseURL == "" {
		baseURL = DefaultSonicBaseURL
	}
	return &SonicClient{
		httpClient: newHTTPClient(),
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With("component", "sonic_client"),
	}
}

type sonicSubmitResponse struct {
	TaskID string `json:"task_id"`
}

type sonicTaskResponse struct {
	Data []struct {
		State    string `json:"state"`
		ImageURL string `json:"image_url"`
		AudioURL string `json:"audio_url"`
		VideoURL string `json:"video_url"`
		Title    string `json:"title"`
		Tags     string `json:"tags"`
		Lyrics   string `json:"lyrics"`
	} `json:"data"`
}

// Submit starts an audio generation from a free-form description and
// returns the provider task identifier.
func (c *SonicClient) Submit(ctx context.Context, description string) (string, error) {
	payload := map[string]any{
		"custom_mode":            false,
		"gpt_description_prompt": description,
		"mv":                     "sonic-v4",
	}

	var resp sonicSubmitResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/create", bearerAuth(c.apiKey), payload, &resp)
	if err != nil {
		return "", fmt.Errorf("audio submission failed: %w", err)
	}
	if status >= 300 {
		return "", fmt.Errorf("audio submission failed: status %d", status)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("audio submission returned no task ID")
	}

	c.logger.Info("submitted audio generation", "task_id", resp.TaskID)
	return resp.TaskID, nil
}

// SonicAdapter polls the audio backend.
type SonicAdapter struct {
	client *SonicClient
}

// NewSonicAdapter creates the audio adapter.
func NewSonicAdapter(client *SonicClient) *SonicAdapter {
	return &SonicAdapter{client: client}
}

// Name returns the audio lane tag.
func (a *SonicAdapter) Name() string { return LaneAudio }

// Provider returns the backend tag.
func (a *SonicAdapter) Provider() domain.Provider { return domain.ProviderAudio }

// Poll fetches and normalizes the audio task status. The backend returns
// a list of clips per task; the first clip carries the result.
func (a *SonicAdapter) Poll(ctx context.Context, taskID string) (*Result, error) {
	c := a.client

	var resp sonicTaskResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/task/"+taskID, bearerAuth(c.apiKey), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("audio status fetch failed: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("audio status fetch failed: status %d", status)
	}
	if len(resp.Data) == 0 {
		return nil, ErrNotReady
	}

	clip := resp.Data[0]
	switch clip.State {
	case "succeeded":
		// Normalized below.
	case "failed":
		return nil, &FatalError{Reason: "audio synthesis failed"}
	default:
		return nil, ErrNotReady
	}

	return &Result{
		Artifacts: domain.ArtifactSet{}.Merge(domain.ArtifactSet{
			domain.ArtifactAudio:        clip.AudioURL,
			domain.ArtifactPreviewImage: clip.ImageURL,
			domain.ArtifactVideo:        clip.VideoURL,
		}),
		Title:  clip.Title,
		Tags:   clip.Tags,
		Lyrics: clip.Lyrics,
	}, nil
}
