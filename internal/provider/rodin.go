package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/veloxi/forge-api/internal/domain"
)

// DefaultRodinBaseURL is the production generative mesh endpoint.
const DefaultRodinBaseURL = "https://queue.fal.run/fal-ai/hyper3d"

// LaneMeshGenerative is the lane name for generative mesh generations.
const LaneMeshGenerative = "mesh-generative"

// RodinClient talks to the queue-fronted generative mesh backend. The
// queue indexes submitted jobs asynchronously, so the result endpoint can
// legitimately answer 404 (and transiently 400) for a job that exists.
type RodinClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewRodinClient creates a client for the generative backend. An empty
// baseURL selects the production endpoint.
func NewRodinClient(baseURL, apiKey string, logger *slog.Logger) *RodinClient {
	if baseURL == "" {
		baseURL = DefaultRodinBaseURL
	}
	return &RodinClient{
		httpClient: newHTTPClient(),
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With("component", "rodin_client"),
	}
}

// auth builds the key-scheme Authorization header this backend uses
// instead of a bearer token.
func (c *RodinClient) auth() map[string]string {
	return map[string]string{"Authorization": "Key " + c.apiKey}
}

type rodinSubmitResponse struct {
	RequestID string `json:"request_id"`
}

type rodinResultResponse struct {
	ModelMesh struct {
		URL string `json:"url"`
	} `json:"model_mesh"`
	Textures []struct {
		URL      string `json:"url"`
		FileName string `json:"file_name"`
	} `json:"textures"`
}

// Submit starts a generative mesh job and returns the queue request
// identifier.
func (c *RodinClient) Submit(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"input": map[string]any{
			"prompt":               prompt,
			"geometry_file_format": "glb",
			"quality":              "high",
			"material":             "PBR",
			"tier":                 "Regular",
		},
	}

	var resp rodinSubmitResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/rodin", c.auth(), payload, &resp)
	if err != nil {
		return "", fmt.Errorf("generative submission failed: %w", err)
	}
	if status >= 300 {
		return "", fmt.Errorf("generative submission failed: status %d", status)
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("generative submission returned no request ID")
	}

	c.logger.Info("submitted generative generation", "task_id", resp.RequestID)
	return resp.RequestID, nil
}

// RodinAdapter polls the generative backend.
type RodinAdapter struct {
	client *RodinClient
}

// NewRodinAdapter creates the generative mesh adapter.
func NewRodinAdapter(client *RodinClient) *RodinAdapter {
	return &RodinAdapter{client: client}
}

// Name returns the generative lane tag.
func (a *RodinAdapter) Name() string { return LaneMeshGenerative }

// Provider returns the backend tag.
func (a *RodinAdapter) Provider() domain.Provider { return domain.ProviderGenerative }

// Poll fetches the queued result. A 404 or 400 answer means the queue has
// not indexed or finished the job yet, not that the job is gone, so both
// map to ErrNotReady.
func (a *RodinAdapter) Poll(ctx context.Context, taskID string) (*Result, error) {
	c := a.client

	var resp rodinResultResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/requests/"+taskID, c.auth(), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("generative result fetch failed: %w", err)
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return nil, ErrNotReady
	case status >= 300:
		return nil, fmt.Errorf("generative result fetch failed: status %d", status)
	}

	if resp.ModelMesh.URL == "" {
		return nil, ErrNotReady
	}

	result := &Result{
		Artifacts: domain.ArtifactSet{
			domain.ArtifactModelGLB: resp.ModelMesh.URL,
		},
	}
	for _, tex := range resp.Textures {
		if tex.URL == "" {
			continue
		}
		result.Textures = append(result.Textures, TextureRef{Slot: tex.FileName, URL: tex.URL})
	}

	return result, nil
}
