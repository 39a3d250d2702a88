package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/veloxi/forge-api/internal/domain"
)

// DefaultMeshyBaseURL is the production text-to-3D endpoint.
const DefaultMeshyBaseURL = "https://api.meshy.ai/openapi/v2/text-to-3d"

// Lane names for the two meshy phases.
const (
	LaneMeshPreview = "mesh-preview"
	LaneMeshRefine  = "mesh-refine"
)

// MeshyClient talks to the two-phase text-to-3D backend. The same
// endpoint serves submission and status for both phases.
type MeshyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewMeshyClient creates a client for the meshy backend. An empty baseURL
// selects the production endpoint.
func NewMeshyClient(baseURL, apiKey string, logger *slog.Logger) *MeshyClient {
	if baseURL == "" {
		baseURL = DefaultMeshyBaseURL
	}
	return &MeshyClient{
		httpClient: newHTTPClient(),
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With("component", "meshy_client"),
	}
}

// meshySubmitResponse is the submission response shape for both phases.
type meshySubmitResponse struct {
	Result string `json:"result"`
}

// meshyTaskResponse is the status response shape for both phases.
type meshyTaskResponse struct {
	Status    string `json:"status"`
	ModelURLs struct {
		GLB  string `json:"glb"`
		FBX  string `json:"fbx"`
		OBJ  string `json:"obj"`
		MTL  string `json:"mtl"`
		USDZ string `json:"usdz"`
	} `json:"model_urls"`
	ThumbnailURL string              `json:"thumbnail_url"`
	VideoURL     string              `json:"video_url"`
	TextureURLs  []map[string]string `json:"texture_urls"`
	TaskError    struct {
		Message string `json:"message"`
	} `json:"task_error"`
}

// SubmitPreview starts a preview-phase generation and returns the
// provider task identifier.
func (c *MeshyClient) SubmitPreview(ctx context.Context, prompt, artStyle string) (string, error) {
	payload := map[string]any{
		"mode":   "preview",
		"prompt": prompt,
	}
	if artStyle != "" {
		payload["art_style"] = artStyle
	}

	var resp meshySubmitResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL, bearerAuth(c.apiKey), payload, &resp)
	if err != nil {
		return "", fmt.Errorf("meshy preview submission failed: %w", err)
	}
	if status >= 300 {
		return "", fmt.Errorf("meshy preview submission failed: status %d", status)
	}
	if resp.Result == "" {
		return "", fmt.Errorf("meshy preview submission returned no task ID")
	}

	c.logger.Info("submitted preview generation", "task_id", resp.Result)
	return resp.Result, nil
}

// SubmitRefine starts the refine phase for a completed preview task and
// returns the refine task identifier.
func (c *MeshyClient) SubmitRefine(ctx context.Context, previewTaskID string) (string, error) {
	payload := map[string]any{
		"mode":            "refine",
		"preview_task_id": previewTaskID,
		"enable_pbr":      true,
	}

	var resp meshySubmitResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL, bearerAuth(c.apiKey), payload, &resp)
	if err != nil {
		return "", fmt.Errorf("meshy refine submission failed: %w", err)
	}
	if status >= 300 {
		return "", fmt.Errorf("meshy refine submission failed: status %d", status)
	}
	if resp.Result == "" {
		return "", fmt.Errorf("meshy refine submission returned no task ID")
	}

	c.logger.Info("submitted refine generation",
		"preview_task_id", previewTaskID,
		"task_id", resp.Result)
	return resp.Result, nil
}

// poll fetches the task status and normalizes it for the given phase.
func (c *MeshyClient) poll(ctx context.Context, taskID string, refine bool) (*Result, error) {
	var resp meshyTaskResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/"+taskID, bearerAuth(c.apiKey), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("meshy status fetch failed: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("meshy status fetch failed: status %d", status)
	}

	switch resp.Status {
	case "SUCCEEDED":
		// Normalized below.
	case "FAILED", "EXPIRED":
		reason := resp.TaskError.Message
		if reason == "" {
			reason = resp.Status
		}
		return nil, &FatalError{Reason: reason}
	default:
		return nil, ErrNotReady
	}

	imageKind := domain.ArtifactPreviewImage
	if refine {
		imageKind = domain.ArtifactRefineImage
	}

	result := &Result{
		Artifacts: domain.ArtifactSet{}.Merge(domain.ArtifactSet{
			domain.ArtifactModelGLB:  resp.ModelURLs.GLB,
			domain.ArtifactModelFBX:  resp.ModelURLs.FBX,
			domain.ArtifactModelOBJ:  resp.ModelURLs.OBJ,
			domain.ArtifactModelUSDZ: resp.ModelURLs.USDZ,
			imageKind:                resp.ThumbnailURL,
			domain.ArtifactVideo:     resp.VideoURL,
		}),
	}

	if refine {
		result.Artifacts = result.Artifacts.Merge(domain.ArtifactSet{
			domain.ArtifactModelMTL: resp.ModelURLs.MTL,
		})
		for _, set := range resp.TextureURLs {
			for slot, url := range set {
				if url == "" {
					continue
				}
				result.Textures = append(result.Textures, TextureRef{Slot: slot, URL: url})
			}
		}
	}

	return result, nil
}

// MeshyPreviewAdapter polls the preview phase and chains the refine phase
// on success.
type MeshyPreviewAdapter struct {
	client *MeshyClient
}

// NewMeshyPreviewAdapter creates the preview-phase adapter.
func NewMeshyPreviewAdapter(client *MeshyClient) *MeshyPreviewAdapter {
	return &MeshyPreviewAdapter{client: client}
}

// Name returns the preview lane tag.
func (a *MeshyPreviewAdapter) Name() string { return LaneMeshPreview }

// Provider returns the backend tag.
func (a *MeshyPreviewAdapter) Provider() domain.Provider { return domain.ProviderMeshy }

// Poll fetches and normalizes the preview-phase status.
func (a *MeshyPreviewAdapter) Poll(ctx context.Context, taskID string) (*Result, error) {
	return a.client.poll(ctx, taskID, false)
}

// SubmitFollowUp starts the refine phase for a completed preview task.
func (a *MeshyPreviewAdapter) SubmitFollowUp(ctx context.Context, primaryID string) (string, error) {
	return a.client.SubmitRefine(ctx, primaryID)
}

// MeshyRefineAdapter polls the refine phase.
type MeshyRefineAdapter struct {
	client *MeshyClient
}

// NewMeshyRefineAdapter creates the refine-phase adapter.
func NewMeshyRefineAdapter(client *MeshyClient) *MeshyRefineAdapter {
	return &MeshyRefineAdapter{client: client}
}

// Name returns the refine lane tag.
func (a *MeshyRefineAdapter) Name() string { return LaneMeshRefine }

// Provider returns the backend tag.
func (a *MeshyRefineAdapter) Provider() domain.Provider { return domain.ProviderMeshy }

// Poll fetches and normalizes the refine-phase status.
func (a *MeshyRefineAdapter) Poll(ctx context.Context, taskID string) (*Result, error) {
	return a.client.poll(ctx, taskID, true)
}
