package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/veloxi/forge-api/internal/domain"
)

// DefaultMasterpieceBaseURL is the production composite mesh endpoint.
const DefaultMasterpieceBaseURL = "https://api.genai.masterpiecex.com/v2"

// LaneMeshComposite is the lane name for composite mesh generations.
const LaneMeshComposite = "mesh-composite"

// MasterpieceClient talks to the composite mesh backend. Submission and
// status are separate resources under the same API root.
type MasterpieceClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewMasterpieceClient creates a client for the composite backend. An
// empty baseURL selects the production endpoint.
func NewMasterpieceClient(baseURL, apiKey string, logger *slog.Logger) *MasterpieceClient {
	if baseURL == "" {
		baseURL = DefaultMasterpieceBaseURL
	}
	return &MasterpieceClient{
		httpClient: newHTTPClient(),
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With("component", "masterpiece_client"),
	}
}

type masterpieceSubmitResponse struct {
	RequestID string `json:"requestId"`
}

type masterpieceStatusResponse struct {
	Status  string `json:"status"`
	Outputs struct {
		GLB       string `json:"glb"`
		FBX       string `json:"fbx"`
		USDZ      string `json:"usdz"`
		Thumbnail string `json:"thumbnail"`
	} `json:"outputs"`
	Error string `json:"error"`
}

// Submit starts a composite generation and returns the provider request
// identifier.
func (c *MasterpieceClient) Submit(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{"prompt": prompt}

	var resp masterpieceSubmitResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/functions/general", bearerAuth(c.apiKey), payload, &resp)
	if err != nil {
		return "", fmt.Errorf("composite submission failed: %w", err)
	}
	if status >= 300 {
		return "", fmt.Errorf("composite submission failed: status %d", status)
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("composite submission returned no request ID")
	}

	c.logger.Info("submitted composite generation", "task_id", resp.RequestID)
	return resp.RequestID, nil
}

// MasterpieceAdapter polls the composite backend.
type MasterpieceAdapter struct {
	client *MasterpieceClient
}

// NewMasterpieceAdapter creates the composite mesh adapter.
func NewMasterpieceAdapter(client *MasterpieceClient) *MasterpieceAdapter {
	return &MasterpieceAdapter{client: client}
}

// Name returns the composite lane tag.
func (a *MasterpieceAdapter) Name() string { return LaneMeshComposite }

// Provider returns the backend tag.
func (a *MasterpieceAdapter) Provider() domain.Provider { return domain.ProviderComposite }

// Poll fetches and normalizes the composite task status.
func (a *MasterpieceAdapter) Poll(ctx context.Context, taskID string) (*Result, error) {
	c := a.client

	var resp masterpieceStatusResponse
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/status/"+taskID, bearerAuth(c.apiKey), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("composite status fetch failed: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("composite status fetch failed: status %d", status)
	}

	switch resp.Status {
	case "complete":
		// Normalized below.
	case "failed":
		reason := resp.Error
		if reason == "" {
			reason = "failed"
		}
		return nil, &FatalError{Reason: reason}
	default:
		return nil, ErrNotReady
	}

	// The composite backend's thumbnail shows the finished textured mesh,
	// so it fills the refine-image slot.
	return &Result{
		Artifacts: domain.ArtifactSet{}.Merge(domain.ArtifactSet{
			domain.ArtifactModelGLB:    resp.Outputs.GLB,
			domain.ArtifactModelFBX:    resp.Outputs.FBX,
			domain.ArtifactModelUSDZ:   resp.Outputs.USDZ,
			domain.ArtifactRefineImage: resp.Outputs.Thumbnail,
		}),
	}, nil
}
