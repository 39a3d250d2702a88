package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veloxi/forge-api/internal/api/shared"
	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/service"
)

// GenerationHandler handles generation-related HTTP requests.
type GenerationHandler struct {
	generationService *service.GenerationService
	logger            *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generationService *service.GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
		logger:            logger.With("component", "generation_handler"),
	}
}

// GenerateMesh handles POST /api/generations/mesh requests.
func (h *GenerationHandler) GenerateMesh(w http.ResponseWriter, r *http.Request) {
	var req GenerateMeshRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	owner, err := ownerFromRequest(req.UserID, req.ChatID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	gen, err := h.generationService.SubmitMesh(r.Context(), service.MeshRequest{
		Mode:   service.MeshMode(req.Mode),
		Prompt: req.Prompt,
		Style:  req.ArtStyle,
		Owner:  owner,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// Processing happens asynchronously; the client polls or subscribes.
	shared.RespondWithJSON(w, r, http.StatusAccepted, generationToResponse(gen))
}

// GenerateAudio handles POST /api/generations/audio requests.
func (h *GenerationHandler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req GenerateAudioRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	owner, err := ownerFromRequest(req.UserID, req.ChatID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	gen, err := h.generationService.SubmitAudio(r.Context(), service.AudioRequest{
		Prompt: req.Prompt,
		Owner:  owner,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, generationToResponse(gen))
}

// GetResult handles GET /api/generations/{taskID} requests. Reading a
// still-pending generation re-enqueues it for polling.
func (h *GenerationHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return
	}

	gen, err := h.generationService.GetResult(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, generationToResponse(gen))
}

// ListMine handles GET /api/generations requests, filtered by the
// requester identity passed in query parameters.
func (h *GenerationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r.URL.Query().Get("user_id"), r.URL.Query().Get("chat_id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if owner.IsZero() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "A requester identity is required")
		return
	}

	gens, err := h.generationService.ListForOwner(r.Context(), owner)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, generationsToResponses(gens))
}

// Gallery handles GET /api/gallery/{category} requests for the public
// listing of registered users' generations.
func (h *GenerationHandler) Gallery(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(chi.URLParam(r, "category"))
	if category != domain.CategoryMesh && category != domain.CategoryAudio {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown gallery category")
		return
	}

	gens, err := h.generationService.ListPublic(r.Context(), category)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, generationsToResponses(gens))
}
