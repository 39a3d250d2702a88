package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veloxi/forge-api/internal/api/shared"
	"github.com/veloxi/forge-api/internal/events"
)

// StatusHandler streams live task status updates to clients over
// server-sent events. Delivery is best effort: a client that connects
// late misses earlier events, and the generation record remains the
// source of truth for final state.
type StatusHandler struct {
	broker *events.Broker
	logger *slog.Logger
}

// NewStatusHandler creates a new StatusHandler around the status broker.
func NewStatusHandler(broker *events.Broker, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		broker: broker,
		logger: logger.With("component", "status_handler"),
	}
}

// Stream handles GET /api/generations/{taskID}/events requests. It holds
// the connection open and forwards every status update published for the
// task until the client disconnects.
func (h *StatusHandler) Stream(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	updates, cancel := h.broker.Subscribe(taskID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("status stream opened", "task_id", taskID)

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("status stream closed by client", "task_id", taskID)
			return
		case update, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				h.logger.Error("failed to encode status update", "task_id", taskID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload); err != nil {
				h.logger.Debug("status stream write failed", "task_id", taskID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
