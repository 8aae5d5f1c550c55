package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/baymax-health/pkg/logging"
)

const maxChatBodyBytes = 64 << 10

// Handler wires HTTP requests to the chat pipeline.
type Handler struct {
	service TurnHandler
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(service TurnHandler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.HandleTurn(r.Context(), req)
	switch {
	case errors.Is(err, ErrInvalidMessage):
		h.writeError(w, http.StatusBadRequest, "No message provided")
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, "Failed to generate a response")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
