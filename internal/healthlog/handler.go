package healthlog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/baymax-health/pkg/logging"
)

const maxLogBodyBytes = 32 << 10

// Handler exposes daily logs over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type upsertRequest struct {
	UserID         string  `json:"user_id"`
	Date           string  `json:"date"`
	TookMedication bool    `json:"tookMedication"`
	SleepHours     float64 `json:"sleepHours"`
	VitalBPM       int     `json:"vital_bpm"`
	Mood           int     `json:"mood"`
	Symptom        string  `json:"symptom"`
	Note           string  `json:"note"`
}

// Upsert handles POST /api/logs.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLogBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	_, err := h.service.Save(r.Context(), req.UserID, Entry{
		Date:           req.Date,
		TookMedication: req.TookMedication,
		SleepHours:     req.SleepHours,
		VitalBPM:       req.VitalBPM,
		Mood:           req.Mood,
		Symptom:        req.Symptom,
		Note:           req.Note,
	})
	if h.writeDateError(w, err, "date is required") {
		return
	}
	if err != nil {
		h.logger.Error("failed to save health log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save log"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Get handles GET /api/logs/one?date=YYYY-MM-DD.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entry, err := h.service.Find(r.Context(), q.Get("user_id"), q.Get("date"))
	if h.writeDateError(w, err, "date query param is required") {
		return
	}
	if err != nil {
		h.logger.Error("failed to load health log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load log"})
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Range handles GET /api/health-logs?start=&end=, returning a JSON array
// ordered by date.
func (h *Handler) Range(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.service.List(r.Context(), q.Get("user_id"), q.Get("start"), q.Get("end"))
	switch {
	case errors.Is(err, ErrRangeInverted):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Start date must not be after end date."})
		return
	case errors.Is(err, ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid date format"})
		return
	case err != nil:
		h.logger.Error("failed to list health logs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load logs"})
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No health logs found between the selected date range."})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) writeDateError(w http.ResponseWriter, err error, requiredMsg string) bool {
	switch {
	case errors.Is(err, ErrDateRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": requiredMsg})
	case errors.Is(err, ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid date format"})
	default:
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
