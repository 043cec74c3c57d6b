package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ThiagoRGoveia/club-power/internal/database"
	"github.com/ThiagoRGoveia/club-power/internal/ingestion"
	"github.com/ThiagoRGoveia/club-power/internal/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	resourceProgress    = "avance"
	resourcePrizePoints = "premios"
)

// ProgressService serves the read side: health and per-identifier lookups.
type ProgressService struct {
	DBManager database.DBManager
	logger    *zap.Logger
}

func NewProgressService(dbManager database.DBManager, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{DBManager: dbManager, logger: logger}
}

func (h *ProgressService) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the database answers.
func (h *ProgressService) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.DBManager.Ping(r.Context()); err != nil {
		h.logger.Warn("Database ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ProgressService) GetProgress(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["dni"]
	if !ingestion.ValidIdentifier(identifier) {
		h.lookupError(w, resourceProgress, http.StatusBadRequest, "invalid dni")
		return
	}

	record, err := h.DBManager.GetProgress(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.lookupError(w, resourceProgress, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Failed to retrieve progress", zap.String("dni", identifier), zap.Error(err))
		h.lookupError(w, resourceProgress, http.StatusInternalServerError, "failed to retrieve progress")
		return
	}

	countLookup(resourceProgress, http.StatusOK)
	writeJSON(w, http.StatusOK, record)
}

func (h *ProgressService) GetPrizePoints(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["dni"]
	if !ingestion.ValidIdentifier(identifier) {
		h.lookupError(w, resourcePrizePoints, http.StatusBadRequest, "invalid dni")
		return
	}

	points, err := h.DBManager.GetPrizePoints(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.lookupError(w, resourcePrizePoints, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Failed to retrieve prize points", zap.String("dni", identifier), zap.Error(err))
		h.lookupError(w, resourcePrizePoints, http.StatusInternalServerError, "failed to retrieve prize points")
		return
	}

	countLookup(resourcePrizePoints, http.StatusOK)
	writeJSON(w, http.StatusOK, points)
}

func (h *ProgressService) lookupError(w http.ResponseWriter, resource string, statusCode int, message string) {
	countLookup(resource, statusCode)
	writeError(w, statusCode, message)
}

func countLookup(resource string, statusCode int) {
	metrics.CounterLookups.WithLabelValues(resource, strconv.Itoa(statusCode)).Inc()
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
