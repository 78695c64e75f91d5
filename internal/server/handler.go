package server

import (
	"encoding/json"
	"net/http"

	"github.com/oicur0t/logstat/internal/stats"
	"github.com/oicur0t/logstat/pkg/models"
	"go.uber.org/zap"
)

// StatusSource provides the outcome of the latest scan cycle
type StatusSource interface {
	Snapshot() (models.Snapshot, bool)
	Health() models.Health
}

// Handler handles HTTP requests
type Handler struct {
	source StatusSource
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(source StatusSource, logger *zap.Logger) *Handler {
	return &Handler{
		source: source,
		logger: logger,
	}
}

// Stats serves the latest per-server counters in the same form as the stats file
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, ok := h.source.Snapshot()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no snapshot available yet",
		}, h.logger)
		return
	}

	data, err := stats.MarshalStats(snapshot.Stats)
	if err != nil {
		h.logger.Error("Failed to encode stats", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Last-Modified", snapshot.TakenAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(data)
	}
}

// Health handles health check requests. A failing cycle degrades the status
// but the process is still serving, so the code stays 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.source.Health()

	status := "healthy"
	switch {
	case health.LastError != "":
		status = "degraded"
	case !health.HasSnapshot:
		status = "starting"
	}

	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		models.Health
	}{status, health}, h.logger)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", zap.Error(err))
	}
}
