package handlers

import (
	"net/http"

	"github.com/Knuckles92/obby-sub000/internal/services"
)

// StatsHandler handles the statistics endpoint.
type StatsHandler struct {
	insights *services.InsightService
}

// NewStatsHandler creates a new StatsHandler instance.
func NewStatsHandler(insights *services.InsightService) *StatsHandler {
	return &StatsHandler{insights: insights}
}

// GetStats handles GET /api/stats - insight counts by type and status plus
// entity counts by type. The queue depth lives in the processing status.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.insights.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to collect stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
