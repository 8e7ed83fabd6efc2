package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/Knuckles92/obby-sub000/internal/services"
	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// InsightHandlers contains HTTP handlers for the insight review API.
type InsightHandlers struct {
	insights *services.InsightService
}

// NewInsightHandlers creates a new InsightHandlers instance.
func NewInsightHandlers(insights *services.InsightService) *InsightHandlers {
	return &InsightHandlers{insights: insights}
}

// ListInsights handles GET /api/insights - list insights in review order
// with optional type/status filters and windowing.
func (h *InsightHandlers) ListInsights(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		Type:   types.InsightType(r.URL.Query().Get("type")),
		Status: types.InsightStatus(r.URL.Query().Get("status")),
		Limit:  parseInt(r.URL.Query().Get("limit"), 50),
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
	}
	opts.Normalize()

	result, err := h.insights.List(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list insights", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetInsight handles GET /api/insights/{id} - get a single insight.
// Reading a new insight marks it viewed.
func (h *InsightHandlers) GetInsight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "insight ID is required", nil)
		return
	}

	insight, err := h.insights.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "insight not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get insight", err)
		return
	}
	respondJSON(w, http.StatusOK, insight)
}

// PostInsightAction handles POST /api/insights/{id}/action - apply a review
// action (dismiss, restore, pin, unpin, mark_done) to an insight.
func (h *InsightHandlers) PostInsightAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "insight ID is required", nil)
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if req.Action == "" {
		respondError(w, http.StatusBadRequest, "action is required", nil)
		return
	}
	if !types.IsValidInsightAction(req.Action) {
		respondError(w, http.StatusBadRequest, "invalid action", nil)
		return
	}

	insight, err := h.insights.PerformAction(r.Context(), id, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			respondError(w, http.StatusNotFound, "insight not found", err)
		case errors.Is(err, services.ErrInvalidTransition):
			respondError(w, http.StatusConflict, "action not allowed for insight status", err)
		case errors.Is(err, storage.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, "invalid action", err)
		default:
			respondError(w, http.StatusInternalServerError, "failed to perform action", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, insight)
}

// Helper functions

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing to do but log.
		log.Printf("WARNING: handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
