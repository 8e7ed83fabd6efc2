package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Knuckles92/obby-sub000/internal/services"
	"github.com/Knuckles92/obby-sub000/internal/storage"
)

// ContextHandlers serves the working-context snapshot and its config.
type ContextHandlers struct {
	context *services.ContextService
}

// NewContextHandlers creates a new ContextHandlers instance.
func NewContextHandlers(context *services.ContextService) *ContextHandlers {
	return &ContextHandlers{context: context}
}

// GetContext handles GET /api/context - the working-context snapshot.
// ?refresh=true bypasses the cache.
func (h *ContextHandlers) GetContext(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"

	wc, err := h.context.GetContext(r.Context(), refresh)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build working context", err)
		return
	}
	respondJSON(w, http.StatusOK, wc)
}

// GetContextConfig handles GET /api/context/config.
func (h *ContextHandlers) GetContextConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.context.GetConfig(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load context config", err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// PutContextConfig handles PUT /api/context/config - change the context
// window. The change persists and invalidates the cached snapshot.
func (h *ContextHandlers) PutContextConfig(w http.ResponseWriter, r *http.Request) {
	var req services.ContextConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	cfg, err := h.context.UpdateConfig(r.Context(), req.WindowDays)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid context window", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update context config", err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}
