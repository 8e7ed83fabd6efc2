package handlers

import (
	"net/http"

	"github.com/Knuckles92/obby-sub000/internal/vault"
)

// VaultHandlers exposes manual vault maintenance.
type VaultHandlers struct {
	scanner *vault.Scanner
	hub     *WebSocketHub // optional; scan completions are broadcast when set
}

// NewVaultHandlers creates a new VaultHandlers instance.
func NewVaultHandlers(scanner *vault.Scanner, hub *WebSocketHub) *VaultHandlers {
	return &VaultHandlers{scanner: scanner, hub: hub}
}

// PostScan handles POST /api/vault/scan - rescan the vault and refresh the
// file_states mirror. Returns the scan summary.
func (h *VaultHandlers) PostScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.ScanAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "vault scan failed", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(Event{Type: EventScanComplete, Scan: result})
	}
	respondJSON(w, http.StatusOK, result)
}
