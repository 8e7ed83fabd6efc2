package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Knuckles92/obby-sub000/internal/vault"
	"github.com/Knuckles92/obby-sub000/web/handlers"
)

func TestPostScan_ReturnsScanResult(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.md"), []byte("# one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.md"), []byte("# two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("not a note"), 0o644))

	scanner, err := vault.NewScanner(dir, store)
	require.NoError(t, err)
	h := handlers.NewVaultHandlers(scanner, nil)

	req := httptest.NewRequest("POST", "/api/vault/scan", nil)
	w := httptest.NewRecorder()
	h.PostScan(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result vault.ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Removed)

	states, err := store.ListFileStates(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestPostScan_BroadcastsCompletion(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("- [ ] task"), 0o644))

	scanner, err := vault.NewScanner(dir, store)
	require.NoError(t, err)

	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	hub.Register(&handlers.MockClient{SendChan: received})

	h := handlers.NewVaultHandlers(scanner, hub)

	w := httptest.NewRecorder()
	h.PostScan(w, httptest.NewRequest("POST", "/api/vault/scan", nil))
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case msg := <-received:
		assert.Contains(t, string(msg), "scan_complete")
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for scan_complete event")
	}
}
