package handlers_test

import (
	"bytes"
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

	"github.com/Knuckles92/obby-sub000/internal/engine"
	"github.com/Knuckles92/obby-sub000/internal/storage/sqlite"
	"github.com/Knuckles92/obby-sub000/internal/vault"
	"github.com/Knuckles92/obby-sub000/pkg/types"
	"github.com/Knuckles92/obby-sub000/web/handlers"
)

// gatedExtractor blocks inside Extract until released, so tests can observe
// a run in flight.
type gatedExtractor struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedExtractor) Extract(ctx context.Context, notePath, content string) ([]*types.Entity, error) {
	close(g.started)
	<-g.release
	return nil, nil
}

func (g *gatedExtractor) Model() string { return "gated" }

// nullExtractor returns no entities.
type nullExtractor struct{}

func (nullExtractor) Extract(ctx context.Context, notePath, content string) ([]*types.Entity, error) {
	return nil, nil
}

func (nullExtractor) Model() string { return "null" }

func newProcessingHandlers(t *testing.T, store *sqlite.Store, vaultDir string, extractor engine.EntityExtractor) (*handlers.ProcessingHandlers, *engine.Scheduler) {
	t.Helper()
	reader, err := vault.NewReader(vaultDir)
	require.NoError(t, err)

	tracker := engine.NewTracker(store, reader)
	rules := engine.NewInsightRuleEngine(store, store, engine.DedupIndexed)
	processor := engine.NewProcessor(tracker, extractor, store, store, rules)

	scheduler, err := engine.NewScheduler(processor, tracker, engine.DefaultConfig())
	require.NoError(t, err)
	return handlers.NewProcessingHandlers(scheduler), scheduler
}

func TestTriggerProcessing_Accepted(t *testing.T) {
	store := newTestStore(t)
	h, _ := newProcessingHandlers(t, store, t.TempDir(), nullExtractor{})

	req := httptest.NewRequest("POST", "/api/processing/trigger", nil)
	w := httptest.NewRecorder()
	h.TriggerProcessing(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "processing started")

	// The run happens in the background and is recorded when it finishes.
	require.Eventually(t, func() bool {
		runs, err := store.ListRuns(context.Background(), 10)
		return err == nil && len(runs) == 1 && runs[0].CompletedAt != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTriggerProcessing_ConflictWhileRunning(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("- [ ] todo"), 0o644))

	gate := &gatedExtractor{started: make(chan struct{}), release: make(chan struct{})}
	h, scheduler := newProcessingHandlers(t, store, dir, gate)

	require.NoError(t, store.UpsertFileState(context.Background(), &types.FileState{
		Path:         "a.md",
		ContentHash:  "stale",
		LastModified: time.Now(),
	}))

	req := httptest.NewRequest("POST", "/api/processing/trigger", nil)
	w := httptest.NewRecorder()
	h.TriggerProcessing(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached extraction")
	}

	w = httptest.NewRecorder()
	h.TriggerProcessing(w, httptest.NewRequest("POST", "/api/processing/trigger", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(gate.release)

	require.Eventually(t, func() bool {
		status, err := scheduler.Status(context.Background())
		return err == nil && !status.IsRunning
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetProcessingStatus(t *testing.T) {
	store := newTestStore(t)
	h, _ := newProcessingHandlers(t, store, t.TempDir(), nullExtractor{})

	req := httptest.NewRequest("GET", "/api/processing/status", nil)
	w := httptest.NewRecorder()
	h.GetProcessingStatus(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status engine.SchedulerStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Enabled)
	assert.False(t, status.IsRunning)
	assert.Equal(t, 0, status.QueueSize)
	assert.Equal(t, 60, status.Config.RunIntervalMinutes)
}

func TestPutProcessingConfig_PartialUpdate(t *testing.T) {
	store := newTestStore(t)
	h, scheduler := newProcessingHandlers(t, store, t.TempDir(), nullExtractor{})

	body := []byte(`{"runIntervalMinutes": 15}`)
	req := httptest.NewRequest("PUT", "/api/processing/config", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.PutProcessingConfig(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	cfg := scheduler.Config()
	assert.Equal(t, 15, cfg.RunIntervalMinutes)
	// Omitted knobs keep their values.
	assert.Equal(t, 50, cfg.MaxNotesPerRun)
	assert.True(t, cfg.Enabled)
}

func TestPutProcessingConfig_RejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	h, scheduler := newProcessingHandlers(t, store, t.TempDir(), nullExtractor{})

	body := []byte(`{"maxNotesPerRun": 0}`)
	req := httptest.NewRequest("PUT", "/api/processing/config", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.PutProcessingConfig(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 50, scheduler.Config().MaxNotesPerRun,
		"rejected config must not be applied")
}
