package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Knuckles92/obby-sub000/internal/services"
	"github.com/Knuckles92/obby-sub000/internal/storage/sqlite"
	"github.com/Knuckles92/obby-sub000/pkg/types"
	"github.com/Knuckles92/obby-sub000/web/handlers"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newInsightHandlers(store *sqlite.Store) *handlers.InsightHandlers {
	return handlers.NewInsightHandlers(services.NewInsightService(store, store))
}

func seedInsight(t *testing.T, store *sqlite.Store, insightType types.InsightType, status types.InsightStatus) string {
	t.Helper()
	id := uuid.NewString()
	err := store.CreateInsight(context.Background(), &types.Insight{
		ID:          id,
		InsightType: insightType,
		Title:       "test insight",
		Summary:     "summary",
		Status:      status,
		DedupKey:    id,
	})
	require.NoError(t, err)
	return id
}

func TestListInsights_ReturnsPaginatedResult(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)

	seedInsight(t, store, types.InsightActiveTodos, types.InsightNew)
	seedInsight(t, store, types.InsightProjectOverview, types.InsightNew)

	req := httptest.NewRequest("GET", "/api/insights?limit=10", nil)
	w := httptest.NewRecorder()
	h.ListInsights(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Items []types.Insight `json:"items"`
		Total int             `json:"total"`
		Limit int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 10, result.Limit)
}

func TestListInsights_FiltersByType(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)

	seedInsight(t, store, types.InsightActiveTodos, types.InsightNew)
	seedInsight(t, store, types.InsightProjectOverview, types.InsightNew)

	req := httptest.NewRequest("GET", "/api/insights?type=active_todos", nil)
	w := httptest.NewRecorder()
	h.ListInsights(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Items []types.Insight `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Items, 1)
	assert.Equal(t, types.InsightActiveTodos, result.Items[0].InsightType)
}

func TestGetInsight_MarksViewed(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)
	id := seedInsight(t, store, types.InsightActiveTodos, types.InsightNew)

	req := httptest.NewRequest("GET", "/api/insights/"+id, nil)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.GetInsight(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var insight types.Insight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &insight))
	assert.Equal(t, id, insight.ID)
	assert.Equal(t, types.InsightViewed, insight.Status)
	assert.NotNil(t, insight.ViewedAt)
}

func TestGetInsight_NotFound(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)

	req := httptest.NewRequest("GET", "/api/insights/nope", nil)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()
	h.GetInsight(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "insight not found")
}

func postAction(t *testing.T, h *handlers.InsightHandlers, id, action string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(handlers.ActionRequest{Action: action})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/insights/"+id+"/action", bytes.NewReader(body))
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.PostInsightAction(w, req)
	return w
}

func TestPostInsightAction_Dismiss(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)
	id := seedInsight(t, store, types.InsightOrphanMention, types.InsightNew)

	w := postAction(t, h, id, "dismiss")
	require.Equal(t, http.StatusOK, w.Code)

	var insight types.Insight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &insight))
	assert.Equal(t, types.InsightDismissed, insight.Status)
}

func TestPostInsightAction_InvalidTransitionConflicts(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)
	id := seedInsight(t, store, types.InsightOrphanMention, types.InsightNew)

	w := postAction(t, h, id, "dismiss")
	require.Equal(t, http.StatusOK, w.Code)

	w = postAction(t, h, id, "dismiss")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "action not allowed")
}

func TestPostInsightAction_UnknownAction(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)
	id := seedInsight(t, store, types.InsightActiveTodos, types.InsightNew)

	w := postAction(t, h, id, "archive")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostInsightAction_MalformedBody(t *testing.T) {
	store := newTestStore(t)
	h := newInsightHandlers(store)
	id := seedInsight(t, store, types.InsightActiveTodos, types.InsightNew)

	req := httptest.NewRequest("POST", "/api/insights/"+id+"/action", bytes.NewReader([]byte("{not json")))
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.PostInsightAction(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
