package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// ErrInvalidTransition indicates an action that the insight's current
// status does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// InsightService owns the insight review lifecycle: listing, the
// viewed-on-read side effect, and the action state machine.
type InsightService struct {
	insights storage.InsightStore
	entities storage.EntityStore
}

// NewInsightService creates a new InsightService instance.
func NewInsightService(insights storage.InsightStore, entities storage.EntityStore) *InsightService {
	return &InsightService{insights: insights, entities: entities}
}

// List returns insights filtered and windowed per opts, in review order:
// pinned, new, viewed, rest; then priority, then creation time.
func (s *InsightService) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Insight], error) {
	return s.insights.ListInsights(ctx, opts)
}

// Get retrieves one insight and marks it viewed if it was new.
func (s *InsightService) Get(ctx context.Context, id string) (*types.Insight, error) {
	insight, err := s.insights.GetInsight(ctx, id)
	if err != nil {
		return nil, err
	}

	if insight.Status == types.InsightNew {
		now := time.Now().UTC()
		if err := s.insights.UpdateInsightStatus(ctx, id, types.InsightViewed, &now); err != nil {
			return nil, fmt.Errorf("failed to mark insight viewed: %w", err)
		}
		insight.Status = types.InsightViewed
		insight.ViewedAt = &now
	}
	return insight, nil
}

// PerformAction applies a review action and returns the updated insight.
//
// The action resolves to a target status via types.StatusForAction and the
// move is checked against types.IsValidInsightTransition. mark_done carries
// one extra gate (todo-derived insight types only) and also completes the
// todo entity named in the evidence. Nothing leaves actioned.
func (s *InsightService) PerformAction(ctx context.Context, id, action string) (*types.Insight, error) {
	insight, err := s.insights.GetInsight(ctx, id)
	if err != nil {
		return nil, err
	}

	target, ok := types.StatusForAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", storage.ErrInvalidInput, action)
	}
	if action == types.ActionMarkDone && !types.IsTodoDerived(insight.InsightType) {
		return nil, fmt.Errorf("%w: %s insights cannot be marked done", ErrInvalidTransition, insight.InsightType)
	}
	if !types.IsValidInsightTransition(insight.Status, target) {
		return nil, transitionErr(action, insight.Status)
	}

	if err := s.insights.UpdateInsightStatus(ctx, id, target, nil); err != nil {
		return nil, fmt.Errorf("failed to update insight status: %w", err)
	}
	insight.Status = target

	if action == types.ActionMarkDone {
		s.completeLinkedTodo(ctx, insight)
	}
	return insight, nil
}

// Stats aggregates insight and entity counts for the stats endpoint.
func (s *InsightService) Stats(ctx context.Context) (*types.Stats, error) {
	byType, err := s.insights.CountInsightsByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count insights by type: %w", err)
	}
	byStatus, err := s.insights.CountInsightsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count insights by status: %w", err)
	}
	entityCounts, err := s.entities.CountEntitiesByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}

	return &types.Stats{
		ByType:       byType,
		ByStatus:     byStatus,
		NewCount:     byStatus[types.InsightNew],
		EntityCounts: entityCounts,
	}, nil
}

// todoEvidence is the common slice of active-todo and stale-todo evidence
// payloads needed to locate the underlying entity.
type todoEvidence struct {
	TodoText string `json:"todoText"`
	NotePath string `json:"notePath"`
}

// completeLinkedTodo marks the evidence's todo entity completed. Best
// effort: the insight transition already happened, and the entity may have
// been re-extracted or edited away since.
func (s *InsightService) completeLinkedTodo(ctx context.Context, insight *types.Insight) {
	var evidence todoEvidence
	if err := insight.DecodeEvidence(&evidence); err != nil {
		log.Printf("WARNING: services: insight %s has no decodable todo evidence: %v", insight.ID, err)
		return
	}
	if evidence.TodoText == "" || evidence.NotePath == "" {
		log.Printf("WARNING: services: insight %s evidence names no todo", insight.ID)
		return
	}

	updated, err := s.entities.CompleteTodoEntity(ctx, evidence.NotePath, evidence.TodoText)
	if err != nil {
		log.Printf("WARNING: services: failed to complete todo for insight %s: %v", insight.ID, err)
		return
	}
	if updated == 0 {
		log.Printf("WARNING: services: no todo entity matched %q in %s for insight %s", evidence.TodoText, evidence.NotePath, insight.ID)
	}
}

func transitionErr(action string, status types.InsightStatus) error {
	return fmt.Errorf("%w: cannot %s an insight in status %q", ErrInvalidTransition, action, status)
}
