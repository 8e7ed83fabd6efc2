package services

import (
	"context"
	"fmt"

	"github.com/Knuckles92/obby-sub000/internal/engine"
	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// ContextConfig is the caller-facing working-context configuration.
type ContextConfig struct {
	WindowDays int `json:"windowDays"`
}

// ContextService serves the working-context snapshot and its persisted
// configuration.
type ContextService struct {
	builder *engine.WorkingContextBuilder
	config  storage.ContextConfigStore
}

// NewContextService creates a new ContextService instance.
func NewContextService(builder *engine.WorkingContextBuilder, config storage.ContextConfigStore) *ContextService {
	return &ContextService{builder: builder, config: config}
}

// GetContext returns the working context, optionally forcing a rebuild.
func (s *ContextService) GetContext(ctx context.Context, forceRefresh bool) (*types.WorkingContext, error) {
	return s.builder.BuildContext(ctx, forceRefresh)
}

// GetConfig returns the persisted context window.
func (s *ContextService) GetConfig(ctx context.Context) (*ContextConfig, error) {
	days, err := s.config.GetContextWindowDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load context config: %w", err)
	}
	return &ContextConfig{WindowDays: days}, nil
}

// UpdateConfig persists a new context window and invalidates the builder
// cache so the next read reflects it.
func (s *ContextService) UpdateConfig(ctx context.Context, windowDays int) (*ContextConfig, error) {
	if !types.IsValidContextWindowDays(windowDays) {
		return nil, fmt.Errorf("%w: context window must be one of %v days, got %d",
			storage.ErrInvalidInput, types.ValidContextWindowDays, windowDays)
	}
	if err := s.config.SetContextWindowDays(ctx, windowDays); err != nil {
		return nil, fmt.Errorf("failed to persist context config: %w", err)
	}
	s.builder.InvalidateCache()
	return &ContextConfig{WindowDays: windowDays}, nil
}
