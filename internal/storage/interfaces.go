// Package storage provides composable storage interfaces for the obby
// insights engine.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. This follows the Interface
// Segregation Principle and allows for flexible backend implementations:
// both the SQLite and PostgreSQL backends satisfy the combined Store.
package storage

import (
	"context"
	"time"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// FileStateStore tracks the scanner's view of files on disk.
// Rows are written only by the vault scanner and watcher; the processing
// core reads them to compute the due set and the working context.
type FileStateStore interface {
	// UpsertFileState creates or updates the tracking row for one file.
	UpsertFileState(ctx context.Context, state *types.FileState) error

	// DeleteFileState removes the tracking row for a file gone from disk.
	// Deleting an untracked path is not an error.
	DeleteFileState(ctx context.Context, path string) error

	// ListFileStates returns all tracked files. Used by the scanner to
	// diff its walk against the previous scan.
	ListFileStates(ctx context.Context) ([]*types.FileState, error)

	// ListNotesModifiedSince returns tracked markdown notes with
	// last_modified >= since, newest first, capped at limit.
	ListNotesModifiedSince(ctx context.Context, since time.Time, limit int) ([]*types.FileState, error)
}

// ProcessingStateStore maintains the extraction cursor: which content
// fingerprint each note carried at its last successful extraction.
type ProcessingStateStore interface {
	// ListNotesDue returns tracked markdown notes whose current hash
	// differs from the processing cursor (or that have no cursor row),
	// most recently modified first, capped at limit.
	ListNotesDue(ctx context.Context, limit int) ([]*types.FileState, error)

	// CountNotesDue returns the size of the current due set.
	CountNotesDue(ctx context.Context) (int, error)

	// UpsertProcessingState records a successful extraction for a note.
	UpsertProcessingState(ctx context.Context, state *types.ProcessingState) error
}

// EntityStore manages extracted note entities.
type EntityStore interface {
	// ReplaceEntities deletes all entities for the note and inserts the
	// given set in a single transaction. An empty set just clears the note.
	ReplaceEntities(ctx context.Context, notePath string, entities []*types.Entity) error

	// ListEntitiesByTypes returns all entities of the given types.
	ListEntitiesByTypes(ctx context.Context, entityTypes []types.EntityType) ([]*types.Entity, error)

	// ListEntitiesForNotes returns all entities belonging to the given notes.
	ListEntitiesForNotes(ctx context.Context, notePaths []string) ([]*types.Entity, error)

	// ListActiveTodos returns active todo entities, newest extraction
	// first, capped at limit.
	ListActiveTodos(ctx context.Context, limit int) ([]*types.Entity, error)

	// ListStaleActiveTodos returns active todo entities extracted before
	// olderThan, oldest first, capped at limit.
	ListStaleActiveTodos(ctx context.Context, olderThan time.Time, limit int) ([]*types.Entity, error)

	// AggregateTodos returns whole-vault todo counts.
	AggregateTodos(ctx context.Context) (*TodoAggregate, error)

	// CountEntitiesByType returns entity counts grouped by type.
	CountEntitiesByType(ctx context.Context) (map[types.EntityType]int, error)

	// CompleteTodoEntity marks active todo entities matching the note path
	// and todo text as completed. Returns the number of rows updated;
	// zero rows is not an error.
	CompleteTodoEntity(ctx context.Context, notePath, todoText string) (int, error)
}

// InsightStore manages generated insights and their review lifecycle.
type InsightStore interface {
	// CreateInsight persists a new insight.
	CreateInsight(ctx context.Context, insight *types.Insight) error

	// GetInsight retrieves an insight by ID.
	// Returns ErrNotFound if the insight doesn't exist.
	GetInsight(ctx context.Context, id string) (*types.Insight, error)

	// ListInsights retrieves insights ordered by status rank
	// (pinned, new, viewed, rest), then priority descending, then
	// created_at descending.
	ListInsights(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Insight], error)

	// UpdateInsightStatus sets the status, and viewed_at when non-nil.
	// Returns ErrNotFound if the insight doesn't exist.
	UpdateInsightStatus(ctx context.Context, id string, status types.InsightStatus, viewedAt *time.Time) error

	// UpdateInsightContent rewrites the mutable content fields of an
	// existing insight (title, summary, source notes, evidence, confidence,
	// priority and dedup key) without touching its review status.
	// Returns ErrNotFound if the insight doesn't exist.
	UpdateInsightContent(ctx context.Context, insight *types.Insight) error

	// FindLiveByDedupKey returns the first live (not dismissed, not
	// actioned) insight of the given type carrying the dedup key.
	// Returns ErrNotFound when no live insight matches.
	FindLiveByDedupKey(ctx context.Context, insightType types.InsightType, dedupKey string) (*types.Insight, error)

	// MatchLiveSubstring reports whether any live insight of the given
	// type contains needle as a case-insensitive substring of the
	// whitelisted field.
	MatchLiveSubstring(ctx context.Context, insightType types.InsightType, field DedupScanField, needle string) (bool, error)

	// DeleteExpiredDismissed hard-deletes insights with status "dismissed"
	// created before olderThan. Returns the number of rows deleted.
	DeleteExpiredDismissed(ctx context.Context, olderThan time.Time) (int, error)

	// CountInsightsByType returns insight counts grouped by type.
	CountInsightsByType(ctx context.Context) (map[types.InsightType]int, error)

	// CountInsightsByStatus returns insight counts grouped by status.
	CountInsightsByStatus(ctx context.Context) (map[types.InsightStatus]int, error)
}

// RunStore manages pipeline run audit records.
type RunStore interface {
	// CreateRun inserts the run row at run start.
	CreateRun(ctx context.Context, run *types.SchedulerRun) error

	// FinalizeRun writes completion time, runtime, counts and errors.
	// Returns ErrNotFound if the run doesn't exist.
	FinalizeRun(ctx context.Context, run *types.SchedulerRun) error

	// GetRun retrieves a run by ID.
	// Returns ErrNotFound if the run doesn't exist.
	GetRun(ctx context.Context, id string) (*types.SchedulerRun, error)

	// ListRuns returns runs newest first, capped at limit.
	ListRuns(ctx context.Context, limit int) ([]*types.SchedulerRun, error)
}

// ContextConfigStore persists the working-context window across restarts.
type ContextConfigStore interface {
	// GetContextWindowDays returns the persisted window, or the default 7
	// when nothing has been stored yet.
	GetContextWindowDays(ctx context.Context) (int, error)

	// SetContextWindowDays persists the window. The value must be one of
	// types.ValidContextWindowDays.
	SetContextWindowDays(ctx context.Context, days int) error
}

// Store is the full storage surface the engine and API are wired against.
type Store interface {
	FileStateStore
	ProcessingStateStore
	EntityStore
	InsightStore
	RunStore
	ContextConfigStore

	// Close releases any resources held by the store.
	Close() error
}
