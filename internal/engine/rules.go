package engine

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// Rule catalogue constants. The selection sizes and thresholds are fixed;
// only stale/orphan day thresholds are parameters on their rules.
const (
	activeTodosLimit        = 20
	projectOverviewLimit    = 10
	projectOverviewNotesMax = 10
	staleTodoLimit          = 10
	staleTodoDaysThreshold  = 7
	orphanMentionLimit      = 10
	orphanMentionDaysRecent = 3

	todoSummaryDedupKey = "todo-summary"
)

// normalizeText lowercases and collapses whitespace, producing the
// normalized identity keys the dedup guard matches on.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// noteName returns the display name of a note: the base filename without
// its markdown extension.
func noteName(notePath string) string {
	base := path.Base(notePath)
	ext := strings.ToLower(path.Ext(base))
	if ext == ".md" || ext == ".markdown" {
		base = base[:len(base)-len(ext)]
	}
	return base
}

// snippetFor picks the best short text for a source-note snippet.
func snippetFor(entity *types.Entity) string {
	if entity.Context != "" {
		return entity.Context
	}
	return entity.EntityValue
}

// activeTodosRule surfaces the newest open action items, one insight per
// distinct todo text.
type activeTodosRule struct{}

func (r *activeTodosRule) Name() string { return "active_todos" }

func (r *activeTodosRule) Scan(ctx context.Context, deps *RuleDeps) ([]*Proposal, error) {
	todos, err := deps.Entities.ListActiveTodos(ctx, activeTodosLimit)
	if err != nil {
		return nil, err
	}

	proposals := make([]*Proposal, 0, len(todos))
	for _, todo := range todos {
		evidence, err := types.MarshalEvidence(types.ActiveTodoEvidence{
			TodoText:   todo.EntityValue,
			NotePath:   todo.NotePath,
			LineNumber: todo.LineNumber,
		})
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, &Proposal{Insight: &types.Insight{
			InsightType:      types.InsightActiveTodos,
			Title:            fmt.Sprintf("Action item in %s", noteName(todo.NotePath)),
			Summary:          todo.EntityValue,
			SourceNotes:      []types.SourceNote{types.NewSourceNote(todo.NotePath, snippetFor(todo))},
			Evidence:         evidence,
			Confidence:       1.0,
			Priority:         3,
			SuggestedActions: []string{"mark_done", "dismiss"},
			DedupKey:         normalizeText(todo.EntityValue),
		}})
	}
	return proposals, nil
}

// todoSummaryRule maintains a single live overview of todo counts across
// the vault. It proposes nothing when there are no todos at all, and
// updates the live singleton in place instead of stacking duplicates.
type todoSummaryRule struct{}

func (r *todoSummaryRule) Name() string { return "todo_summary" }

func (r *todoSummaryRule) Scan(ctx context.Context, deps *RuleDeps) ([]*Proposal, error) {
	agg, err := deps.Entities.AggregateTodos(ctx)
	if err != nil {
		return nil, err
	}
	if agg.ActiveCount+agg.CompletedCount == 0 {
		return nil, nil
	}

	evidence, err := types.MarshalEvidence(types.TodoSummaryEvidence{
		ActiveCount:    agg.ActiveCount,
		CompletedCount: agg.CompletedCount,
		NoteCount:      agg.NoteCount,
	})
	if err != nil {
		return nil, err
	}
	return []*Proposal{{
		UpdateInPlace: true,
		Insight: &types.Insight{
			InsightType:      types.InsightTodoSummary,
			Title:            "Todo summary",
			Summary:          fmt.Sprintf("%d active and %d completed todos across %d notes", agg.ActiveCount, agg.CompletedCount, agg.NoteCount),
			Evidence:         evidence,
			Confidence:       1.0,
			Priority:         1,
			SuggestedActions: []string{"dismiss"},
			DedupKey:         todoSummaryDedupKey,
		},
	}}, nil
}

// projectOverviewRule groups project entities by value and surfaces the
// most note-spanning ones.
type projectOverviewRule struct{}

func (r *projectOverviewRule) Name() string { return "project_overview" }

func (r *projectOverviewRule) Scan(ctx context.Context, deps *RuleDeps) ([]*Proposal, error) {
	entities, err := deps.Entities.ListEntitiesByTypes(ctx, []types.EntityType{types.EntityProject})
	if err != nil {
		return nil, err
	}

	type projectGroup struct {
		value string
		notes []string // distinct paths, most recent extraction first
		seen  map[string]bool
	}
	groups := make(map[string]*projectGroup)
	var order []string
	for _, entity := range entities {
		group, ok := groups[entity.EntityValue]
		if !ok {
			group = &projectGroup{value: entity.EntityValue, seen: make(map[string]bool)}
			groups[entity.EntityValue] = group
			order = append(order, entity.EntityValue)
		}
		if !group.seen[entity.NotePath] {
			group.seen[entity.NotePath] = true
			group.notes = append(group.notes, entity.NotePath)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := groups[order[i]], groups[order[j]]
		if len(a.notes) != len(b.notes) {
			return len(a.notes) > len(b.notes)
		}
		return a.value < b.value
	})
	if len(order) > projectOverviewLimit {
		order = order[:projectOverviewLimit]
	}

	proposals := make([]*Proposal, 0, len(order))
	for _, value := range order {
		group := groups[value]
		notes := group.notes
		if len(notes) > projectOverviewNotesMax {
			notes = notes[:projectOverviewNotesMax]
		}
		evidence, err := types.MarshalEvidence(types.ProjectOverviewEvidence{
			Project:   group.value,
			NoteCount: len(group.notes),
			Notes:     notes,
		})
		if err != nil {
			return nil, err
		}

		sourceNotes := make([]types.SourceNote, 0, 5)
		for _, notePath := range notes {
			if len(sourceNotes) == 5 {
				break
			}
			sourceNotes = append(sourceNotes, types.NewSourceNote(notePath, group.value))
		}

		title := fmt.Sprintf("Project: %s", group.value)
		proposals = append(proposals, &Proposal{Insight: &types.Insight{
			InsightType:      types.InsightProjectOverview,
			Title:            title,
			Summary:          fmt.Sprintf("%s appears across %d notes", group.value, len(group.notes)),
			SourceNotes:      sourceNotes,
			Evidence:         evidence,
			Confidence:       0.9,
			Priority:         2,
			SuggestedActions: []string{"dismiss"},
			DedupKey:         title,
		}})
	}
	return proposals, nil
}

// staleTodoRule flags the oldest open todos that have sat unresolved past
// the day threshold. One insight per note path.
type staleTodoRule struct {
	daysThreshold int
}

func (r *staleTodoRule) Name() string { return "stale_todo" }

func (r *staleTodoRule) Scan(ctx context.Context, deps *RuleDeps) ([]*Proposal, error) {
	cutoff := deps.Now.AddDate(0, 0, -r.daysThreshold)
	todos, err := deps.Entities.ListStaleActiveTodos(ctx, cutoff, staleTodoLimit)
	if err != nil {
		return nil, err
	}

	proposals := make([]*Proposal, 0, len(todos))
	for _, todo := range todos {
		age := int(deps.Now.Sub(todo.ExtractedAt).Hours() / 24)
		evidence, err := types.MarshalEvidence(types.StaleTodoEvidence{
			TodoText: todo.EntityValue,
			NotePath: todo.NotePath,
			AgeDays:  age,
		})
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, &Proposal{Insight: &types.Insight{
			InsightType:      types.InsightStaleTodo,
			Title:            fmt.Sprintf("Stale todo in %s", noteName(todo.NotePath)),
			Summary:          fmt.Sprintf("%q has been open for %d days", todo.EntityValue, age),
			SourceNotes:      []types.SourceNote{types.NewSourceNote(todo.NotePath, snippetFor(todo))},
			Evidence:         evidence,
			Confidence:       0.8,
			Priority:         2,
			SuggestedActions: []string{"mark_done", "dismiss"},
			DedupKey:         todo.NotePath,
		}})
	}
	return proposals, nil
}

// orphanMentionRule finds mention, person and link values that occur in
// exactly one note and have been around long enough for that to mean
// something. Evaluated at generation time only; an orphan insight is never
// retracted when the value later appears elsewhere.
type orphanMentionRule struct {
	daysRecent int
}

func (r *orphanMentionRule) Name() string { return "orphan_mention" }

func (r *orphanMentionRule) Scan(ctx context.Context, deps *RuleDeps) ([]*Proposal, error) {
	entities, err := deps.Entities.ListEntitiesByTypes(ctx, []types.EntityType{
		types.EntityMention, types.EntityPerson, types.EntityLink,
	})
	if err != nil {
		return nil, err
	}

	type occurrence struct {
		entity    *types.Entity // earliest extraction of the value
		notes     map[string]bool
		firstSeen time.Time
	}
	occurrences := make(map[string]*occurrence)
	for _, entity := range entities {
		key := normalizeText(entity.EntityValue)
		occ, ok := occurrences[key]
		if !ok {
			occ = &occurrence{entity: entity, notes: make(map[string]bool), firstSeen: entity.ExtractedAt}
			occurrences[key] = occ
		}
		occ.notes[entity.NotePath] = true
		if entity.ExtractedAt.Before(occ.firstSeen) {
			occ.firstSeen = entity.ExtractedAt
			occ.entity = entity
		}
	}

	cutoff := deps.Now.AddDate(0, 0, -r.daysRecent)
	var candidates []*occurrence
	for _, occ := range occurrences {
		if len(occ.notes) == 1 && occ.firstSeen.Before(cutoff) {
			candidates = append(candidates, occ)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].firstSeen.Equal(candidates[j].firstSeen) {
			return candidates[i].firstSeen.Before(candidates[j].firstSeen)
		}
		return candidates[i].entity.EntityValue < candidates[j].entity.EntityValue
	})
	if len(candidates) > orphanMentionLimit {
		candidates = candidates[:orphanMentionLimit]
	}

	proposals := make([]*Proposal, 0, len(candidates))
	for _, occ := range candidates {
		entity := occ.entity
		evidence, err := types.MarshalEvidence(types.OrphanMentionEvidence{
			Value:      entity.EntityValue,
			EntityType: entity.EntityType,
			NotePath:   entity.NotePath,
		})
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, &Proposal{Insight: &types.Insight{
			InsightType:      types.InsightOrphanMention,
			Title:            fmt.Sprintf("Orphan mention: %s", entity.EntityValue),
			Summary:          fmt.Sprintf("%q appears only in %s", entity.EntityValue, noteName(entity.NotePath)),
			SourceNotes:      []types.SourceNote{types.NewSourceNote(entity.NotePath, snippetFor(entity))},
			Evidence:         evidence,
			Confidence:       0.7,
			Priority:         1,
			SuggestedActions: []string{"dismiss"},
			DedupKey:         normalizeText(entity.EntityValue),
		}})
	}
	return proposals, nil
}
