// Package engine contains the semantic processing core: the extraction
// cursor, the pipeline processor, the insight rule engine, the scheduler
// that drives periodic runs, and the working-context builder.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// EntityExtractor produces entities from a single note's content.
type EntityExtractor interface {
	Extract(ctx context.Context, notePath string, content string) ([]*types.Entity, error)
	Model() string
}

// Processor runs the extraction pipeline: pick up due notes, extract
// entities, advance the cursor, then generate insights once per run. Every
// run is recorded in insight_scheduler_runs and finalized exactly once.
type Processor struct {
	tracker   *ProcessingStateTracker
	extractor EntityExtractor
	entities  storage.EntityStore
	runs      storage.RunStore
	rules     *InsightRuleEngine
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(tracker *ProcessingStateTracker, extractor EntityExtractor, entities storage.EntityStore, runs storage.RunStore, rules *InsightRuleEngine) *Processor {
	return &Processor{
		tracker:   tracker,
		extractor: extractor,
		entities:  entities,
		runs:      runs,
		rules:     rules,
	}
}

// RunPipeline executes one processing run over at most maxNotes due notes
// within the maxRuntime budget. The budget is checked between notes, never
// mid-extraction, so an in-flight note always completes. A single note
// failure is recorded in the run's error list and never aborts the batch.
// Insight generation runs exactly once after the note loop, also after an
// early stop or a panic that aborts the loop: whatever was processed
// before the abort still feeds generation. The run row is finalized in a
// deferred path that survives errors and panics.
func (p *Processor) RunPipeline(ctx context.Context, maxNotes int, maxRuntime time.Duration) (summary *types.RunSummary, err error) {
	run := &types.SchedulerRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	if createErr := p.runs.CreateRun(ctx, run); createErr != nil {
		return nil, fmt.Errorf("failed to create run record: %w", createErr)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: processor: run %s panicked: %v", run.ID, r)
			run.Errors = append(run.Errors, types.RunError{Error: fmt.Sprintf("panic: %v", r)})
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		completed := time.Now().UTC()
		run.CompletedAt = &completed
		run.RuntimeSeconds = time.Since(start).Seconds()

		// Finalize with a fresh context so a cancelled run still gets its row.
		if finalizeErr := p.runs.FinalizeRun(context.Background(), run); finalizeErr != nil {
			log.Printf("ERROR: processor: failed to finalize run %s: %v", run.ID, finalizeErr)
		}

		summary = &types.RunSummary{
			RunID:             run.ID,
			NotesProcessed:    run.NotesProcessed,
			EntitiesExtracted: run.EntitiesExtracted,
			InsightsGenerated: run.InsightsGenerated,
			Errors:            run.Errors,
			StartedAt:         run.StartedAt,
			CompletedAt:       completed,
			RuntimeSeconds:    run.RuntimeSeconds,
		}
	}()

	err = p.processNotes(ctx, run, start, maxNotes, maxRuntime)

	// Insight generation runs once per pipeline run, even after an early
	// stop or an aborted note loop. A failure here is recorded but never
	// loses the note work above.
	generated, rulesErr := p.rules.GenerateAll(ctx)
	run.InsightsGenerated = generated
	if rulesErr != nil {
		log.Printf("WARNING: processor: insight generation failed: %v", rulesErr)
		run.Errors = append(run.Errors, types.RunError{Error: fmt.Sprintf("insight generation: %v", rulesErr)})
	}

	return
}

// processNotes runs the due query and the extraction loop, recording
// progress and failures on the run. A panic is recovered and recorded
// here, not in RunPipeline's finalizer, so that an aborted loop still
// reaches insight generation.
func (p *Processor) processNotes(ctx context.Context, run *types.SchedulerRun, start time.Time, maxNotes int, maxRuntime time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: processor: run %s note loop panicked: %v", run.ID, r)
			run.Errors = append(run.Errors, types.RunError{Error: fmt.Sprintf("panic: %v", r)})
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	due, dueErr := p.tracker.NotesDue(ctx, maxNotes)
	if dueErr != nil {
		run.Errors = append(run.Errors, types.RunError{Error: dueErr.Error()})
		return dueErr
	}

	// TODO: maxAiCallsPerRun from the scheduler config is not enforced
	// here; wire it through once the extractor exposes per-note call counts.
	for _, note := range due {
		if maxRuntime > 0 && time.Since(start) > maxRuntime {
			log.Printf("processor: runtime budget exhausted after %d notes, %d left due", run.NotesProcessed, len(due)-run.NotesProcessed)
			break
		}
		if ctx.Err() != nil {
			run.Errors = append(run.Errors, types.RunError{Error: ctx.Err().Error()})
			break
		}

		entities, extractErr := p.extractor.Extract(ctx, note.Path, note.Content)
		if extractErr != nil {
			log.Printf("WARNING: processor: extraction failed for %s: %v", note.Path, extractErr)
			run.Errors = append(run.Errors, types.RunError{Note: note.Path, Error: extractErr.Error()})
			continue
		}
		if replaceErr := p.entities.ReplaceEntities(ctx, note.Path, entities); replaceErr != nil {
			log.Printf("WARNING: processor: entity replace failed for %s: %v", note.Path, replaceErr)
			run.Errors = append(run.Errors, types.RunError{Note: note.Path, Error: replaceErr.Error()})
			continue
		}
		if markErr := p.tracker.MarkProcessed(ctx, note.Path, note.Fingerprint); markErr != nil {
			log.Printf("WARNING: processor: cursor update failed for %s: %v", note.Path, markErr)
			run.Errors = append(run.Errors, types.RunError{Note: note.Path, Error: markErr.Error()})
			continue
		}

		run.NotesProcessed++
		run.EntitiesExtracted += len(entities)
	}
	return nil
}
