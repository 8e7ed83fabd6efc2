package types

import "time"

// RunError is one error captured during a pipeline run, either scoped to a
// single note or to the run as a whole.
type RunError struct {
	Note  string `json:"note,omitempty"`
	Error string `json:"error"`
}

// SchedulerRun is the audit record of one pipeline run. A row is created at
// run start and finalized exactly once, regardless of success or failure.
type SchedulerRun struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"startedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	RuntimeSeconds    float64    `json:"runtimeSeconds"`
	NotesProcessed    int        `json:"notesProcessed"`
	EntitiesExtracted int        `json:"entitiesExtracted"`
	InsightsGenerated int        `json:"insightsGenerated"`
	Errors            []RunError `json:"errors,omitempty"`
}

// RunSummary is the caller-facing result of one pipeline run.
type RunSummary struct {
	RunID             string     `json:"runId"`
	NotesProcessed    int        `json:"notesProcessed"`
	EntitiesExtracted int        `json:"entitiesExtracted"`
	InsightsGenerated int        `json:"insightsGenerated"`
	Errors            []RunError `json:"errors,omitempty"`
	StartedAt         time.Time  `json:"startedAt"`
	CompletedAt       time.Time  `json:"completedAt"`
	RuntimeSeconds    float64    `json:"runtimeSeconds"`
}
