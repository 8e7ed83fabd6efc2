package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceNoteSnippetMax is the maximum length, in runes, of a source note
// snippet attached to an insight.
const SourceNoteSnippetMax = 100

// SourceNote references one note that contributed to an insight, with a
// short snippet of the relevant content.
type SourceNote struct {
	Path    string `json:"path"`
	Snippet string `json:"snippet,omitempty"`
}

// NewSourceNote builds a SourceNote, truncating the snippet to
// SourceNoteSnippetMax runes.
func NewSourceNote(path, snippet string) SourceNote {
	r := []rune(snippet)
	if len(r) > SourceNoteSnippetMax {
		snippet = string(r[:SourceNoteSnippetMax])
	}
	return SourceNote{Path: path, Snippet: snippet}
}

// Insight is a generated, user-facing observation derived from entities.
// Insights are created only by the rule engine (subject to a per-rule dedup
// guard) and hard-deleted only by the expired-dismissed cleanup.
type Insight struct {
	ID               string          `json:"id"`
	InsightType      InsightType     `json:"insightType"`
	Title            string          `json:"title"`
	Summary          string          `json:"summary"`
	SourceNotes      []SourceNote    `json:"sourceNotes,omitempty"`
	Evidence         json.RawMessage `json:"evidence,omitempty"` // type-specific payload, see *Evidence structs
	Confidence       float64         `json:"confidence"`         // always in [0,1]
	Priority         int             `json:"priority"`           // non-negative, higher = more important
	Status           InsightStatus   `json:"status"`
	SuggestedActions []string        `json:"suggestedActions,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	ViewedAt         *time.Time      `json:"viewedAt,omitempty"`

	// DedupKey is the normalized per-rule identity key used by the indexed
	// dedup guard. Internal; not part of the wire shape.
	DedupKey string `json:"-"`
}

// ActiveTodoEvidence is the evidence payload for active_todos insights.
type ActiveTodoEvidence struct {
	TodoText   string `json:"todoText"`
	NotePath   string `json:"notePath"`
	LineNumber int    `json:"lineNumber,omitempty"`
}

// TodoSummaryEvidence is the evidence payload for the todo_summary singleton.
type TodoSummaryEvidence struct {
	ActiveCount    int `json:"activeCount"`
	CompletedCount int `json:"completedCount"`
	NoteCount      int `json:"noteCount"`
}

// ProjectOverviewEvidence is the evidence payload for project_overview insights.
type ProjectOverviewEvidence struct {
	Project   string   `json:"project"`
	NoteCount int      `json:"noteCount"`
	Notes     []string `json:"notes,omitempty"`
}

// StaleTodoEvidence is the evidence payload for stale_todo insights.
type StaleTodoEvidence struct {
	TodoText string `json:"todoText"`
	NotePath string `json:"notePath"`
	AgeDays  int    `json:"ageDays"`
}

// OrphanMentionEvidence is the evidence payload for orphan_mention insights.
type OrphanMentionEvidence struct {
	Value      string     `json:"value"`
	EntityType EntityType `json:"entityType"`
	NotePath   string     `json:"notePath"`
}

// MarshalEvidence serializes a typed evidence payload for storage on an
// Insight. It never returns invalid JSON for the payload types above.
func MarshalEvidence(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evidence: %w", err)
	}
	return data, nil
}

// DecodeEvidence deserializes an insight's evidence into the given typed
// payload pointer.
func (i *Insight) DecodeEvidence(v interface{}) error {
	if len(i.Evidence) == 0 {
		return fmt.Errorf("insight %s has no evidence", i.ID)
	}
	if err := json.Unmarshal(i.Evidence, v); err != nil {
		return fmt.Errorf("failed to decode evidence for insight %s: %w", i.ID, err)
	}
	return nil
}

// StatusRank returns the listing rank of an insight status:
// pinned=0 < new=1 < viewed=2 < everything else=3. Listings order by rank,
// then priority descending, then createdAt descending.
func StatusRank(status InsightStatus) int {
	switch status {
	case InsightPinned:
		return 0
	case InsightNew:
		return 1
	case InsightViewed:
		return 2
	default:
		return 3
	}
}

// IsTerminalInsightStatus reports whether a status is terminal for dedup
// purposes: terminal insights never block a rule from creating a fresh one.
func IsTerminalInsightStatus(status InsightStatus) bool {
	return status == InsightDismissed || status == InsightActioned
}

// TodoDerivedInsightTypes lists the insight types whose evidence pins a
// single todo entity; only these may be marked done (actioned).
var TodoDerivedInsightTypes = []InsightType{
	InsightStaleTodo,
	InsightActiveTodos,
}

// IsTodoDerived reports whether the insight type is derived from a single
// todo entity and therefore supports the mark_done action.
func IsTodoDerived(insightType InsightType) bool {
	for _, t := range TodoDerivedInsightTypes {
		if t == insightType {
			return true
		}
	}
	return false
}
