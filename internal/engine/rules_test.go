package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Knuckles92/obby-sub000/internal/storage/sqlite"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

func seedEntities(t *testing.T, store *sqlite.Store, notePath string, entities ...*types.Entity) {
	t.Helper()
	if err := store.ReplaceEntities(context.Background(), notePath, entities); err != nil {
		t.Fatalf("failed to seed entities for %s: %v", notePath, err)
	}
}

func entityAt(path string, typ types.EntityType, value string, status types.EntityStatus, extractedAt time.Time) *types.Entity {
	return &types.Entity{
		NotePath:    path,
		EntityType:  typ,
		EntityValue: value,
		Status:      status,
		ExtractedAt: extractedAt,
	}
}

// TestActiveTodosRule verifies proposal shape: one insight per open todo,
// named after the note, keyed on normalized todo text.
func TestActiveTodosRule(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedEntities(t, store, "projects/Roadmap.md",
		entityAt("projects/Roadmap.md", types.EntityTodo, "  Ship   the beta ", types.EntityActive, now.Add(-1*time.Hour)),
		entityAt("projects/Roadmap.md", types.EntityTodo, "old and done", types.EntityCompleted, now.Add(-2*time.Hour)),
	)
	seedEntities(t, store, "inbox.md",
		entityAt("inbox.md", types.EntityTodo, "Reply to vendor", types.EntityActive, now.Add(-3*time.Hour)),
	)

	rule := &activeTodosRule{}
	proposals, err := rule.Scan(context.Background(), &RuleDeps{Entities: store, Now: now})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(proposals) != 2 {
		t.Fatalf("len(proposals) = %d, want 2 (completed todo excluded)", len(proposals))
	}

	// Newest extraction first.
	first := proposals[0].Insight
	if first.Title != "Action item in Roadmap" {
		t.Errorf("Title = %q, want %q", first.Title, "Action item in Roadmap")
	}
	if first.DedupKey != "ship the beta" {
		t.Errorf("DedupKey = %q, want normalized todo text", first.DedupKey)
	}
	if first.Confidence != 1.0 || first.Priority != 3 {
		t.Errorf("confidence/priority = %v/%d, want 1.0/3", first.Confidence, first.Priority)
	}
	if proposals[0].UpdateInPlace {
		t.Error("active todo proposals must not update in place")
	}

	var evidence types.ActiveTodoEvidence
	if err := first.DecodeEvidence(&evidence); err != nil {
		t.Fatalf("DecodeEvidence() failed: %v", err)
	}
	if evidence.NotePath != "projects/Roadmap.md" {
		t.Errorf("evidence.NotePath = %q", evidence.NotePath)
	}

	if proposals[1].Insight.Title != "Action item in inbox" {
		t.Errorf("second Title = %q, want %q", proposals[1].Insight.Title, "Action item in inbox")
	}
}

// TestTodoSummaryRule verifies the aggregate counts and the in-place
// singleton marker.
func TestTodoSummaryRule(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedEntities(t, store, "a.md",
		entityAt("a.md", types.EntityTodo, "one", types.EntityActive, now),
		entityAt("a.md", types.EntityTodo, "two", types.EntityActive, now),
	)
	seedEntities(t, store, "b.md",
		entityAt("b.md", types.EntityTodo, "three", types.EntityCompleted, now),
	)

	rule := &todoSummaryRule{}
	proposals, err := rule.Scan(context.Background(), &RuleDeps{Entities: store, Now: now})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("len(proposals) = %d, want 1", len(proposals))
	}

	p := proposals[0]
	if !p.UpdateInPlace {
		t.Error("todo summary must update in place")
	}
	if p.Insight.DedupKey != todoSummaryDedupKey {
		t.Errorf("DedupKey = %q, want the fixed singleton key", p.Insight.DedupKey)
	}
	want := "2 active and 1 completed todos across 2 notes"
	if p.Insight.Summary != want {
		t.Errorf("Summary = %q, want %q", p.Insight.Summary, want)
	}

	var evidence types.TodoSummaryEvidence
	if err := p.Insight.DecodeEvidence(&evidence); err != nil {
		t.Fatalf("DecodeEvidence() failed: %v", err)
	}
	if evidence.ActiveCount != 2 || evidence.CompletedCount != 1 || evidence.NoteCount != 2 {
		t.Errorf("evidence = %+v, want 2/1/2", evidence)
	}
}

// TestTodoSummaryRuleSilentWhenNoTodos verifies that a vault without todos
// produces no summary at all.
func TestTodoSummaryRuleSilentWhenNoTodos(t *testing.T) {
	store := newTestStore(t)

	rule := &todoSummaryRule{}
	proposals, err := rule.Scan(context.Background(), &RuleDeps{Entities: store, Now: time.Now()})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(proposals) != 0 {
		t.Errorf("len(proposals) = %d, want 0", len(proposals))
	}
}

// TestProjectOverviewRule verifies grouping by exact value, ranking by
// note spread and the top-10 cap.
func TestProjectOverviewRule(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	// Atlas spans three notes; eleven single-note projects compete for the
	// remaining slots.
	for i, note := range []string{"n1.md", "n2.md", "n3.md"} {
		seedEntities(t, store, note,
			entityAt(note, types.EntityProject, "Atlas", types.EntityActive, now.Add(-time.Duration(i)*time.Hour)),
		)
	}
	for i := 0; i < 11; i++ {
		note := fmt.Sprintf("solo%02d.md", i)
		seedEntities(t, store, note,
			entityAt(note, types.EntityProject, fmt.Sprintf("p%02d", i), types.EntityActive, now),
		)
	}

	rule := &projectOverviewRule{}
	proposals, err := rule.Scan(context.Background(), &RuleDeps{Entities: store, Now: now})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(proposals) != 10 {
		t.Fatalf("len(proposals) = %d, want 10", len(proposals))
	}

	top := proposals[0].Insight
	if top.Title != "Project: Atlas" {
		t.Errorf("top Title = %q, want Atlas first", top.Title)
	}
	if top.DedupKey != top.Title {
		t.Errorf("DedupKey = %q, want the title", top.DedupKey)
	}

	var evidence types.ProjectOverviewEvidence
	if err := top.DecodeEvidence(&evidence); err != nil {
		t.Fatalf("DecodeEvidence() failed: %v", err)
	}
	if evidence.NoteCount != 3 {
		t.Errorf("evidence.NoteCount = %d, want 3", evidence.NoteCount)
	}
	if len(evidence.Notes) != 3 {
		t.Errorf("evidence.Notes = %v, want all three paths", evidence.Notes)
	}

	// Single-note projects tie on spread and rank by value; the last two
	// alphabetically fall off the cap.
	last := proposals[len(proposals)-1].Insight
	if last.Title != "Project: p08" {
		t.Errorf("last Title = %q, want Project: p08", last.Title)
	}
}

// TestStaleTodoRule verifies the age cutoff and the per-note dedup key.
func TestStaleTodoRule(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	seedEntities(t, store, "errands.md",
		entityAt("errands.md", types.EntityTodo, "Buy milk", types.EntityActive, now.Add(-8*24*time.Hour)),
	)
	seedEntities(t, store, "fresh.md",
		entityAt("fresh.md", types.EntityTodo, "New task", types.EntityActive, now.Add(-2*24*time.Hour)),
	)
	seedEntities(t, store, "done.md",
		entityAt("done.md", types.EntityTodo, "Finished ages ago", types.EntityCompleted, now.Add(-30*24*time.Hour)),
	)

	rule := &staleTodoRule{daysThreshold: staleTodoDaysThreshold}
	proposals, err := rule.Scan(context.Background(), &RuleDeps{Entities: store, Now: now})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("len(proposals) = %d, want 1 (only the 8-day-old active todo)", len(proposals))
	}

	p := proposals[0].Insight
	if p.Title != "Stale todo in errands" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.DedupKey != "errands.md" {
		t.Errorf("DedupKey = %q, want the note path", p.DedupKey)
	}
	if p.Confidence != 0.8 || p.Priority != 2 {
		t.Errorf("confidence/priority = %v/%d, want 0.8/2", p.Confidence, p.Priority)
	}

	var evidence types.StaleTodoEvidence
	if err := p.DecodeEvidence(&evidence); err != nil {
		t.Fatalf("DecodeEvidence() failed: %v", err)
	}
	if evidence.TodoText != "Buy milk" || evidence.AgeDays != 8 {
		t.Errorf("evidence = %+v, want Buy milk at 8 days", evidence)
	}
}

// TestOrphanMentionRule verifies singleton detection across mention, person
// and link values, case-insensitive note grouping and the recency gate.
func TestOrphanMentionRule(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	// Alice appears once, 5 days ago: orphan.
	seedEntities(t, store, "meetings/standup.md",
		entityAt("meetings/standup.md", types.EntityMention, "Alice", types.EntityActive, now.Add(-5*24*time.Hour)),
	)
	// Bob appears in two notes under different casing: not an orphan.
	seedEntities(t, store, "one.md",
		entityAt("one.md", types.EntityMention, "Bob", types.EntityActive, now.Add(-10*24*time.Hour)),
	)
	seedEntities(t, store, "two.md",
		entityAt("two.md", types.EntityMention, "bob", types.EntityActive, now.Add(-9*24*time.Hour)),
	)
	// Carol is too recent to call.
	seedEntities(t, store, "today.md",
		entityAt("today.md", types.EntityMention, "Carol", types.EntityActive, now.Add(-1*24*time.Hour)),
	)
	// Dana is a person entity, also orphaned.
	seedEntities(t, store, "intro.md",
		entityAt("intro.md", types.EntityPerson, "Dana", types.EntityActive, now.Add(-4*24*time.Hour)),
	)

	rule := &orphanMentionRule{daysRecent: orphanMentionDaysRecent}
	proposals, err := rule.Scan(context.Background(), &RuleDeps{Entities: store, Now: now})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(proposals) != 2 {
		t.Fatalf("len(proposals) = %d, want 2 (Alice and Dana)", len(proposals))
	}

	// Oldest first.
	if proposals[0].Insight.Title != "Orphan mention: Alice" {
		t.Errorf("first Title = %q, want Alice", proposals[0].Insight.Title)
	}
	if proposals[1].Insight.Title != "Orphan mention: Dana" {
		t.Errorf("second Title = %q, want Dana", proposals[1].Insight.Title)
	}
	if proposals[0].Insight.DedupKey != "alice" {
		t.Errorf("DedupKey = %q, want normalized value", proposals[0].Insight.DedupKey)
	}
	if proposals[0].Insight.Confidence != 0.7 || proposals[0].Insight.Priority != 1 {
		t.Errorf("confidence/priority = %v/%d, want 0.7/1",
			proposals[0].Insight.Confidence, proposals[0].Insight.Priority)
	}

	var evidence types.OrphanMentionEvidence
	if err := proposals[0].Insight.DecodeEvidence(&evidence); err != nil {
		t.Fatalf("DecodeEvidence() failed: %v", err)
	}
	if evidence.Value != "Alice" || evidence.EntityType != types.EntityMention || evidence.NotePath != "meetings/standup.md" {
		t.Errorf("evidence = %+v", evidence)
	}
}

// TestNoteName covers the display-name helper directly.
func TestNoteName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"projects/Roadmap.md", "Roadmap"},
		{"inbox.markdown", "inbox"},
		{"deep/tree/Note.MD", "Note"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := noteName(tc.in); got != tc.want {
			t.Errorf("noteName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
