package extract

import (
	"context"
	"testing"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

const fixtureNote = `---
tags: [planning, q3]
---
# Budget Review

Met with @alice about the #budget process.

## Next steps

- [ ] Review budget proposal
- [x] Send recap to @bob
- See [[Planning/Q3 Plan|the plan]] and [docs](https://example.com/docs)

### Details

~~~bash
# not-a-tag comment
~~~

More on #budget later.
`

func extractFixture(t *testing.T) []*types.Entity {
	t.Helper()
	extractor := NewHeuristicExtractor()
	entities, err := extractor.Extract(context.Background(), "projects/budget.md", fixtureNote)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return entities
}

func byType(entities []*types.Entity, entityType types.EntityType) []*types.Entity {
	var out []*types.Entity
	for _, e := range entities {
		if e.EntityType == entityType {
			out = append(out, e)
		}
	}
	return out
}

func TestHeuristicTodos(t *testing.T) {
	todos := byType(extractFixture(t), types.EntityTodo)
	if len(todos) != 2 {
		t.Fatalf("expected 2 todos, got %d: %+v", len(todos), todos)
	}

	if todos[0].EntityValue != "Review budget proposal" {
		t.Errorf("unexpected todo value: %q", todos[0].EntityValue)
	}
	if todos[0].Status != types.EntityActive {
		t.Errorf("expected active status, got %s", todos[0].Status)
	}
	if todos[0].LineNumber != 10 {
		t.Errorf("expected line 10, got %d", todos[0].LineNumber)
	}

	if todos[1].EntityValue != "Send recap to @bob" {
		t.Errorf("unexpected todo value: %q", todos[1].EntityValue)
	}
	if todos[1].Status != types.EntityCompleted {
		t.Errorf("expected completed status, got %s", todos[1].Status)
	}
	if todos[1].LineNumber != 11 {
		t.Errorf("expected line 11, got %d", todos[1].LineNumber)
	}
}

func TestHeuristicConceptsFromHeadings(t *testing.T) {
	concepts := byType(extractFixture(t), types.EntityConcept)
	if len(concepts) != 2 {
		t.Fatalf("expected 2 concepts (H1+H2, not H3), got %d: %+v", len(concepts), concepts)
	}
	if concepts[0].EntityValue != "Budget Review" || concepts[0].LineNumber != 4 {
		t.Errorf("unexpected H1 concept: %q at line %d", concepts[0].EntityValue, concepts[0].LineNumber)
	}
	if concepts[1].EntityValue != "Next steps" || concepts[1].LineNumber != 8 {
		t.Errorf("unexpected H2 concept: %q at line %d", concepts[1].EntityValue, concepts[1].LineNumber)
	}
}

func TestHeuristicTagsDedupAndFences(t *testing.T) {
	tags := byType(extractFixture(t), types.EntityTag)

	values := map[string]int{}
	for _, tag := range tags {
		values[tag.EntityValue]++
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 distinct tags, got %v", values)
	}
	for _, want := range []string{"planning", "q3", "budget"} {
		if values[want] != 1 {
			t.Errorf("expected tag %q exactly once, got %d", want, values[want])
		}
	}
	if _, ok := values["not-a-tag"]; ok {
		t.Error("tag inside fenced code block should be ignored")
	}

	// #budget appears twice in prose; the first occurrence wins.
	for _, tag := range tags {
		if tag.EntityValue == "budget" && tag.LineNumber != 6 {
			t.Errorf("expected first #budget occurrence at line 6, got %d", tag.LineNumber)
		}
	}
}

func TestHeuristicMentions(t *testing.T) {
	mentions := byType(extractFixture(t), types.EntityMention)
	if len(mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d: %+v", len(mentions), mentions)
	}
	if mentions[0].EntityValue != "alice" || mentions[0].LineNumber != 6 {
		t.Errorf("unexpected mention: %q at line %d", mentions[0].EntityValue, mentions[0].LineNumber)
	}
	if mentions[1].EntityValue != "bob" || mentions[1].LineNumber != 11 {
		t.Errorf("unexpected mention: %q at line %d", mentions[1].EntityValue, mentions[1].LineNumber)
	}
}

func TestHeuristicLinks(t *testing.T) {
	links := byType(extractFixture(t), types.EntityLink)

	values := map[string]bool{}
	for _, link := range links {
		values[link.EntityValue] = true
	}
	if !values["Planning/Q3 Plan"] {
		t.Errorf("expected wikilink target, got %v", values)
	}
	if !values["https://example.com/docs"] {
		t.Errorf("expected markdown link destination, got %v", values)
	}
}

func TestHeuristicStampsNotePath(t *testing.T) {
	for _, entity := range extractFixture(t) {
		if entity.NotePath != "projects/budget.md" {
			t.Fatalf("expected note path on every entity, got %q", entity.NotePath)
		}
	}
}

func TestHeuristicEmptyNote(t *testing.T) {
	extractor := NewHeuristicExtractor()
	entities, err := extractor.Extract(context.Background(), "empty.md", "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("expected no entities from empty note, got %d", len(entities))
	}
}

func TestSplitFrontmatter(t *testing.T) {
	tags, body, start := splitFrontmatter("---\ntags: [a, b]\n---\nBody line\n")
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("unexpected tags: %v", tags)
	}
	if body != "Body line\n" {
		t.Errorf("unexpected body: %q", body)
	}
	if start != 3 {
		t.Errorf("expected body to start after line 3, got %d", start)
	}

	// Comma-separated tag strings are common in the wild.
	tags, _, _ = splitFrontmatter("---\ntags: alpha, beta\n---\nx")
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("unexpected loose tags: %v", tags)
	}

	// No frontmatter: content passes through untouched.
	tags, body, start = splitFrontmatter("# Just a note\n")
	if tags != nil || body != "# Just a note\n" || start != 0 {
		t.Errorf("expected passthrough, got tags=%v body=%q start=%d", tags, body, start)
	}

	// Unterminated frontmatter is treated as body.
	_, body, _ = splitFrontmatter("---\ntags: [a]\nno closer")
	if body != "---\ntags: [a]\nno closer" {
		t.Errorf("expected unterminated block treated as body, got %q", body)
	}
}
