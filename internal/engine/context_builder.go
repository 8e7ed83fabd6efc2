package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// Working-context selection caps.
const (
	contextCacheTTL           = 10 * time.Minute
	contextMaxFiles           = 200
	contextMaxProjects        = 10
	contextMaxProjectExamples = 5
	contextMaxProjectTags     = 10
	contextMaxTopics          = 15
	contextMaxMentions        = 10
	contextMaxTodos           = 50
)

// activeFileThreshold is the recency score at or above which a file counts
// toward the work-trajectory activity bucket.
const activeFileThreshold = 0.7

// WorkingContextBuilder assembles a recency-weighted snapshot of current
// vault activity. Builds are cached for ten minutes and served by
// reference; the snapshot is rebuilt wholesale, never mutated in place.
type WorkingContextBuilder struct {
	files    storage.FileStateStore
	entities storage.EntityStore
	config   storage.ContextConfigStore

	mu     sync.Mutex
	cached *types.WorkingContext

	clock func() time.Time
}

// NewContextBuilder creates a builder over the given stores.
func NewContextBuilder(files storage.FileStateStore, entities storage.EntityStore, config storage.ContextConfigStore) *WorkingContextBuilder {
	return &WorkingContextBuilder{
		files:    files,
		entities: entities,
		config:   config,
		clock:    time.Now,
	}
}

// BuildContext returns the working context, rebuilding it when the cache
// is older than ten minutes or forceRefresh is set.
func (b *WorkingContextBuilder) BuildContext(ctx context.Context, forceRefresh bool) (*types.WorkingContext, error) {
	b.mu.Lock()
	if !forceRefresh && b.cached != nil && b.clock().Sub(b.cached.BuiltAt) < contextCacheTTL {
		cached := b.cached
		b.mu.Unlock()
		return cached, nil
	}
	b.mu.Unlock()

	built, err := b.build(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.cached = built
	b.mu.Unlock()
	return built, nil
}

// InvalidateCache drops the cached snapshot. Config changes that alter the
// context window call this so the next read rebuilds.
func (b *WorkingContextBuilder) InvalidateCache() {
	b.mu.Lock()
	b.cached = nil
	b.mu.Unlock()
}

func (b *WorkingContextBuilder) build(ctx context.Context) (*types.WorkingContext, error) {
	now := b.clock()

	windowDays, err := b.config.GetContextWindowDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load context window: %w", err)
	}
	if !types.IsValidContextWindowDays(windowDays) {
		windowDays = types.DefaultContextWindowDays
	}

	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	files, err := b.files.ListNotesModifiedSince(ctx, since, contextMaxFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent notes: %w", err)
	}

	// One entity query for the whole window, partitioned per note below.
	perNote := make(map[string]*noteEntities)
	if len(files) > 0 {
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		entities, err := b.entities.ListEntitiesForNotes(ctx, paths)
		if err != nil {
			return nil, fmt.Errorf("failed to list entities for recent notes: %w", err)
		}
		for _, entity := range entities {
			ne, ok := perNote[entity.NotePath]
			if !ok {
				ne = newNoteEntities()
				perNote[entity.NotePath] = ne
			}
			ne.add(entity)
		}
	}

	wc := &types.WorkingContext{
		RecentFiles:       make([]types.RecentFile, 0, len(files)),
		ContextWindowDays: windowDays,
		BuiltAt:           now,
	}

	type cluster struct {
		name       string
		fileCount  int
		sumRecency float64
		examples   []string
		tags       []string
		tagSeen    map[string]bool
	}
	clusters := make(map[string]*cluster)

	topicWeights := make(map[string]float64)
	mentionWeights := make(map[string]float64)
	activeFiles := 0

	for _, f := range files {
		score := recencyScore(now.Sub(f.LastModified))
		if score >= activeFileThreshold {
			activeFiles++
		}
		ne := perNote[f.Path]
		if ne == nil {
			ne = newNoteEntities()
		}

		wc.RecentFiles = append(wc.RecentFiles, types.RecentFile{
			Path:            f.Path,
			LastModified:    f.LastModified,
			RecencyScore:    score,
			Directory:       noteDirectory(f.Path),
			Tags:            ne.tags,
			Mentions:        ne.mentions,
			ActiveTodoCount: len(ne.todos),
		})

		segment := topSegment(f.Path)
		cl, ok := clusters[segment]
		if !ok {
			cl = &cluster{name: segment, tagSeen: make(map[string]bool)}
			clusters[segment] = cl
		}
		cl.fileCount++
		cl.sumRecency += score
		if len(cl.examples) < contextMaxProjectExamples {
			cl.examples = append(cl.examples, f.Path)
		}
		for _, tag := range ne.tags {
			if !cl.tagSeen[tag] && len(cl.tags) < contextMaxProjectTags {
				cl.tagSeen[tag] = true
				cl.tags = append(cl.tags, tag)
			}
		}

		// Terms are weighted by the file's recency score, counted once per
		// file no matter how often they appear in it.
		for _, tag := range ne.tags {
			topicWeights[tag] += score
		}
		for _, mention := range ne.mentions {
			mentionWeights[mention] += score
		}

		for _, todo := range ne.todos {
			if len(wc.PendingTodos) == contextMaxTodos {
				continue
			}
			wc.PendingTodos = append(wc.PendingTodos, types.PendingTodo{
				Text:         todo.EntityValue,
				NotePath:     todo.NotePath,
				RecencyScore: score,
				AgeDays:      int(now.Sub(todo.ExtractedAt).Hours() / 24),
			})
		}
	}

	ordered := make([]*cluster, 0, len(clusters))
	for _, cl := range clusters {
		ordered = append(ordered, cl)
	}
	sort.Slice(ordered, func(i, j int) bool {
		si := float64(ordered[i].fileCount)*0.3 + ordered[i].sumRecency*0.7
		sj := float64(ordered[j].fileCount)*0.3 + ordered[j].sumRecency*0.7
		if si != sj {
			return si > sj
		}
		return ordered[i].name < ordered[j].name
	})
	if len(ordered) > contextMaxProjects {
		ordered = ordered[:contextMaxProjects]
	}
	for _, cl := range ordered {
		wc.ActiveProjects = append(wc.ActiveProjects, types.ProjectCluster{
			Name:          cl.name,
			FileCount:     cl.fileCount,
			ActivityScore: float64(cl.fileCount)*0.3 + cl.sumRecency*0.7,
			ExampleFiles:  cl.examples,
			Tags:          cl.tags,
		})
	}

	wc.HotTopics = topTerms(topicWeights, contextMaxTopics)
	wc.HotMentions = topTerms(mentionWeights, contextMaxMentions)

	topProject := ""
	if len(wc.ActiveProjects) > 0 {
		topProject = wc.ActiveProjects[0].Name
	}
	topTopics := make([]string, 0, 3)
	for _, term := range wc.HotTopics {
		if len(topTopics) == 3 {
			break
		}
		topTopics = append(topTopics, term.Value)
	}
	wc.WorkTrajectory = buildTrajectory(activeFiles, topProject, topTopics)

	return wc, nil
}

// noteEntities is the per-note slice of the window's entity set: distinct
// tags and mentions in first-occurrence order, plus active todos.
type noteEntities struct {
	tags        []string
	mentions    []string
	todos       []*types.Entity
	tagSeen     map[string]bool
	mentionSeen map[string]bool
}

func newNoteEntities() *noteEntities {
	return &noteEntities{
		tagSeen:     make(map[string]bool),
		mentionSeen: make(map[string]bool),
	}
}

func (ne *noteEntities) add(entity *types.Entity) {
	switch entity.EntityType {
	case types.EntityTag:
		if !ne.tagSeen[entity.EntityValue] {
			ne.tagSeen[entity.EntityValue] = true
			ne.tags = append(ne.tags, entity.EntityValue)
		}
	case types.EntityMention:
		if !ne.mentionSeen[entity.EntityValue] {
			ne.mentionSeen[entity.EntityValue] = true
			ne.mentions = append(ne.mentions, entity.EntityValue)
		}
	case types.EntityTodo:
		if entity.Status == types.EntityActive {
			ne.todos = append(ne.todos, entity)
		}
	}
}

// recencyScore maps hours-since-modified onto the fixed staircase. First
// match wins.
func recencyScore(age time.Duration) float64 {
	hours := age.Hours()
	switch {
	case hours <= 24:
		return 1.0
	case hours <= 72:
		return 0.7
	case hours <= 168:
		return 0.4
	case hours <= 336:
		return 0.2
	case hours <= 720:
		return 0.1
	default:
		return 0.05
	}
}

// topSegment returns the first path segment of a vault-relative note path,
// or "root" for files sitting at the vault root.
func topSegment(notePath string) string {
	if i := strings.IndexByte(notePath, '/'); i > 0 {
		return notePath[:i]
	}
	return "root"
}

// noteDirectory returns the containing directory of a vault-relative path,
// "." for files at the vault root.
func noteDirectory(notePath string) string {
	if i := strings.LastIndexByte(notePath, '/'); i > 0 {
		return notePath[:i]
	}
	return "."
}

// topTerms sorts a weight map by weight descending, value ascending, and
// keeps the first limit terms.
func topTerms(weights map[string]float64, limit int) []types.WeightedTerm {
	if len(weights) == 0 {
		return nil
	}
	terms := make([]types.WeightedTerm, 0, len(weights))
	for value, weight := range weights {
		terms = append(terms, types.WeightedTerm{Value: value, Weight: weight})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Value < terms[j].Value
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// buildTrajectory renders the deterministic one-line activity readout shown
// at the top of the context panel.
func buildTrajectory(activeFiles int, topProject string, topTopics []string) string {
	if activeFiles == 0 {
		return "Quiet: nothing has changed in the last couple of days."
	}

	level := "Light"
	switch {
	case activeFiles >= 10:
		level = "Heavy"
	case activeFiles >= 4:
		level = "Steady"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s activity across %d recently edited notes", level, activeFiles)
	if topProject != "" {
		fmt.Fprintf(&sb, ", mostly in %s", topProject)
	}
	if len(topTopics) > 0 {
		fmt.Fprintf(&sb, ", around %s", strings.Join(topTopics, ", "))
	}
	sb.WriteString(".")
	return sb.String()
}
