package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// DedupPolicy selects how the rule engine decides an insight already exists.
type DedupPolicy string

const (
	// DedupIndexed matches on the (insight_type, dedup_key) index. This is
	// the default policy.
	DedupIndexed DedupPolicy = "indexed"

	// DedupScan is the legacy substring scan over evidence, summary, title
	// and source notes of live insights. Kept as a configurable policy;
	// like the indexed policy it tolerates false negatives on
	// near-duplicate text.
	DedupScan DedupPolicy = "scan"
)

// RuleDeps is what a rule gets to work with during a scan.
type RuleDeps struct {
	Entities storage.EntityStore
	Now      time.Time
}

// Proposal is an insight a rule wants to exist. The shared stage decides
// whether it is new, a duplicate, or an update to a live insight.
type Proposal struct {
	Insight *types.Insight

	// UpdateInPlace refreshes the live insight with the same dedup key
	// instead of skipping the proposal as a duplicate. Used by singleton
	// rules whose content changes between runs.
	UpdateInPlace bool
}

// Rule proposes insights from the current entity state. Rules never write
// to the store themselves; the shared stage owns dedup and persistence.
type Rule interface {
	Name() string
	Scan(ctx context.Context, deps *RuleDeps) ([]*Proposal, error)
}

// InsightRuleEngine runs the rule catalogue in fixed declared order, each
// rule at most once per GenerateAll, with one shared dedup-and-upsert stage
// after each rule. A failing rule contributes zero insights, is logged, and
// never aborts the others.
type InsightRuleEngine struct {
	entities storage.EntityStore
	insights storage.InsightStore
	rules    []Rule
	policy   DedupPolicy
	clock    func() time.Time
}

// NewInsightRuleEngine creates the engine with the standard rule catalogue.
func NewInsightRuleEngine(entities storage.EntityStore, insights storage.InsightStore, policy DedupPolicy) *InsightRuleEngine {
	if policy != DedupScan {
		policy = DedupIndexed
	}
	return &InsightRuleEngine{
		entities: entities,
		insights: insights,
		rules: []Rule{
			&activeTodosRule{},
			&todoSummaryRule{},
			&projectOverviewRule{},
			&staleTodoRule{daysThreshold: staleTodoDaysThreshold},
			&orphanMentionRule{daysRecent: orphanMentionDaysRecent},
		},
		policy: policy,
		clock:  time.Now,
	}
}

// GenerateAll runs every rule once and returns the number of insights
// created. Updates to live singletons do not count as created.
func (e *InsightRuleEngine) GenerateAll(ctx context.Context) (int, error) {
	created := 0
	deps := &RuleDeps{
		Entities: e.entities,
		Now:      e.clock().UTC(),
	}

	for _, rule := range e.rules {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}

		proposals, err := rule.Scan(ctx, deps)
		if err != nil {
			log.Printf("WARNING: rules: %s scan failed: %v", rule.Name(), err)
			continue
		}
		for _, proposal := range proposals {
			n, err := e.apply(ctx, proposal, deps.Now)
			if err != nil {
				log.Printf("WARNING: rules: %s could not store %q: %v", rule.Name(), proposal.Insight.Title, err)
				continue
			}
			created += n
		}
	}
	return created, nil
}

// apply runs the shared dedup-and-upsert stage for one proposal. Returns 1
// when a new insight was created, 0 otherwise.
func (e *InsightRuleEngine) apply(ctx context.Context, proposal *Proposal, now time.Time) (int, error) {
	insight := proposal.Insight
	if insight == nil || insight.DedupKey == "" {
		return 0, fmt.Errorf("proposal missing insight or dedup key")
	}

	if proposal.UpdateInPlace {
		existing, err := e.insights.FindLiveByDedupKey(ctx, insight.InsightType, insight.DedupKey)
		if err == nil {
			existing.Title = insight.Title
			existing.Summary = insight.Summary
			existing.SourceNotes = insight.SourceNotes
			existing.Evidence = insight.Evidence
			existing.Confidence = insight.Confidence
			existing.Priority = insight.Priority
			existing.SuggestedActions = insight.SuggestedActions
			if updateErr := e.insights.UpdateInsightContent(ctx, existing); updateErr != nil {
				return 0, updateErr
			}
			return 0, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return 0, err
		}
	} else {
		dup, err := e.isDuplicate(ctx, insight)
		if err != nil {
			return 0, err
		}
		if dup {
			return 0, nil
		}
	}

	insight.ID = uuid.NewString()
	insight.Status = types.InsightNew
	insight.CreatedAt = now
	if err := e.insights.CreateInsight(ctx, insight); err != nil {
		return 0, err
	}
	return 1, nil
}

// isDuplicate reports whether a live insight already covers this proposal
// under the configured policy.
func (e *InsightRuleEngine) isDuplicate(ctx context.Context, insight *types.Insight) (bool, error) {
	switch e.policy {
	case DedupScan:
		for _, field := range storage.ValidDedupScanFields {
			match, err := e.insights.MatchLiveSubstring(ctx, insight.InsightType, field, insight.DedupKey)
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		}
		return false, nil
	default:
		_, err := e.insights.FindLiveByDedupKey(ctx, insight.InsightType, insight.DedupKey)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
}

// CleanupExpired hard-deletes dismissed insights older than daysOld days.
// This is the only irreversible deletion path in the core.
func (e *InsightRuleEngine) CleanupExpired(ctx context.Context, daysOld int) (int, error) {
	if daysOld <= 0 {
		daysOld = DefaultCleanupDays
	}
	cutoff := e.clock().UTC().AddDate(0, 0, -daysOld)
	deleted, err := e.insights.DeleteExpiredDismissed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	if deleted > 0 {
		log.Printf("rules: cleaned up %d dismissed insights older than %d days", deleted, daysOld)
	}
	return deleted, nil
}

// DefaultCleanupDays is how long dismissed insights are kept before
// CleanupExpired may delete them.
const DefaultCleanupDays = 30
