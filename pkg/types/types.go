// Package types defines the core data structures for the obby semantic
// insights engine: extracted note entities, generated insights with their
// review state machine, scheduler run records, and the working-context
// snapshot types.
package types

// EntityType classifies a structured fact extracted from a note.
type EntityType string

// EntityStatus represents the lifecycle status of an extracted entity.
type EntityStatus string

// InsightType classifies a generated insight.
type InsightType string

// InsightStatus represents the user-facing review status of an insight.
type InsightStatus string

// Entity type constants
const (
	EntityTodo    EntityType = "todo"
	EntityPerson  EntityType = "person"
	EntityProject EntityType = "project"
	EntityConcept EntityType = "concept"
	EntityDate    EntityType = "date"
	EntityMention EntityType = "mention"
	EntityTag     EntityType = "tag"
	EntityLink    EntityType = "link"
)

// ValidEntityTypes is a slice of all valid entity types for validation
var ValidEntityTypes = []EntityType{
	EntityTodo,
	EntityPerson,
	EntityProject,
	EntityConcept,
	EntityDate,
	EntityMention,
	EntityTag,
	EntityLink,
}

// Entity status constants
const (
	// EntityActive indicates the entity is current (e.g. an open todo)
	EntityActive EntityStatus = "active"

	// EntityCompleted indicates the entity has been resolved (e.g. a done todo)
	EntityCompleted EntityStatus = "completed"

	// EntityStale indicates the entity has aged out without resolution
	EntityStale EntityStatus = "stale"

	// EntityDismissed indicates the user explicitly discarded the entity
	EntityDismissed EntityStatus = "dismissed"
)

// ValidEntityStatuses is a slice of all valid entity statuses for validation
var ValidEntityStatuses = []EntityStatus{
	EntityActive,
	EntityCompleted,
	EntityStale,
	EntityDismissed,
}

// Insight type constants
const (
	InsightStaleTodo       InsightType = "stale_todo"
	InsightOrphanMention   InsightType = "orphan_mention"
	InsightConnection      InsightType = "connection"
	InsightTheme           InsightType = "theme"
	InsightKnowledgeGap    InsightType = "knowledge_gap"
	InsightContradiction   InsightType = "contradiction"
	InsightTimeline        InsightType = "timeline"
	InsightActiveTodos     InsightType = "active_todos"
	InsightTodoSummary     InsightType = "todo_summary"
	InsightProjectOverview InsightType = "project_overview"
	InsightConceptCluster  InsightType = "concept_cluster"
)

// ValidInsightTypes is a slice of all valid insight types for validation
var ValidInsightTypes = []InsightType{
	InsightStaleTodo,
	InsightOrphanMention,
	InsightConnection,
	InsightTheme,
	InsightKnowledgeGap,
	InsightContradiction,
	InsightTimeline,
	InsightActiveTodos,
	InsightTodoSummary,
	InsightProjectOverview,
	InsightConceptCluster,
}

// Insight status constants
const (
	// InsightNew indicates the insight has been generated but never viewed
	InsightNew InsightStatus = "new"

	// InsightViewed indicates the insight has been individually read
	InsightViewed InsightStatus = "viewed"

	// InsightDismissed indicates the user discarded the insight
	InsightDismissed InsightStatus = "dismissed"

	// InsightPinned indicates the user pinned the insight to the top
	InsightPinned InsightStatus = "pinned"

	// InsightActioned indicates the user completed the underlying action
	InsightActioned InsightStatus = "actioned"
)

// ValidInsightStatuses is a slice of all valid insight statuses for validation
var ValidInsightStatuses = []InsightStatus{
	InsightNew,
	InsightViewed,
	InsightDismissed,
	InsightPinned,
	InsightActioned,
}

// IsValidEntityType checks if the given entity type is valid
func IsValidEntityType(entityType EntityType) bool {
	for _, validType := range ValidEntityTypes {
		if validType == entityType {
			return true
		}
	}
	return false
}

// IsValidEntityStatus checks if the given entity status is valid
func IsValidEntityStatus(status EntityStatus) bool {
	for _, validStatus := range ValidEntityStatuses {
		if validStatus == status {
			return true
		}
	}
	return false
}

// IsValidInsightType checks if the given insight type is valid
func IsValidInsightType(insightType InsightType) bool {
	for _, validType := range ValidInsightTypes {
		if validType == insightType {
			return true
		}
	}
	return false
}

// IsValidInsightStatus checks if the given insight status is valid
func IsValidInsightStatus(status InsightStatus) bool {
	for _, validStatus := range ValidInsightStatuses {
		if validStatus == status {
			return true
		}
	}
	return false
}
