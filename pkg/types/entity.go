package types

import "time"

// Entity is a structured fact extracted from a note's content.
// A note's entire entity set is deleted and replaced atomically each time
// the note is reprocessed; entities are never merged across extractions.
type Entity struct {
	ID          int64        `json:"id"`
	NotePath    string       `json:"notePath"`
	EntityType  EntityType   `json:"entityType"`
	EntityValue string       `json:"entityValue"`
	Context     string       `json:"context,omitempty"` // surrounding snippet from the note
	Status      EntityStatus `json:"status"`
	LineNumber  int          `json:"lineNumber,omitempty"`
	ExtractedAt time.Time    `json:"extractedAt"`
}

// FileState is one row of the file-tracking table maintained by the vault
// scanner. The processing core only ever reads it.
type FileState struct {
	Path         string    `json:"path"`
	ContentHash  string    `json:"contentHash"`
	LastModified time.Time `json:"lastModified"`
}

// ProcessingState records the content fingerprint of a note at its last
// successful entity extraction. A note is due for reprocessing iff its live
// fingerprint differs from ContentHash, or no record exists.
type ProcessingState struct {
	NotePath             string    `json:"notePath"`
	ContentHash          string    `json:"contentHash"`
	LastEntityExtraction time.Time `json:"lastEntityExtraction"`
}

// Stats aggregates insight and entity counts for the stats endpoint.
type Stats struct {
	ByType       map[InsightType]int   `json:"byType"`
	ByStatus     map[InsightStatus]int `json:"byStatus"`
	NewCount     int                   `json:"newCount"`
	EntityCounts map[EntityType]int    `json:"entityCounts"`
}
