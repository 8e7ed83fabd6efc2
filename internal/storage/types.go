package storage

import (
	"errors"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// DedupScanField names an insight column the legacy substring dedup scan is
// allowed to search. The whitelist keeps field names out of SQL injection
// territory; anything else is rejected with ErrInvalidInput.
type DedupScanField string

const (
	ScanEvidence    DedupScanField = "evidence"
	ScanSummary     DedupScanField = "summary"
	ScanTitle       DedupScanField = "title"
	ScanSourceNotes DedupScanField = "source_notes"
)

// ValidDedupScanFields is a slice of all valid scan fields for validation
var ValidDedupScanFields = []DedupScanField{
	ScanEvidence,
	ScanSummary,
	ScanTitle,
	ScanSourceNotes,
}

// IsValidDedupScanField checks if the given scan field is valid
func IsValidDedupScanField(field DedupScanField) bool {
	for _, validField := range ValidDedupScanFields {
		if validField == field {
			return true
		}
	}
	return false
}

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current window.
	Items []T `json:"items"`

	// Total is the total number of items matching the filters.
	Total int `json:"total"`

	// Limit is the maximum number of items requested.
	Limit int `json:"limit"`

	// Offset is the number of items skipped before this window.
	Offset int `json:"offset"`

	// HasMore indicates whether items exist beyond this window.
	HasMore bool `json:"hasMore"`
}

// ListOptions provides filtering and windowing options for insight listings.
type ListOptions struct {
	// Type filters by insight type. Empty string means no filter.
	Type types.InsightType

	// Status filters by insight status. Empty string means no filter.
	Status types.InsightStatus

	// Limit is the maximum number of items to return (default: 50, max: 200).
	Limit int

	// Offset is the number of items to skip (default: 0).
	Offset int
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 50 // Default limit
	}

	if o.Limit > 200 {
		o.Limit = 200 // Max limit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}
}

// TodoAggregate holds whole-vault todo counts used by the summary insight.
type TodoAggregate struct {
	// ActiveCount is the number of todo entities with status "active".
	ActiveCount int

	// CompletedCount is the number of todo entities with status "completed".
	CompletedCount int

	// NoteCount is the number of distinct notes containing at least one todo.
	NoteCount int
}
