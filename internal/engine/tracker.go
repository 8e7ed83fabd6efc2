package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// NoteReader serves note content by vault-relative path.
type NoteReader interface {
	Read(relPath string) ([]byte, error)
}

// DueNote is a note the tracker has selected for processing, with its
// content and the fingerprint of the bytes actually read.
type DueNote struct {
	Path        string
	Content     string
	Fingerprint string
	ModifiedAt  time.Time
}

// ProcessingStateTracker is the extraction cursor. It decides which notes
// are due (tracked on disk but never extracted, or changed since the last
// extraction) and records the content hash each extraction consumed. It is
// a pure cursor: it never touches entities.
type ProcessingStateTracker struct {
	store  storage.ProcessingStateStore
	reader NoteReader
}

// NewTracker creates a tracker over the processing-state store and a
// vault reader.
func NewTracker(store storage.ProcessingStateStore, reader NoteReader) *ProcessingStateTracker {
	return &ProcessingStateTracker{store: store, reader: reader}
}

// NotesDue returns up to limit due notes, most recently modified first.
// Content is read from the vault at pickup time and the fingerprint covers
// the bytes actually read, so the cursor always records what was extracted.
// Unreadable notes are logged and skipped; they stay due.
func (t *ProcessingStateTracker) NotesDue(ctx context.Context, limit int) ([]*DueNote, error) {
	states, err := t.store.ListNotesDue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due notes: %w", err)
	}

	due := make([]*DueNote, 0, len(states))
	for _, state := range states {
		content, err := t.reader.Read(state.Path)
		if err != nil {
			log.Printf("WARNING: tracker: cannot read %s: %v", state.Path, err)
			continue
		}
		due = append(due, &DueNote{
			Path:        state.Path,
			Content:     string(content),
			Fingerprint: Fingerprint(content),
			ModifiedAt:  state.LastModified,
		})
	}
	return due, nil
}

// CountDue returns the number of notes currently due, without reading any
// content.
func (t *ProcessingStateTracker) CountDue(ctx context.Context) (int, error) {
	return t.store.CountNotesDue(ctx)
}

// MarkProcessed advances the cursor for a note: the given content hash was
// extracted just now.
func (t *ProcessingStateTracker) MarkProcessed(ctx context.Context, notePath, contentHash string) error {
	state := &types.ProcessingState{
		NotePath:             notePath,
		ContentHash:          contentHash,
		LastEntityExtraction: time.Now().UTC(),
	}
	if err := t.store.UpsertProcessingState(ctx, state); err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", notePath, err)
	}
	return nil
}

// Fingerprint returns the lower-case hex SHA-256 of content. Identical
// content always yields identical fingerprints.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
