package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// LLMExtractor runs entity extraction through an LLM completion client.
// It owns prompt construction, chunking of oversized notes and response
// parsing; transport concerns (timeouts, circuit breaking) live in the
// Completer implementations.
type LLMExtractor struct {
	completer Completer
	chunker   chunker
}

// NewLLMExtractor wraps a completion client in the extraction flow.
func NewLLMExtractor(completer Completer) *LLMExtractor {
	return &LLMExtractor{
		completer: completer,
		chunker:   defaultChunker,
	}
}

// Extract prompts the model with the note content and parses the JSON
// response into entities stamped with the note path. Notes too large for a
// single completion are split into overlapping chunks and the per-chunk
// results merged, deduplicating entities the overlap reported twice.
func (e *LLMExtractor) Extract(ctx context.Context, notePath string, content string) ([]*types.Entity, error) {
	chunks := e.chunker.split(content)
	if len(chunks) == 0 {
		return nil, nil
	}

	var entities []*types.Entity
	seen := make(map[string]bool)

	for _, chunk := range chunks {
		prompt := entityExtractionPrompt(notePath, chunk)

		response, err := e.completer.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("entity extraction failed for %s: %w", notePath, err)
		}

		parsed, err := parseEntityResponse(response, notePath)
		if err != nil {
			return nil, fmt.Errorf("entity extraction failed for %s: %w", notePath, err)
		}
		for _, entity := range parsed {
			key := string(entity.EntityType) + "\x00" + strings.ToLower(entity.EntityValue)
			if seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

// Model returns the underlying completion model name.
func (e *LLMExtractor) Model() string {
	return e.completer.Model()
}

// Compile-time assertion.
var _ Extractor = (*LLMExtractor)(nil)
