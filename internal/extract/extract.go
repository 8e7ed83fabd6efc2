// Package extract turns raw note content into structured entities. It ships
// LLM-backed extractors for Ollama, OpenAI and Anthropic with strict
// JSON-only prompts and a tolerant response parser, plus a heuristic
// extractor that parses the markdown directly and needs no model at all.
package extract

import (
	"context"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// Extractor produces entities from a single note's content.
type Extractor interface {
	Extract(ctx context.Context, notePath string, content string) ([]*types.Entity, error)
	Model() string
}

// Completer is the interface for LLM text completion. All extraction
// prompts use single-string completion style (not chat).
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
