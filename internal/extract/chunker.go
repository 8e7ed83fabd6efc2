package extract

import (
	"strings"
	"unicode"
)

// chunker splits long note content into LLM-processable pieces. Splitting is
// sentence-aware so entities are not cut mid-thought, and consecutive chunks
// overlap to preserve context across the boundary.
type chunker struct {
	maxTokens int // maximum chunk size in estimated tokens
	overlap   int // overlap between consecutive chunks in estimated tokens
}

// defaultChunker fits comfortably inside every supported model's context
// window once the prompt scaffolding is added.
var defaultChunker = chunker{maxTokens: 3000, overlap: 200}

// split breaks content into overlapping chunks. Content that fits in a
// single chunk is returned as-is.
func (c chunker) split(content string) []string {
	if len(strings.TrimSpace(content)) == 0 {
		return nil
	}
	if estimateTokens(content) <= c.maxTokens {
		return []string{content}
	}

	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0
	var previous []string // sentences carried into the next chunk's overlap

	for _, sentence := range sentences {
		sentenceTokens := estimateTokens(sentence)

		if currentTokens+sentenceTokens > c.maxTokens && currentTokens > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0

			// Rewind as many trailing sentences as fit in the overlap.
			overlapTokens := 0
			start := len(previous)
			for i := len(previous) - 1; i >= 0; i-- {
				tokens := estimateTokens(previous[i])
				if overlapTokens+tokens > c.overlap {
					break
				}
				overlapTokens += tokens
				start = i
			}
			for i := start; i < len(previous); i++ {
				current.WriteString(previous[i])
				currentTokens += estimateTokens(previous[i])
			}
			previous = previous[start:]
		}

		current.WriteString(sentence)
		currentTokens += sentenceTokens
		previous = append(previous, sentence)
		if len(previous) > 50 {
			previous = previous[len(previous)-50:]
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return dedupeChunks(chunks)
}

// estimateTokens approximates token count at 4 characters per token, a
// reasonable fit for English text with GPT-style tokenizers.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// splitSentences splits text on sentence terminators, keeping the
// terminator and trailing space with the sentence.
func splitSentences(text string) []string {
	if len(text) == 0 {
		return nil
	}

	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			sentences = append(sentences, current.String())
		}
		current.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		if r == '\n' {
			// Markdown lines are natural boundaries too.
			flush()
			continue
		}
		if i+1 >= len(runes) {
			flush()
			continue
		}
		if unicode.IsSpace(runes[i+1]) {
			current.WriteRune(runes[i+1])
			i++
			// Only break when the next rune looks like a sentence start,
			// which keeps abbreviations like "v1.2 beta" together.
			if i+1 >= len(runes) || unicode.IsUpper(runes[i+1]) || unicode.IsDigit(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}

// dedupeChunks drops duplicate chunks while preserving order. Heavy overlap
// on short repetitive notes can produce identical chunks.
func dedupeChunks(chunks []string) []string {
	if len(chunks) < 2 {
		return chunks
	}
	seen := make(map[string]bool, len(chunks))
	result := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if !seen[chunk] {
			seen[chunk] = true
			result = append(result, chunk)
		}
	}
	return result
}
