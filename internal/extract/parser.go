package extract

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// entityResponse is a single entity as reported by the LLM.
type entityResponse struct {
	Value   string `json:"value"`
	Type    string `json:"type"`
	Context string `json:"context,omitempty"`
	Status  string `json:"status,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// entityExtractionResponse is the complete entity extraction response.
type entityExtractionResponse struct {
	Entities []entityResponse `json:"entities"`
}

// extractJSON extracts the first valid JSON object from a string that may
// contain extra text. This handles cases where LLMs add explanations
// before/after the JSON despite instructions.
func extractJSON(text string) string {
	// Remove common markdown code block markers
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no JSON found, return as-is and let the parser fail
	}

	// Find the matching closing brace, skipping braces inside strings.
	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // no complete JSON found, return as-is
}

// parseEntityResponse parses entity extraction JSON and filters out invalid
// entries. Unknown entity types, invalid statuses and empty values are
// skipped rather than failing the entire batch. Only returns an error if
// the JSON itself is malformed.
func parseEntityResponse(jsonStr string, notePath string) ([]*types.Entity, error) {
	cleanJSON := extractJSON(jsonStr)

	var response entityExtractionResponse
	if err := json.Unmarshal([]byte(cleanJSON), &response); err != nil {
		return nil, fmt.Errorf("failed to parse entity JSON: %w", err)
	}

	var entities []*types.Entity
	for _, raw := range response.Entities {
		value := strings.TrimSpace(raw.Value)
		if value == "" {
			log.Printf("extract: skipping entity with empty value in %s", notePath)
			continue
		}
		entityType := types.EntityType(strings.ToLower(strings.TrimSpace(raw.Type)))
		if !types.IsValidEntityType(entityType) {
			log.Printf("extract: skipping entity %q with unknown type %q", value, raw.Type)
			continue
		}

		status := types.EntityActive
		if raw.Status != "" {
			status = types.EntityStatus(strings.ToLower(strings.TrimSpace(raw.Status)))
			if status != types.EntityActive && status != types.EntityCompleted {
				log.Printf("extract: skipping entity %q with invalid status %q", value, raw.Status)
				continue
			}
		}

		line := raw.Line
		if line < 0 {
			line = 0
		}

		entities = append(entities, &types.Entity{
			NotePath:    notePath,
			EntityType:  entityType,
			EntityValue: value,
			Context:     strings.TrimSpace(raw.Context),
			Status:      status,
			LineNumber:  line,
		})
	}
	return entities, nil
}
