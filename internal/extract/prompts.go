package extract

import "fmt"

// entityExtractionPrompt generates a strict JSON-only prompt for entity
// extraction. LLMs reliably drift into markdown fences and commentary, so
// the prompt repeats the output contract several times.
func entityExtractionPrompt(notePath, content string) string {
	return fmt.Sprintf(`TASK: Extract entities from a markdown note.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks. NO ARRAY - MUST BE OBJECT.

ENTITY TYPES (ONLY these 8):
- todo: Action item or task (from checkboxes or imperative lines)
- person: Named individual human
- project: Named initiative, product, or work stream
- concept: Idea, topic, or theme the note is about
- date: Date or deadline mentioned in the text
- mention: @-style reference to a person or thing
- tag: #-style tag
- link: Wikilink or URL target referenced by the note

REQUIRED JSON STRUCTURE:
Your response MUST start with { and end with }
Your response MUST have an "entities" key with an array value
Each entity MUST have: value, type
Each entity MAY have: context, status, line

Example structure (EXACT FORMAT REQUIRED):
{
  "entities": [
    {"value":"Review budget proposal","type":"todo","context":"- [ ] Review budget proposal","status":"active","line":12},
    {"value":"Alice","type":"person","context":"met with Alice about Q3","line":4}
  ]
}

VALIDATION (STRICT):
1. Start with { - End with }
2. "entities" key must be present
3. "entities" value must be an array [...]
4. Types EXACTLY: todo|person|project|concept|date|mention|tag|link
5. "status" only for todo entities: active or completed
6. "line" is the 1-based source line, 0 if unknown
7. No null values
8. No trailing commas
9. Valid JSON syntax

NOTE PATH: %s

NOTE CONTENT:
%s

RESPOND WITH ONLY THIS JSON STRUCTURE (nothing else):
{"entities":[{"value":"X","type":"todo","context":"...","status":"active","line":1}]}`, notePath, content)
}
