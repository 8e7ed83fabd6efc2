package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// wikilinkRe matches [[Target]] and [[Target|Alias]] style links.
var wikilinkRe = regexp.MustCompile(`\[\[([^\[\]|]+?)(?:\|([^\[\]]+?))?\]\]`)

// inlineTagRe matches #tag tokens at a word boundary. Tags must start with
// a letter so markdown headings (# Title) don't register.
var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// mentionRe matches @name tokens at a word boundary.
var mentionRe = regexp.MustCompile(`(?:^|\s)@([A-Za-z][A-Za-z0-9._-]*[A-Za-z0-9])`)

// contextMaxRunes caps the stored context snippet per entity.
const contextMaxRunes = 200

// HeuristicExtractor parses note markdown directly instead of asking a
// model. Checkbox task items become todo entities, #tags become tags,
// @names become mentions, wikilinks and inline links become links, and
// H1/H2 headings become concepts. It is the extractor of last resort when
// no LLM is configured, and the deterministic one tests lean on.
type HeuristicExtractor struct {
	md goldmark.Markdown
}

// NewHeuristicExtractor creates a heuristic extractor with task-list
// parsing enabled.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{
		md: goldmark.New(goldmark.WithExtensions(extension.TaskList, extension.Linkify)),
	}
}

// Extract parses the markdown and returns the entities found in it.
func (h *HeuristicExtractor) Extract(ctx context.Context, notePath string, content string) ([]*types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fmTags, body, bodyStartLine := splitFrontmatter(content)

	var entities []*types.Entity
	seen := make(map[string]bool)
	add := func(entityType types.EntityType, value, snippet string, status types.EntityStatus, line int) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		// Tags, mentions and links repeat freely in a note; keep the first
		// occurrence only. Todos and concepts stay distinct per line.
		switch entityType {
		case types.EntityTag, types.EntityMention, types.EntityLink:
			key := string(entityType) + "\x00" + strings.ToLower(value)
			if seen[key] {
				return
			}
			seen[key] = true
		}
		entities = append(entities, &types.Entity{
			NotePath:    notePath,
			EntityType:  entityType,
			EntityValue: value,
			Context:     truncateRunes(strings.TrimSpace(snippet), contextMaxRunes),
			Status:      status,
			LineNumber:  line,
		})
	}

	for _, tag := range fmTags {
		add(types.EntityTag, strings.ToLower(tag), "frontmatter", types.EntityActive, 0)
	}

	source := []byte(body)
	lines := strings.Split(body, "\n")
	lineStarts := lineOffsets(source)
	lineOf := func(offset int) int {
		idx := sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] > offset })
		return bodyStartLine + idx
	}
	lineText := func(line int) string {
		idx := line - bodyStartLine - 1
		if idx < 0 || idx >= len(lines) {
			return ""
		}
		return lines[idx]
	}

	doc := h.md.Parser().Parse(text.NewReader(source))
	walkErr := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level > 2 || node.Lines().Len() == 0 {
				return ast.WalkContinue, nil
			}
			line := lineOf(node.Lines().At(0).Start)
			add(types.EntityConcept, string(node.Text(source)), lineText(line), types.EntityActive, line)

		case *east.TaskCheckBox:
			block := blockAncestor(node)
			if block == nil || block.Lines().Len() == 0 {
				return ast.WalkContinue, nil
			}
			status := types.EntityActive
			if node.IsChecked {
				status = types.EntityCompleted
			}
			line := lineOf(block.Lines().At(0).Start)
			add(types.EntityTodo, string(block.Text(source)), lineText(line), status, line)

		case *ast.Link:
			line := 0
			if block := blockAncestor(node); block != nil && block.Lines().Len() > 0 {
				line = lineOf(block.Lines().At(0).Start)
			}
			add(types.EntityLink, string(node.Destination), lineText(line), types.EntityActive, line)

		case *ast.AutoLink:
			line := 0
			if block := blockAncestor(node); block != nil && block.Lines().Len() > 0 {
				line = lineOf(block.Lines().At(0).Start)
			}
			add(types.EntityLink, string(node.URL(source)), lineText(line), types.EntityActive, line)
		}
		return ast.WalkContinue, nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("markdown walk failed for %s: %w", notePath, walkErr)
	}

	// Inline tokens goldmark has no node for: #tags, @mentions, wikilinks.
	// Fenced code blocks are skipped so shell comments don't become tags.
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		lineNo := bodyStartLine + i + 1
		for _, m := range inlineTagRe.FindAllStringSubmatch(line, -1) {
			add(types.EntityTag, strings.ToLower(m[1]), line, types.EntityActive, lineNo)
		}
		for _, m := range mentionRe.FindAllStringSubmatch(line, -1) {
			add(types.EntityMention, m[1], line, types.EntityActive, lineNo)
		}
		for _, m := range wikilinkRe.FindAllStringSubmatch(line, -1) {
			add(types.EntityLink, m[1], line, types.EntityActive, lineNo)
		}
	}

	return entities, nil
}

// Model identifies the heuristic extractor in run records and status output.
func (h *HeuristicExtractor) Model() string {
	return "heuristic"
}

// Compile-time assertion.
var _ Extractor = (*HeuristicExtractor)(nil)

// noteFrontmatter is the subset of YAML frontmatter the extractor reads.
type noteFrontmatter struct {
	Tags []string `yaml:"tags"`
}

// splitFrontmatter separates a leading --- delimited YAML block from the
// note body. It returns the frontmatter tags, the body and the number of
// lines the frontmatter occupied (so body line numbers can be mapped back
// to the full file). Malformed frontmatter is treated as body content.
func splitFrontmatter(content string) (tags []string, body string, bodyStartLine int) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return nil, content, 0
	}
	rest := strings.TrimPrefix(content, "---")
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n---")
	if end == -1 {
		return nil, content, 0
	}
	block := rest[:end]
	after := rest[end+len("\n---"):]
	after = strings.TrimPrefix(after, "\r")
	after = strings.TrimPrefix(after, "\n")

	var fm noteFrontmatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		// Some vaults use comma-separated tag strings; fall back to a
		// generic map before giving up.
		var loose map[string]interface{}
		if yaml.Unmarshal([]byte(block), &loose) != nil {
			return nil, content, 0
		}
		fm.Tags = looseTags(loose["tags"])
	}

	// opening ---, block lines, closing ---
	blockLines := strings.Count(block, "\n") + 1
	return fm.Tags, after, blockLines + 2
}

// looseTags coerces a frontmatter tags value of unknown shape into strings.
func looseTags(v interface{}) []string {
	switch value := v.(type) {
	case []interface{}:
		var tags []string
		for _, item := range value {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
		return tags
	case string:
		var tags []string
		for _, part := range strings.Split(value, ",") {
			if s := strings.TrimSpace(part); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}

// blockAncestor climbs from an inline node to the nearest block with
// source line information.
func blockAncestor(n ast.Node) ast.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock && p.Lines().Len() > 0 {
			return p
		}
	}
	return nil
}

// lineOffsets returns the byte offset of each line start.
func lineOffsets(source []byte) []int {
	offsets := []int{0}
	for i, b := range source {
		if b == '\n' && i+1 < len(source) {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// truncateRunes shortens s to at most max runes.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
