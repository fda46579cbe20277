// Package prompt builds the review and judgment prompts sent to the LLM.
// Templates use named placeholders ({context}, {comment}) so operators can
// supply their own wording via configuration.
package prompt

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asmal95/luminary/pkg/review"
)

const defaultReviewTemplate = `You are an experienced code reviewer. Review the following change and report concrete, actionable findings.

{context}

CRITICAL REQUIREMENTS:
1. Return ONLY valid JSON. No markdown code blocks, no explanations, no text outside JSON.
2. Use line numbers EXACTLY as shown in the code block above (format: "42: code here").
3. "line" field MUST be a number (integer), NEVER empty, NEVER null.

Required JSON format:
[
  {"file": "path/to/file", "line": 42, "message": "review comment", "suggestion": null}
]

If a summary is requested: {"comments": [...], "summary": "text"}
If no issues: []`

const defaultValidationTemplate = `You are judging whether a code review comment is worth posting.

Code context:
{code_context}

Comment to evaluate:
{comment}

Return this JSON structure (copy the format exactly):
{
    "valid": true,
    "reason": "brief explanation",
    "scores": {
        "relevance": 0.8,
        "usefulness": 0.9,
        "non_redundancy": 0.7
    }
}

Evaluation criteria:
- relevance: Does it relate to the code? (0.0-1.0)
- usefulness: Is it helpful? (0.0-1.0)
- non_redundancy: Does it add value? (0.0-1.0)`

// ReviewOptions adjusts the review prompt for one LLM call.
type ReviewOptions struct {
	CommentMode string
	Language    string

	// Content overrides the file's full content with a chunk window; empty
	// means review the whole file.
	Content string
	// LineOffset shifts displayed line numbers so chunked content keeps
	// absolute addressing: shown number = offset + local index.
	LineOffset int
}

// Builder formats prompts, using operator-supplied templates when present.
type Builder struct {
	reviewTemplate     string
	validationTemplate string
}

// NewBuilder creates a builder; empty templates select the defaults.
func NewBuilder(reviewTemplate, validationTemplate string) *Builder {
	if reviewTemplate == "" {
		reviewTemplate = defaultReviewTemplate
	}
	if validationTemplate == "" {
		validationTemplate = defaultValidationTemplate
	}
	return &Builder{reviewTemplate: reviewTemplate, validationTemplate: validationTemplate}
}

// Review builds the prompt for one review call.
func (b *Builder) Review(fc *review.FileChange, opts ReviewOptions) string {
	var parts []string
	parts = append(parts, "File: "+fc.Path)
	if fc.OldPath != "" && fc.OldPath != fc.Path {
		parts = append(parts, "Renamed from: "+fc.OldPath)
	}
	parts = append(parts, "Status: "+fc.Status)

	lang := opts.Language
	if lang == "" {
		lang = DetectLanguage(fc.Path)
	}
	if lang != "" {
		parts = append(parts, "Language: "+lang)
	}

	switch opts.CommentMode {
	case "inline":
		parts = append(parts, "Requested output: inline comments only (JSON array, no summary field).")
	case "summary":
		parts = append(parts, "Requested output: summary only (return empty comments array [] and include summary field).")
	default:
		parts = append(parts, "Requested output: inline comments (JSON array) and a summary (optional summary field in JSON).")
	}

	content := opts.Content
	if content == "" {
		content = fc.FullContent
	}
	if content != "" {
		parts = append(parts, "\n### Current Code (with line numbers):\n")
		parts = append(parts, "```")
		for i, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
			parts = append(parts, fmt.Sprintf("%d: %s", opts.LineOffset+i+1, line))
		}
		parts = append(parts, "```")
	}

	if len(fc.Hunks) > 0 {
		parts = append(parts, "\n### Changes:\n")
		for i, h := range fc.Hunks {
			parts = append(parts, fmt.Sprintf("\n--- Hunk %d (Lines %d-%d) ---", i+1, h.NewStart, h.NewEnd()))
			for _, dl := range h.Lines {
				marker := " "
				switch dl.Kind {
				case review.KindAdded:
					marker = "+"
				case review.KindRemoved:
					marker = "-"
				}
				parts = append(parts, marker+dl.Content)
			}
		}
	}

	return strings.ReplaceAll(b.reviewTemplate, "{context}", strings.Join(parts, "\n"))
}

// Validation builds the judgment prompt for one comment.
func (b *Builder) Validation(c review.Comment, fc *review.FileChange) string {
	parts := []string{"File: " + fc.Path}

	if snippet := Snippet(fc, c.LineNumber, 5); snippet != "" {
		parts = append(parts, fmt.Sprintf("\nRelevant code (around line %d):", c.LineNumber))
		parts = append(parts, "```", snippet, "```")
	}

	prompt := strings.ReplaceAll(b.validationTemplate, "{code_context}", strings.Join(parts, "\n"))
	return strings.ReplaceAll(prompt, "{comment}", c.Text)
}

// Snippet extracts the lines around a 1-based line number, the commented
// line marked with ">>>". Empty when content is missing or the line is out
// of range.
func Snippet(fc *review.FileChange, line, context int) string {
	if fc.FullContent == "" || line < 1 {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(fc.FullContent, "\n"), "\n")
	if line > len(lines) {
		return ""
	}

	start := line - 1 - context
	if start < 0 {
		start = 0
	}
	end := line + context
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		marker := "    "
		if i == line-1 {
			marker = ">>> "
		}
		fmt.Fprintf(&b, "%s%d: %s\n", marker, i+1, lines[i])
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var languageByExt = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".java":  "Java",
	".kt":    "Kotlin",
	".go":    "Go",
	".rs":    "Rust",
	".cs":    "C#",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++ Header",
	".php":   "PHP",
	".rb":    "Ruby",
	".swift": "Swift",
	".scala": "Scala",
	".sql":   "SQL",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".md":    "Markdown",
}

// DetectLanguage maps a file extension to a language name, empty when
// unknown.
func DetectLanguage(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}
