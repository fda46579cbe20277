// Package respparse extracts structured comment candidates from raw LLM
// output. The input is untrusted model text: fragments that cannot be
// understood are dropped and counted, never surfaced as errors.
package respparse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/asmal95/luminary/pkg/review"
)

// Result is the outcome of parsing one model response.
type Result struct {
	Comments []review.Comment
	Summary  string
	// Misses counts fragments that looked like comment candidates but could
	// not be recovered.
	Misses int
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\]|\\{.*?\"comments\".*?\\})")
	bareObject = regexp.MustCompile(`(?s)(\{[^{}]*"comments"[^{}]*\})`)

	emptyLineField       = regexp.MustCompile(`"line"\s*:\s*,`)
	emptySuggestionComma = regexp.MustCompile(`"suggestion"\s*:\s*,`)
	emptySuggestionBrace = regexp.MustCompile(`"suggestion"\s*:\s*\}`)
	emptySuggestionEOL   = regexp.MustCompile(`(?m)"suggestion"\s*:\s*$`)
	trailingComma        = regexp.MustCompile(`,(\s*[}\]])`)
	bareMessage          = regexp.MustCompile(`"message"\s*:\s*([^",\[\]{}()\n]+?)\s*([,}])`)

	lineRef     = regexp.MustCompile(`(?i)\blines?\s+#?(\d+)`)
	listItem    = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.*)$`)
	severityTag = regexp.MustCompile(`(?i)\[(error|warning|info)\]`)
	boldMarks   = regexp.MustCompile(`\*\*`)
)

// Parse recovers comments from a raw response for the given file. Two layouts
// are recognized: JSON (an array of comment objects, or an object with
// "comments" and optional "summary" fields, possibly inside a markdown fence)
// and freeform markdown with enumerated items referencing line numbers in
// prose. Line numbers that fall outside everything the file knows about are
// coerced to summary comments rather than discarded.
func Parse(raw string, fc *review.FileChange) Result {
	res := Result{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return res
	}

	if items, summary, ok := parseJSON(raw); ok {
		res.Summary = summary
		for _, item := range items {
			c, ok := commentFromItem(item, fc)
			if !ok {
				res.Misses++
				continue
			}
			res.Comments = append(res.Comments, c)
		}
		if res.Summary == "" {
			res.Summary = textSummary(raw)
		}
		return res
	}

	res.Comments, res.Misses = parseProse(raw, fc)
	res.Summary = textSummary(raw)

	// Nothing salvageable but the model did say something: keep the text as
	// a single summary-level note so review signal is not lost.
	if len(res.Comments) == 0 && res.Summary == "" {
		res.Misses++
		res.Comments = append(res.Comments, review.Comment{
			FilePath:  fc.Path,
			Severity:  review.SeverityInfo,
			Text:      raw,
			IsSummary: true,
		})
	}
	return res
}

// parseJSON extracts and decodes the JSON layout, repairing the malformations
// models commonly emit before giving up.
func parseJSON(raw string) (items []map[string]any, summary string, ok bool) {
	candidate := raw
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}
	candidate = repairJSON(candidate)

	var decoded any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		m := bareObject.FindStringSubmatch(candidate)
		if m == nil {
			return nil, "", false
		}
		if err := json.Unmarshal([]byte(repairJSON(m[1])), &decoded); err != nil {
			return nil, "", false
		}
	}

	switch v := decoded.(type) {
	case []any:
		return toItems(v), "", true
	case map[string]any:
		if s, _ := v["summary"].(string); s != "" {
			summary = s
		}
		arr, _ := v["comments"].([]any)
		return toItems(arr), summary, true
	default:
		return nil, "", false
	}
}

func toItems(arr []any) []map[string]any {
	items := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			items = append(items, m)
		} else {
			items = append(items, nil) // counted as a miss downstream
		}
	}
	return items
}

func repairJSON(s string) string {
	s = emptyLineField.ReplaceAllString(s, `"line": null,`)
	s = emptySuggestionComma.ReplaceAllString(s, `"suggestion": null,`)
	s = emptySuggestionBrace.ReplaceAllString(s, `"suggestion": null}`)
	s = emptySuggestionEOL.ReplaceAllString(s, `"suggestion": null`)
	s = bareMessage.ReplaceAllString(s, `"message": "$1"$2`)
	s = trailingComma.ReplaceAllString(s, "$1")
	return s
}

func commentFromItem(item map[string]any, fc *review.FileChange) (review.Comment, bool) {
	if item == nil {
		return review.Comment{}, false
	}

	line, ok := lineNumber(item["line"])
	if !ok {
		return review.Comment{}, false
	}

	msg, _ := item["message"].(string)
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return review.Comment{}, false
	}

	sev := review.InferSeverity(msg)
	if s, _ := item["severity"].(string); s != "" {
		switch review.Severity(strings.ToLower(s)) {
		case review.SeverityInfo, review.SeverityWarning, review.SeverityError:
			sev = review.Severity(strings.ToLower(s))
		}
	}

	c := review.Comment{
		FilePath:   fc.Path,
		LineNumber: line,
		Severity:   sev,
		Text:       msg,
	}
	if sug, _ := item["suggestion"].(string); strings.TrimSpace(sug) != "" {
		c.Suggestion = sug
	}
	anchor(&c, fc)
	return c, true
}

func lineNumber(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n >= 1 && n == float64(int(n)) {
			return int(n), true
		}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err == nil && i >= 1 {
			return i, true
		}
	}
	return 0, false
}

// parseProse handles the freeform markdown layout: enumerated items whose
// text references a line number.
func parseProse(raw string, fc *review.FileChange) ([]review.Comment, int) {
	var comments []review.Comment
	misses := 0

	for _, line := range strings.Split(raw, "\n") {
		m := listItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(boldMarks.ReplaceAllString(m[1], ""))
		ref := lineRef.FindStringSubmatch(text)
		if ref == nil {
			misses++
			continue
		}
		n, err := strconv.Atoi(ref[1])
		if err != nil || n < 1 {
			misses++
			continue
		}

		sev := review.InferSeverity(text)
		if tag := severityTag.FindStringSubmatch(text); tag != nil {
			sev = review.Severity(strings.ToLower(tag[1]))
			text = strings.TrimSpace(severityTag.ReplaceAllString(text, ""))
		}

		c := review.Comment{
			FilePath:   fc.Path,
			LineNumber: n,
			Severity:   sev,
			Text:       text,
		}
		anchor(&c, fc)
		comments = append(comments, c)
	}
	return comments, misses
}

// anchor resolves the comment's line type through the file's line index, or
// demotes it to a summary note when the line is unknown to the file.
func anchor(c *review.Comment, fc *review.FileChange) {
	if !fc.Resolvable(c.LineNumber) {
		c.IsSummary = true
		c.LineNumber = 0
		return
	}
	c.LineType = fc.ClassifyLine(c.LineNumber)
}

// textSummary pulls a "Summary:" section out of non-JSON response text.
func textSummary(raw string) string {
	var out []string
	started := false
	for _, line := range strings.Split(raw, "\n") {
		if !started {
			if strings.Contains(line, "**Summary:**") || strings.HasPrefix(strings.TrimSpace(line), "Summary:") {
				started = true
				line = strings.ReplaceAll(line, "**Summary:**", "")
				line = strings.Replace(line, "Summary:", "", 1)
				if s := strings.TrimSpace(line); s != "" {
					out = append(out, s)
				}
			}
			continue
		}
		s := strings.TrimSpace(line)
		if s == "" {
			break
		}
		out = append(out, s)
	}
	return strings.Join(out, "\n")
}
