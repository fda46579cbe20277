package respparse

import (
	"strings"
	"testing"

	"github.com/asmal95/luminary/pkg/review"
)

// parseTarget has resolvable lines 1-5 (hunk adds 3-4, context 1-2 and 5).
func parseTarget() *review.FileChange {
	return &review.FileChange{
		Path: "main.go",
		Hunks: []*review.Hunk{{
			OldStart: 1, OldCount: 3, NewStart: 1, NewCount: 5,
			Lines: []review.DiffLine{
				{Kind: review.KindContext, OldLine: 1, NewLine: 1},
				{Kind: review.KindContext, OldLine: 2, NewLine: 2},
				{Kind: review.KindAdded, NewLine: 3},
				{Kind: review.KindAdded, NewLine: 4},
				{Kind: review.KindContext, OldLine: 3, NewLine: 5},
			},
		}},
	}
}

func TestParseJSONArray(t *testing.T) {
	raw := `[
		{"line": 3, "message": "Possible bug: nil map write", "suggestion": "m := make(map[string]int)"},
		{"line": 5, "message": "Consider a clearer name"}
	]`
	res := Parse(raw, parseTarget())
	if res.Misses != 0 {
		t.Errorf("Expected no misses, got %d", res.Misses)
	}
	if len(res.Comments) != 2 {
		t.Fatalf("Expected 2 comments, got %d", len(res.Comments))
	}
	first := res.Comments[0]
	if first.LineNumber != 3 || first.LineType != review.LineNew {
		t.Errorf("Unexpected anchor: %+v", first)
	}
	if first.Severity != review.SeverityError {
		t.Errorf("Expected inferred error severity, got %q", first.Severity)
	}
	if first.Suggestion != "m := make(map[string]int)" {
		t.Errorf("Unexpected suggestion: %q", first.Suggestion)
	}
	second := res.Comments[1]
	if second.LineNumber != 5 || second.LineType != review.LineUnchanged {
		t.Errorf("Unexpected anchor: %+v", second)
	}
	if second.Severity != review.SeverityInfo {
		t.Errorf("Expected info severity, got %q", second.Severity)
	}
}

func TestParseJSONObjectWithSummary(t *testing.T) {
	raw := `{"comments": [{"line": "4", "message": "warning: unchecked error", "severity": "warning"}], "summary": "Small change, one concern."}`
	res := Parse(raw, parseTarget())
	if res.Summary != "Small change, one concern." {
		t.Errorf("Unexpected summary: %q", res.Summary)
	}
	if len(res.Comments) != 1 {
		t.Fatalf("Expected 1 comment, got %d", len(res.Comments))
	}
	c := res.Comments[0]
	if c.LineNumber != 4 {
		t.Errorf("Expected string line coerced to 4, got %d", c.LineNumber)
	}
	if c.Severity != review.SeverityWarning {
		t.Errorf("Expected explicit severity honored, got %q", c.Severity)
	}
}

func TestParseFencedJSON(t *testing.T) {
	raw := "Here is my review:\n```json\n[{\"line\": 3, \"message\": \"Shadowed variable\"}]\n```\nHope that helps."
	res := Parse(raw, parseTarget())
	if len(res.Comments) != 1 || res.Comments[0].Text != "Shadowed variable" {
		t.Fatalf("Expected fenced JSON to be extracted, got %+v", res.Comments)
	}
}

func TestParseRepairedJSON(t *testing.T) {
	tt := []struct {
		name string
		raw  string
	}{
		{"trailing comma", `[{"line": 3, "message": "Trailing comma case",}]`},
		{"empty suggestion before brace", `[{"line": 3, "message": "Empty suggestion", "suggestion": }]`},
		{"unquoted message", `[{"line": 3, "message": no error handling here, "suggestion": null}]`},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			res := Parse(tc.raw, parseTarget())
			if len(res.Comments) != 1 {
				t.Fatalf("Expected repair to recover 1 comment, got %d (misses=%d)", len(res.Comments), res.Misses)
			}
			if res.Comments[0].LineNumber != 3 {
				t.Errorf("Unexpected line: %d", res.Comments[0].LineNumber)
			}
		})
	}
}

func TestParseMissesCounted(t *testing.T) {
	raw := `[
		{"line": 3, "message": "Fine"},
		{"line": null, "message": "No line"},
		{"line": 4, "message": ""},
		"not an object"
	]`
	res := Parse(raw, parseTarget())
	if len(res.Comments) != 1 {
		t.Errorf("Expected 1 comment, got %d", len(res.Comments))
	}
	if res.Misses != 3 {
		t.Errorf("Expected 3 misses, got %d", res.Misses)
	}
}

func TestParseOutOfRangeLineBecomesSummary(t *testing.T) {
	raw := `[{"line": 999, "message": "General structure note"}]`
	res := Parse(raw, parseTarget())
	if len(res.Comments) != 1 {
		t.Fatalf("Expected 1 comment, got %d", len(res.Comments))
	}
	c := res.Comments[0]
	if !c.IsSummary || c.LineNumber != 0 {
		t.Errorf("Expected out-of-range line demoted to summary, got %+v", c)
	}
	if res.Misses != 0 {
		t.Errorf("Expected no misses, got %d", res.Misses)
	}
}

func TestParseProse(t *testing.T) {
	raw := strings.Join([]string{
		"Review findings:",
		"- **Line 3**: [warning] Unvalidated input",
		"- Line 5: naming could be clearer",
		"- This item mentions no location",
		"",
		"**Summary:** Mostly fine.",
	}, "\n")
	res := Parse(raw, parseTarget())
	if len(res.Comments) != 2 {
		t.Fatalf("Expected 2 comments, got %d", len(res.Comments))
	}
	if res.Misses != 1 {
		t.Errorf("Expected 1 miss for the item without a line, got %d", res.Misses)
	}
	first := res.Comments[0]
	if first.LineNumber != 3 || first.Severity != review.SeverityWarning {
		t.Errorf("Unexpected first comment: %+v", first)
	}
	if strings.Contains(first.Text, "[warning]") {
		t.Errorf("Expected severity tag stripped, got %q", first.Text)
	}
	if res.Summary != "Mostly fine." {
		t.Errorf("Unexpected summary: %q", res.Summary)
	}
}

func TestParseUnusableTextBecomesSummaryNote(t *testing.T) {
	raw := "The code looks reasonable overall but I could not assess the tests."
	res := Parse(raw, parseTarget())
	if len(res.Comments) != 1 {
		t.Fatalf("Expected fallback summary note, got %d comments", len(res.Comments))
	}
	c := res.Comments[0]
	if !c.IsSummary || c.Text != raw {
		t.Errorf("Unexpected fallback comment: %+v", c)
	}
	if res.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", res.Misses)
	}
}

func TestParseEmpty(t *testing.T) {
	res := Parse("   \n ", parseTarget())
	if len(res.Comments) != 0 || res.Misses != 0 || res.Summary != "" {
		t.Errorf("Expected empty result, got %+v", res)
	}
}
