package review

import (
	"fmt"
	"strings"
)

// Severity is the weight of a review comment.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Comment is a candidate review note recovered from model output. When
// IsSummary is true the comment is file-level and LineNumber is meaningless;
// otherwise LineNumber must be resolvable through the owning FileChange.
type Comment struct {
	FilePath   string
	LineNumber int
	LineType   LineType
	Severity   Severity
	Text       string
	Suggestion string
	IsSummary  bool
}

// InferSeverity derives a severity from comment wording. The model is not
// asked for an explicit severity field, so keyword matching is the contract.
func InferSeverity(text string) Severity {
	lower := strings.ToLower(text)
	for _, kw := range []string{"error", "critical", "bug"} {
		if strings.Contains(lower, kw) {
			return SeverityError
		}
	}
	for _, kw := range []string{"warning", "potential"} {
		if strings.Contains(lower, kw) {
			return SeverityWarning
		}
	}
	return SeverityInfo
}

// Markdown renders the comment body for posting.
func (c Comment) Markdown() string {
	var b strings.Builder
	if c.Severity != SeverityInfo {
		fmt.Fprintf(&b, "**[%s]** ", strings.ToUpper(string(c.Severity)))
	}
	b.WriteString(c.Text)
	if c.Suggestion != "" {
		fmt.Fprintf(&b, "\n\n```suggestion\n%s\n```", c.Suggestion)
	}
	if !c.IsSummary && c.LineNumber > 0 {
		fmt.Fprintf(&b, "\n\n**Location:** Line %d", c.LineNumber)
	}
	return b.String()
}
