// Package aggregate merges comments produced from multiple chunks of one
// file, resolves overlap ownership, deduplicates near-identical comments,
// and applies the configured comment mode.
package aggregate

import (
	"math"
	"strconv"
	"strings"

	"github.com/asmal95/luminary/internal/chunk"
	"github.com/asmal95/luminary/pkg/review"
)

// DefaultSimilarity is the token-overlap threshold above which two comments
// on the same line are considered duplicates.
const DefaultSimilarity = 0.8

// ChunkResult pairs one chunk with the comments parsed from its response.
// Results must be supplied in window order; ownership resolution depends on
// the ordinal chunk index.
type ChunkResult struct {
	Chunk    chunk.Chunk
	Comments []review.Comment
	Summary  string
}

// FileOutcome is the merged per-file output.
type FileOutcome struct {
	Comments []review.Comment
	Summary  string
	// Deduped counts comments dropped as duplicates or as non-owning
	// overlap echoes.
	Deduped int
}

// File merges chunk results for a single file. A comment anchored inside an
// overlap region seen by two chunks is attributed to the chunk whose window
// midpoint is closer to the comment's line (earlier chunk on ties), so each
// physical line contributes at most one owning chunk. Within the surviving
// set, comments sharing file, line, and line type collapse when their texts
// overlap at or above the similarity threshold; the first seen wins.
func File(results []ChunkResult, similarity float64) FileOutcome {
	if similarity <= 0 {
		similarity = DefaultSimilarity
	}

	windows := make([]chunk.Chunk, len(results))
	for i, r := range results {
		windows[i] = r.Chunk
	}

	out := FileOutcome{}
	var kept []review.Comment
	var summaries []string

	for i, r := range results {
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
		for _, c := range r.Comments {
			if own := owner(windows, c.LineNumber); !c.IsSummary && own != -1 && own != i {
				out.Deduped++
				continue
			}
			if dup := isDuplicate(kept, c, similarity); dup {
				out.Deduped++
				continue
			}
			kept = append(kept, c)
		}
	}

	out.Comments = kept
	out.Summary = joinSummaries(summaries)
	return out
}

// owner picks the chunk index that owns a line: among windows covering it,
// the one whose midpoint is numerically closest, earlier window on a tie.
// Lines covered by no window (summary coercions keep their source) belong to
// whichever chunk produced them, signalled by -1.
func owner(windows []chunk.Chunk, line int) int {
	best := -1
	bestDist := math.Inf(1)
	for i, w := range windows {
		if !w.Covers(line) {
			continue
		}
		d := math.Abs(w.Midpoint() - float64(line))
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

func isDuplicate(kept []review.Comment, c review.Comment, similarity float64) bool {
	for _, k := range kept {
		if k.FilePath != c.FilePath || k.LineNumber != c.LineNumber || k.LineType != c.LineType || k.IsSummary != c.IsSummary {
			continue
		}
		if tokenOverlap(k.Text, c.Text) >= similarity {
			return true
		}
	}
	return false
}

// tokenOverlap computes the Jaccard overlap of lowercased word tokens.
func tokenOverlap(a, b string) float64 {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?`\"'()[]{}")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func joinSummaries(summaries []string) string {
	switch len(summaries) {
	case 0:
		return ""
	case 1:
		return summaries[0]
	}
	var b strings.Builder
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Chunk ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" summary:\n")
		b.WriteString(s)
	}
	return b.String()
}

// Mode filters the merged output per the configured comment mode: "inline"
// keeps only line-anchored comments and drops the summary, "summary" keeps
// only the summary, "both" passes everything through.
func Mode(comments []review.Comment, summary, mode string) ([]review.Comment, string) {
	switch mode {
	case "inline":
		inline := make([]review.Comment, 0, len(comments))
		for _, c := range comments {
			if !c.IsSummary {
				inline = append(inline, c)
			}
		}
		return inline, ""
	case "summary":
		return nil, summary
	default:
		return comments, summary
	}
}
