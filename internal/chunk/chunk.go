// Package chunk splits oversized file content into overlapping line windows
// sized to fit an LLM context, without losing line-number addressability.
package chunk

import (
	"fmt"
	"strings"

	"github.com/asmal95/luminary/pkg/review"
)

// Chunk is a contiguous slice of a file's post-change content. StartLine and
// EndLine are inclusive, in new-file numbering. Index is the window ordinal,
// which the aggregator's overlap-ownership rule depends on.
type Chunk struct {
	Index     int
	StartLine int
	EndLine   int
	Content   string
	File      *review.FileChange
}

// Midpoint returns the window's center line, used to attribute comments that
// land inside an overlap region shared by two chunks.
func (c Chunk) Midpoint() float64 {
	return float64(c.StartLine+c.EndLine) / 2
}

// Covers reports whether the window contains the given new-file line.
func (c Chunk) Covers(line int) bool {
	return line >= c.StartLine && line <= c.EndLine
}

// Split cuts a file's full content into deterministic windows: window i
// starts at line i*(maxLines-overlap)+1 and spans maxLines lines, clipped at
// the file end. Consecutive windows share exactly overlap lines, every line
// in [1, total] is covered, and the last window always ends at the last line.
// Content shorter than maxLines yields a single full-file chunk.
func Split(fc *review.FileChange, maxLines, overlap int) ([]Chunk, error) {
	if maxLines <= 0 {
		return nil, fmt.Errorf("chunk max lines must be positive, got %d", maxLines)
	}
	if overlap < 0 || overlap >= maxLines {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, maxLines)
	}

	lines := strings.Split(fc.FullContent, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(fc.FullContent, "\n") {
		lines = lines[:len(lines)-1]
	}
	total := len(lines)

	if total <= maxLines {
		return []Chunk{{
			Index:     0,
			StartLine: 1,
			EndLine:   total,
			Content:   strings.Join(lines, "\n"),
			File:      fc,
		}}, nil
	}

	stride := maxLines - overlap
	chunks := make([]Chunk, 0, total/stride+1)
	for i := 0; ; i++ {
		start := i*stride + 1
		if start > total {
			break
		}
		end := start + maxLines - 1
		if end > total {
			end = total
		}
		chunks = append(chunks, Chunk{
			Index:     i,
			StartLine: start,
			EndLine:   end,
			Content:   strings.Join(lines[start-1:end], "\n"),
			File:      fc,
		})
		if end == total {
			break
		}
	}
	return chunks, nil
}
