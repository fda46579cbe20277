// Package review holds the domain model for a code review run: parsed file
// changes, candidate comments, and the position structure used to anchor
// comments to diff lines.
package review

// LineType classifies a line's provenance relative to the diff.
type LineType string

const (
	LineNew       LineType = "new"
	LineOld       LineType = "old"
	LineUnchanged LineType = "unchanged"
)

// LineKind is the marker class of a single diff line.
type LineKind int

const (
	KindContext LineKind = iota
	KindAdded
	KindRemoved
)

// DiffLine is one line inside a hunk. OldLine and NewLine are 1-based; a zero
// value means the line has no number on that side (added lines have no old
// number, removed lines no new number). At least one side is always set.
type DiffLine struct {
	Kind    LineKind
	Content string
	OldLine int
	NewLine int
}

// Hunk is one contiguous diff region with the ranges declared by its
// `@@ -old_start,old_count +new_start,new_count @@` header.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []DiffLine
}

// NewEnd returns the last new-side line number covered by the hunk.
func (h *Hunk) NewEnd() int {
	if h.NewCount == 0 {
		return h.NewStart
	}
	return h.NewStart + h.NewCount - 1
}

// FileChange is the immutable change set for one file. It is constructed once
// per file per run, from parsed diff text and (optionally) the post-change
// file content, and never mutated afterwards.
type FileChange struct {
	Path     string
	OldPath  string // set only for renames
	Status   string // modified, added, deleted, renamed
	Hunks    []*Hunk
	IsBinary bool

	// FullContent is the post-change file content. Empty means not fetched;
	// chunking and snippet extraction are disabled without it.
	FullContent string
}

// ClassifyLine reports the provenance of a line number: new if some hunk
// added it, old if some hunk removed it, unchanged otherwise (context lines
// and lines inside FullContent untouched by any hunk).
func (fc *FileChange) ClassifyLine(line int) LineType {
	for _, h := range fc.Hunks {
		for _, dl := range h.Lines {
			if dl.Kind == KindAdded && dl.NewLine == line {
				return LineNew
			}
		}
	}
	for _, h := range fc.Hunks {
		for _, dl := range h.Lines {
			if dl.Kind == KindRemoved && dl.OldLine == line {
				return LineOld
			}
		}
	}
	return LineUnchanged
}

// Resolvable reports whether a line number can anchor an inline comment:
// it must appear in some hunk, or fall within the bounds of FullContent.
func (fc *FileChange) Resolvable(line int) bool {
	if line < 1 {
		return false
	}
	for _, h := range fc.Hunks {
		for _, dl := range h.Lines {
			if dl.NewLine == line || dl.OldLine == line {
				return true
			}
		}
	}
	if n := fc.LineCount(); n > 0 && line <= n {
		return true
	}
	return false
}

// LineCount returns the number of lines in FullContent, or 0 when content
// was not fetched.
func (fc *FileChange) LineCount() int {
	if fc.FullContent == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(fc.FullContent); i++ {
		if fc.FullContent[i] == '\n' {
			n++
		}
	}
	if fc.FullContent[len(fc.FullContent)-1] == '\n' {
		n--
	}
	return n
}

// TotalLinesChanged sums both sides of every hunk, matching the cost model
// used by the MR-level line limit.
func (fc *FileChange) TotalLinesChanged() int {
	total := 0
	for _, h := range fc.Hunks {
		total += h.OldCount + h.NewCount
	}
	return total
}
