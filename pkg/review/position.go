package review

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Position carries the line-addressing fields a merge-request commenting API
// needs to anchor an inline comment.
type Position struct {
	OldPath string
	NewPath string
	OldLine int // 0 = absent
	NewLine int // 0 = absent
	// LineCode is `<sha1 of path>_<old>_<new>`; empty when it could not be
	// derived, in which case posting proceeds without it.
	LineCode string
}

// ResolvePosition maps a comment's line anchor into API position semantics:
// a new line sets NewLine only, an old line sets OldLine only, an unchanged
// line exists identically on both sides and sets both.
func ResolvePosition(c Comment, fc *FileChange) (Position, error) {
	if c.IsSummary {
		return Position{}, fmt.Errorf("summary comment for %s has no position", fc.Path)
	}
	if !fc.Resolvable(c.LineNumber) {
		return Position{}, fmt.Errorf("line %d not resolvable in %s", c.LineNumber, fc.Path)
	}

	oldPath := fc.OldPath
	if oldPath == "" {
		oldPath = fc.Path
	}
	pos := Position{OldPath: oldPath, NewPath: fc.Path}

	switch c.LineType {
	case LineNew:
		pos.NewLine = c.LineNumber
	case LineOld:
		pos.OldLine = c.LineNumber
	default:
		pos.OldLine = c.LineNumber
		pos.NewLine = c.LineNumber
	}

	pos.LineCode = lineCode(fc, c.LineNumber)
	return pos, nil
}

// lineCode reproduces GitLab's `<sha1 of path>_<old>_<new>` scheme. It is
// derivable only when the full content confirms the line exists; otherwise
// the empty string is returned and the caller posts without it.
func lineCode(fc *FileChange, line int) string {
	if n := fc.LineCount(); n == 0 || line > n {
		return ""
	}
	sum := sha1.Sum([]byte(fc.Path))
	return fmt.Sprintf("%s_%d_%d", hex.EncodeToString(sum[:]), line, line)
}
