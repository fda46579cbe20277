// Package diffparse turns unified diff text into the review domain model,
// classifying every hunk line's provenance and line numbers.
package diffparse

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/asmal95/luminary/pkg/review"
)

// ParseError reports diff text that does not match unified-diff syntax.
// A ParseError is fatal for the file it names only; the run skips the file
// and continues.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse diff for %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse diff for %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseFile parses the diff of a single file. The text may be a complete file
// diff with `---`/`+++` headers or, as GitLab's changes API returns it, bare
// hunks starting at the first `@@` line. Binary diff markers short-circuit to
// an empty binary FileChange.
func ParseFile(diffText, path string) (*review.FileChange, error) {
	if isBinaryDiff(diffText) {
		return &review.FileChange{Path: path, Status: "modified", IsBinary: true}, nil
	}

	if hasFileHeaders(diffText) {
		fd, err := diff.ParseFileDiff([]byte(diffText))
		if err != nil {
			return nil, &ParseError{Path: path, Reason: "bad file diff", Err: err}
		}
		return fromFileDiff(fd, path)
	}

	hunks, err := diff.ParseHunks([]byte(diffText))
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "bad hunks", Err: err}
	}
	fc := &review.FileChange{Path: path, Status: "modified"}
	for _, h := range hunks {
		rh, err := fromHunk(h, path)
		if err != nil {
			return nil, err
		}
		fc.Hunks = append(fc.Hunks, rh)
	}
	return fc, nil
}

// ParseMulti parses a multi-file unified diff, one FileChange per file.
func ParseMulti(diffText string) ([]*review.FileChange, error) {
	fds, err := diff.ParseMultiFileDiff([]byte(diffText))
	if err != nil {
		return nil, &ParseError{Path: "", Reason: "bad multi-file diff", Err: err}
	}
	out := make([]*review.FileChange, 0, len(fds))
	for _, fd := range fds {
		fc, err := fromFileDiff(fd, "")
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, nil
}

func fromFileDiff(fd *diff.FileDiff, path string) (*review.FileChange, error) {
	oldName := stripPrefix(fd.OrigName)
	newName := stripPrefix(fd.NewName)

	if path == "" {
		path = newName
		if path == "" || fd.NewName == "/dev/null" {
			path = oldName
		}
	}

	fc := &review.FileChange{Path: path, Status: "modified"}
	switch {
	case fd.OrigName == "/dev/null":
		fc.Status = "added"
	case fd.NewName == "/dev/null":
		fc.Status = "deleted"
	case oldName != "" && newName != "" && oldName != newName:
		fc.Status = "renamed"
		fc.OldPath = oldName
	}

	for _, ext := range fd.Extended {
		if strings.HasPrefix(ext, "Binary files ") || strings.HasPrefix(ext, "GIT binary patch") {
			fc.IsBinary = true
			return fc, nil
		}
	}

	for _, h := range fd.Hunks {
		rh, err := fromHunk(h, path)
		if err != nil {
			return nil, err
		}
		fc.Hunks = append(fc.Hunks, rh)
	}
	return fc, nil
}

// fromHunk walks a hunk body assigning line numbers from two running cursors:
// `+` advances the new cursor only, `-` the old cursor only, context both.
func fromHunk(h *diff.Hunk, path string) (*review.Hunk, error) {
	rh := &review.Hunk{
		OldStart: int(h.OrigStartLine),
		OldCount: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewCount: int(h.NewLines),
	}

	oldCursor := rh.OldStart
	newCursor := rh.NewStart

	body := strings.TrimSuffix(string(h.Body), "\n")
	if body != "" {
		for _, line := range strings.Split(body, "\n") {
			var dl review.DiffLine
			switch {
			case strings.HasPrefix(line, "+"):
				dl = review.DiffLine{Kind: review.KindAdded, Content: line[1:], NewLine: newCursor}
				newCursor++
			case strings.HasPrefix(line, "-"):
				dl = review.DiffLine{Kind: review.KindRemoved, Content: line[1:], OldLine: oldCursor}
				oldCursor++
			case strings.HasPrefix(line, `\`):
				// "\ No newline at end of file" carries no line number.
				continue
			case line == "" || strings.HasPrefix(line, " "):
				dl = review.DiffLine{Kind: review.KindContext, Content: strings.TrimPrefix(line, " "), OldLine: oldCursor, NewLine: newCursor}
				oldCursor++
				newCursor++
			default:
				return nil, &ParseError{Path: path, Reason: fmt.Sprintf("unknown diff marker %q", line[:1])}
			}
			rh.Lines = append(rh.Lines, dl)
		}
	}

	// The declared ranges must match what the body produced.
	if got := newCursor - rh.NewStart; got != rh.NewCount {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("hunk new count mismatch: header %d, body %d", rh.NewCount, got)}
	}
	if got := oldCursor - rh.OldStart; got != rh.OldCount {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("hunk old count mismatch: header %d, body %d", rh.OldCount, got)}
	}
	return rh, nil
}

func hasFileHeaders(s string) bool {
	for _, line := range strings.SplitN(s, "\n", 16) {
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "diff --git ") {
			return true
		}
		if strings.HasPrefix(line, "@@ ") {
			return false
		}
	}
	return false
}

func isBinaryDiff(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "Binary files ") || strings.HasPrefix(line, "GIT binary patch") {
			return true
		}
		if strings.HasPrefix(line, "@@ ") {
			return false
		}
	}
	return false
}

func stripPrefix(name string) string {
	if name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
