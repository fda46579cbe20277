// Package filter decides which changed files are worth reviewing.
package filter

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/asmal95/luminary/pkg/review"
)

// Ignored records a file that was skipped and why.
type Ignored struct {
	File   *review.FileChange
	Reason string
}

// FileFilter drops files matching ignore patterns, and binary files when
// configured to.
type FileFilter struct {
	patterns     []string
	ignoreBinary bool
}

// New builds a filter over doublestar glob patterns. A pattern matches
// against the full path or the base name.
func New(patterns []string, ignoreBinary bool) *FileFilter {
	return &FileFilter{patterns: patterns, ignoreBinary: ignoreBinary}
}

// ShouldIgnore reports whether the file is skipped, with a reason.
func (f *FileFilter) ShouldIgnore(fc *review.FileChange) (bool, string) {
	if f.ignoreBinary && fc.IsBinary {
		return true, "binary file"
	}
	p := strings.ReplaceAll(fc.Path, `\`, "/")
	for _, pattern := range f.patterns {
		pattern = strings.ReplaceAll(pattern, `\`, "/")
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true, "matches pattern: " + pattern
		}
		if ok, err := doublestar.Match(pattern, path.Base(p)); err == nil && ok {
			return true, "matches pattern: " + pattern
		}
	}
	return false, ""
}

// Split partitions changes into files to review and ignored files.
func (f *FileFilter) Split(changes []*review.FileChange) (kept []*review.FileChange, ignored []Ignored) {
	for _, fc := range changes {
		if skip, reason := f.ShouldIgnore(fc); skip {
			ignored = append(ignored, Ignored{File: fc, Reason: reason})
			continue
		}
		kept = append(kept, fc)
	}
	return kept, ignored
}
