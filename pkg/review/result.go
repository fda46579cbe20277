package review

// Stats counts what happened during a review run. File counters are only
// meaningful on MR-level results; comment counters apply to both levels.
type Stats struct {
	FilesTotal     int
	FilesIgnored   int
	FilesAttempted int
	FilesCompleted int

	CommentsGenerated   int
	CommentsDeduped     int
	CommentsValidated   int
	CommentsRejected    int
	CommentsPosted      int
	CommentsFailed      int
	ParseMisses         int
	ValidationAnomalies int
	ValidationSkipped   bool

	// Truncated is set when max_files or max_lines cut the run short; the
	// result then covers the processed subset only.
	Truncated bool
}

// Add folds another stats value into the receiver.
func (s *Stats) Add(o Stats) {
	s.FilesTotal += o.FilesTotal
	s.FilesIgnored += o.FilesIgnored
	s.FilesAttempted += o.FilesAttempted
	s.FilesCompleted += o.FilesCompleted
	s.CommentsGenerated += o.CommentsGenerated
	s.CommentsDeduped += o.CommentsDeduped
	s.CommentsValidated += o.CommentsValidated
	s.CommentsRejected += o.CommentsRejected
	s.CommentsPosted += o.CommentsPosted
	s.CommentsFailed += o.CommentsFailed
	s.ParseMisses += o.ParseMisses
	s.ValidationAnomalies += o.ValidationAnomalies
	s.ValidationSkipped = s.ValidationSkipped || o.ValidationSkipped
	s.Truncated = s.Truncated || o.Truncated
}

// Result aggregates the comments for one review target, either a single file
// (File set) or a whole merge request (File nil). Read-only once aggregation
// completes.
type Result struct {
	File     *FileChange
	Comments []Comment
	Summary  string
	Stats    Stats

	// ErrReason is set when the file could not be reviewed; the file is
	// counted as attempted but not completed.
	ErrReason string
}

// InlineComments returns the line-anchored subset.
func (r *Result) InlineComments() []Comment {
	out := make([]Comment, 0, len(r.Comments))
	for _, c := range r.Comments {
		if !c.IsSummary {
			out = append(out, c)
		}
	}
	return out
}

// Merge combines per-file results into one MR-level result. Comment order
// follows file processing order.
func Merge(results []Result) Result {
	merged := Result{}
	for _, r := range results {
		merged.Comments = append(merged.Comments, r.Comments...)
		merged.Stats.Add(r.Stats)
		if r.Summary != "" {
			if merged.Summary != "" {
				merged.Summary += "\n\n"
			}
			merged.Summary += "### " + r.File.Path + "\n\n" + r.Summary
		}
	}
	return merged
}
