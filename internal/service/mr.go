package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asmal95/luminary/internal/config"
	"github.com/asmal95/luminary/internal/filter"
	"github.com/asmal95/luminary/internal/gitlab"
	"github.com/asmal95/luminary/pkg/review"
)

// MRReviewer drives a merge-request review end to end: fetch, filter,
// limit, review each file, and optionally post the findings back.
type MRReviewer struct {
	client   gitlab.Client
	reviewer *FileReviewer
	filter   *filter.FileFilter
	cfg      *config.Config
	log      *slog.Logger
}

func NewMRReviewer(client gitlab.Client, reviewer *FileReviewer, cfg *config.Config, log *slog.Logger) *MRReviewer {
	return &MRReviewer{
		client:   client,
		reviewer: reviewer,
		filter:   filter.New(cfg.Ignore.Patterns, cfg.Ignore.BinaryFiles),
		cfg:      cfg,
		log:      log,
	}
}

// Review fetches the merge request, reviews every kept file, and when post
// is set publishes inline discussions plus a summary note. MR-level fetch
// failures abort; per-file and per-comment failures are counted and logged.
func (m *MRReviewer) Review(ctx context.Context, project string, iid int, post bool) (review.Result, error) {
	mr, err := m.client.FetchMergeRequest(ctx, project, iid)
	if err != nil {
		return review.Result{}, fmt.Errorf("fetch merge request %s!%d: %w", project, iid, err)
	}
	m.log.Info("reviewing merge request", "project", project, "iid", iid, "title", mr.Title)

	changes, err := m.client.FetchChanges(ctx, project, iid, mr.DiffRefs.HeadSHA)
	if err != nil {
		return review.Result{}, fmt.Errorf("fetch changes %s!%d: %w", project, iid, err)
	}

	kept, ignored := m.filter.Split(changes)
	for _, ig := range ignored {
		m.log.Debug("skipping file", "file", ig.File.Path, "reason", ig.Reason)
	}

	kept, truncated := m.applyLimits(kept)

	var (
		results []review.Result
		stats   review.Stats
	)
	stats.FilesTotal = len(changes)
	stats.FilesIgnored = len(ignored)
	stats.Truncated = truncated

	for _, fc := range kept {
		stats.FilesAttempted++
		res := m.reviewer.ReviewFile(ctx, fc)
		if res.ErrReason != "" {
			m.log.Warn("file review failed", "file", fc.Path, "reason", res.ErrReason)
			results = append(results, res)
			continue
		}
		stats.FilesCompleted++

		if post {
			m.postInline(ctx, project, iid, mr.DiffRefs, &res)
		}
		results = append(results, res)
	}

	merged := review.Merge(results)
	merged.Stats.Add(stats)

	if post {
		if body := summaryNote(merged); body != "" {
			if err := m.client.PostSummary(ctx, project, iid, body); err != nil {
				m.log.Warn("posting summary note failed", "err", err)
				merged.Stats.CommentsFailed++
			} else {
				merged.Stats.CommentsPosted++
			}
		}
	}
	return merged, nil
}

// applyLimits enforces the max-files and max-lines caps. Files beyond either
// cap are dropped in order; the review proceeds over the remaining prefix.
func (m *MRReviewer) applyLimits(changes []*review.FileChange) ([]*review.FileChange, bool) {
	truncated := false
	if max := m.cfg.Limits.MaxFiles; max > 0 && len(changes) > max {
		m.log.Warn("file limit reached", "limit", max, "total", len(changes))
		changes = changes[:max]
		truncated = true
	}
	if max := m.cfg.Limits.MaxLines; max > 0 {
		total := 0
		for i, fc := range changes {
			total += fc.TotalLinesChanged()
			if total > max && i > 0 {
				m.log.Warn("line limit reached", "limit", max, "kept", i)
				changes = changes[:i]
				truncated = true
				break
			}
		}
	}
	return changes, truncated
}

// postInline publishes each inline comment as a positioned discussion.
// Comments that cannot be anchored to a diff position are dropped and
// counted; posting errors do not stop the remaining comments.
func (m *MRReviewer) postInline(ctx context.Context, project string, iid int, refs gitlab.DiffRefs, res *review.Result) {
	for _, c := range res.InlineComments() {
		pos, err := review.ResolvePosition(c, res.File)
		if err != nil {
			m.log.Warn("cannot resolve position", "file", c.FilePath, "line", c.LineNumber, "err", err)
			res.Stats.CommentsFailed++
			continue
		}
		if err := m.client.PostInline(ctx, project, iid, refs, pos, c.Markdown()); err != nil {
			m.log.Warn("posting inline comment failed", "file", c.FilePath, "line", c.LineNumber, "err", err)
			res.Stats.CommentsFailed++
			continue
		}
		res.Stats.CommentsPosted++
	}
}

// summaryNote renders the merged summary plus any summary-level comments
// into a single note body. Empty when there is nothing to say.
func summaryNote(merged review.Result) string {
	var b strings.Builder
	if merged.Summary != "" {
		b.WriteString("## Review Summary\n\n")
		b.WriteString(merged.Summary)
		b.WriteString("\n")
	}
	var general []string
	for _, c := range merged.Comments {
		if c.IsSummary {
			general = append(general, fmt.Sprintf("- **%s**: %s", c.FilePath, c.Text))
		}
	}
	if len(general) > 0 {
		b.WriteString("\n### General Notes\n\n")
		b.WriteString(strings.Join(general, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
