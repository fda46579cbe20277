// Package gitlab adapts the GitLab API to the review pipeline: it supplies
// changed files for a merge request and posts the resulting comments.
package gitlab

import (
	"context"
	"fmt"
	"log/slog"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/asmal95/luminary/internal/diffparse"
	"github.com/asmal95/luminary/internal/retry"
	"github.com/asmal95/luminary/pkg/review"
)

// DiffRefs are the three SHAs an inline discussion position must carry.
type DiffRefs struct {
	BaseSHA  string
	HeadSHA  string
	StartSHA string
}

// MergeRequest is the subset of MR metadata the pipeline needs.
type MergeRequest struct {
	IID      int
	Title    string
	DiffRefs DiffRefs
}

// Client is what the MR review service consumes. The pipeline never sees
// how changes were obtained.
type Client interface {
	FetchMergeRequest(ctx context.Context, project string, iid int) (*MergeRequest, error)
	FetchChanges(ctx context.Context, project string, iid int, headSHA string) ([]*review.FileChange, error)
	PostInline(ctx context.Context, project string, iid int, refs DiffRefs, pos review.Position, body string) error
	PostSummary(ctx context.Context, project string, iid int, body string) error
}

// apiError wraps a GitLab API failure with its HTTP status so the retry
// policy can classify it.
type apiError struct {
	op     string
	status int
	err    error
}

func (e *apiError) Error() string {
	if e.status > 0 {
		return fmt.Sprintf("gitlab %s: status %d: %v", e.op, e.status, e.err)
	}
	return fmt.Sprintf("gitlab %s: %v", e.op, e.err)
}

func (e *apiError) Unwrap() error { return e.err }

func (e *apiError) Transient() bool {
	return e.status == 0 || e.status == 429 || e.status >= 500
}

// GLClient is the production Client backed by the GitLab REST API.
type GLClient struct {
	api      *gl.Client
	retryCfg retry.Config
	log      *slog.Logger
}

// NewClient connects to a GitLab instance. token must be a personal or
// project access token with api scope.
func NewClient(baseURL, token string, retryCfg retry.Config, log *slog.Logger) (*GLClient, error) {
	if token == "" {
		return nil, fmt.Errorf("gitlab token is required; set GITLAB_TOKEN or gitlab.token in config")
	}
	api, err := gl.NewClient(token, gl.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &GLClient{api: api, retryCfg: retryCfg, log: log}, nil
}

func (c *GLClient) FetchMergeRequest(ctx context.Context, project string, iid int) (*MergeRequest, error) {
	mr, err := retry.Do(ctx, c.retryCfg, func() (*gl.MergeRequest, error) {
		mr, resp, err := c.api.MergeRequests.GetMergeRequest(project, iid, nil, gl.WithContext(ctx))
		if err != nil {
			return nil, &apiError{op: "get merge request", status: statusOf(resp), err: err}
		}
		return mr, nil
	})
	if err != nil {
		return nil, err
	}
	return &MergeRequest{
		IID:   mr.IID,
		Title: mr.Title,
		DiffRefs: DiffRefs{
			BaseSHA:  mr.DiffRefs.BaseSha,
			HeadSHA:  mr.DiffRefs.HeadSha,
			StartSHA: mr.DiffRefs.StartSha,
		},
	}, nil
}

// FetchChanges lists the MR's file diffs and parses each one into the
// domain model. A file whose diff cannot be parsed is skipped with a
// warning; one bad file must not sink the run. Full content is fetched at
// the head SHA for files that still exist.
func (c *GLClient) FetchChanges(ctx context.Context, project string, iid int, headSHA string) ([]*review.FileChange, error) {
	diffs, err := c.listDiffs(ctx, project, iid)
	if err != nil {
		return nil, err
	}

	changes := make([]*review.FileChange, 0, len(diffs))
	for _, d := range diffs {
		fc, err := diffparse.ParseFile(d.Diff, d.NewPath)
		if err != nil {
			c.log.Warn("skipping unparseable change", "path", d.NewPath, "err", err)
			continue
		}
		switch {
		case d.NewFile:
			fc.Status = "added"
		case d.DeletedFile:
			fc.Status = "deleted"
		case d.RenamedFile:
			fc.Status = "renamed"
			fc.OldPath = d.OldPath
		}

		if !fc.IsBinary && !d.DeletedFile {
			content, err := c.rawFile(ctx, project, d.NewPath, headSHA)
			if err != nil {
				c.log.Warn("could not fetch file content", "path", d.NewPath, "err", err)
			} else {
				fc.FullContent = content
			}
		}
		changes = append(changes, fc)
	}
	return changes, nil
}

func (c *GLClient) listDiffs(ctx context.Context, project string, iid int) ([]*gl.MergeRequestDiff, error) {
	var all []*gl.MergeRequestDiff
	opt := &gl.ListMergeRequestDiffsOptions{
		ListOptions: gl.ListOptions{PerPage: 100},
	}
	for {
		diffs, resp, err := c.api.MergeRequests.ListMergeRequestDiffs(project, iid, opt, gl.WithContext(ctx))
		if err != nil {
			return nil, &apiError{op: "list merge request diffs", status: statusOf(resp), err: err}
		}
		all = append(all, diffs...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

func (c *GLClient) rawFile(ctx context.Context, project, path, ref string) (string, error) {
	return retry.Do(ctx, c.retryCfg, func() (string, error) {
		raw, resp, err := c.api.RepositoryFiles.GetRawFile(project, path, &gl.GetRawFileOptions{Ref: gl.Ptr(ref)}, gl.WithContext(ctx))
		if err != nil {
			return "", &apiError{op: "get raw file", status: statusOf(resp), err: err}
		}
		return string(raw), nil
	})
}

// PostInline opens a discussion anchored at the resolved position.
func (c *GLClient) PostInline(ctx context.Context, project string, iid int, refs DiffRefs, pos review.Position, body string) error {
	opt := &gl.CreateMergeRequestDiscussionOptions{
		Body: gl.Ptr(body),
		Position: &gl.PositionOptions{
			BaseSHA:      gl.Ptr(refs.BaseSHA),
			HeadSHA:      gl.Ptr(refs.HeadSHA),
			StartSHA:     gl.Ptr(refs.StartSHA),
			OldPath:      gl.Ptr(pos.OldPath),
			NewPath:      gl.Ptr(pos.NewPath),
			PositionType: gl.Ptr("text"),
		},
	}
	if pos.OldLine > 0 {
		opt.Position.OldLine = gl.Ptr(pos.OldLine)
	}
	if pos.NewLine > 0 {
		opt.Position.NewLine = gl.Ptr(pos.NewLine)
	}

	_, err := retry.Do(ctx, c.retryCfg, func() (struct{}, error) {
		_, resp, err := c.api.Discussions.CreateMergeRequestDiscussion(project, iid, opt, gl.WithContext(ctx))
		if err != nil {
			return struct{}{}, &apiError{op: "create discussion", status: statusOf(resp), err: err}
		}
		return struct{}{}, nil
	})
	return err
}

// PostSummary adds a plain MR note.
func (c *GLClient) PostSummary(ctx context.Context, project string, iid int, body string) error {
	_, err := retry.Do(ctx, c.retryCfg, func() (struct{}, error) {
		_, resp, err := c.api.Notes.CreateMergeRequestNote(project, iid, &gl.CreateMergeRequestNoteOptions{Body: gl.Ptr(body)}, gl.WithContext(ctx))
		if err != nil {
			return struct{}{}, &apiError{op: "create note", status: statusOf(resp), err: err}
		}
		return struct{}{}, nil
	})
	return err
}

func statusOf(resp *gl.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
