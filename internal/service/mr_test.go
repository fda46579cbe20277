package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asmal95/luminary/internal/config"
	"github.com/asmal95/luminary/internal/gitlab"
	"github.com/asmal95/luminary/internal/llm"
	"github.com/asmal95/luminary/pkg/review"
)

type fakeClient struct {
	mr      *gitlab.MergeRequest
	changes []*review.FileChange

	fetchMRErr error
	inlineErr  error

	inlinePosted  []review.Position
	inlineBodies  []string
	summaryBodies []string
}

func (f *fakeClient) FetchMergeRequest(ctx context.Context, project string, iid int) (*gitlab.MergeRequest, error) {
	if f.fetchMRErr != nil {
		return nil, f.fetchMRErr
	}
	return f.mr, nil
}

func (f *fakeClient) FetchChanges(ctx context.Context, project string, iid int, headSHA string) ([]*review.FileChange, error) {
	return f.changes, nil
}

func (f *fakeClient) PostInline(ctx context.Context, project string, iid int, refs gitlab.DiffRefs, pos review.Position, body string) error {
	if f.inlineErr != nil {
		return f.inlineErr
	}
	f.inlinePosted = append(f.inlinePosted, pos)
	f.inlineBodies = append(f.inlineBodies, body)
	return nil
}

func (f *fakeClient) PostSummary(ctx context.Context, project string, iid int, body string) error {
	f.summaryBodies = append(f.summaryBodies, body)
	return nil
}

func fakeMR() *gitlab.MergeRequest {
	return &gitlab.MergeRequest{
		IID:   7,
		Title: "Add greeting",
		DiffRefs: gitlab.DiffRefs{
			BaseSHA:  "base000",
			HeadSHA:  "head000",
			StartSHA: "start00",
		},
	}
}

func mrReviewerForTest(t *testing.T, client gitlab.Client, cfg *config.Config, response string) *MRReviewer {
	t.Helper()
	mock := llm.NewMock("m")
	mock.Response = response
	reviewer := NewFileReviewer(mock, nil, cfg, testLogger())
	return NewMRReviewer(client, reviewer, cfg, testLogger())
}

func TestMRReviewPosts(t *testing.T) {
	cfg := config.Default()
	client := &fakeClient{mr: fakeMR(), changes: []*review.FileChange{smallChange()}}
	m := mrReviewerForTest(t, client, cfg, `{"comments": [{"line": 4, "message": "Use fmt.Println"}], "summary": "Tiny change."}`)

	result, err := m.Review(context.Background(), "group/repo", 7, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(client.inlinePosted) != 1 {
		t.Fatalf("Expected 1 inline discussion, got %d", len(client.inlinePosted))
	}
	pos := client.inlinePosted[0]
	if pos.NewLine != 4 || pos.OldLine != 0 {
		t.Errorf("Expected new-side position, got %+v", pos)
	}
	if len(client.summaryBodies) != 1 || !strings.Contains(client.summaryBodies[0], "Tiny change.") {
		t.Errorf("Expected summary note, got %+v", client.summaryBodies)
	}
	if result.Stats.CommentsPosted != 2 {
		t.Errorf("Expected inline plus summary counted, got %d", result.Stats.CommentsPosted)
	}
	if result.Stats.FilesCompleted != 1 || result.Stats.FilesTotal != 1 {
		t.Errorf("Unexpected file stats: %+v", result.Stats)
	}
}

func TestMRReviewDryRunDoesNotPost(t *testing.T) {
	cfg := config.Default()
	client := &fakeClient{mr: fakeMR(), changes: []*review.FileChange{smallChange()}}
	m := mrReviewerForTest(t, client, cfg, `[{"line": 4, "message": "note"}]`)

	result, err := m.Review(context.Background(), "group/repo", 7, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(client.inlinePosted) != 0 || len(client.summaryBodies) != 0 {
		t.Error("Expected nothing posted in dry run")
	}
	if len(result.Comments) != 1 {
		t.Errorf("Expected review result returned, got %d comments", len(result.Comments))
	}
}

func TestMRReviewFetchFailureIsFatal(t *testing.T) {
	cfg := config.Default()
	client := &fakeClient{fetchMRErr: errors.New("404 not found")}
	m := mrReviewerForTest(t, client, cfg, `[]`)
	if _, err := m.Review(context.Background(), "group/repo", 7, false); err == nil {
		t.Error("Expected MR fetch failure to abort the run")
	}
}

func TestMRReviewIgnoresFilteredFiles(t *testing.T) {
	cfg := config.Default()
	client := &fakeClient{mr: fakeMR(), changes: []*review.FileChange{
		smallChange(),
		{Path: "poetry.lock", Status: "modified"},
		{Path: "logo.png", Status: "added", IsBinary: true},
	}}
	m := mrReviewerForTest(t, client, cfg, `[]`)
	result, err := m.Review(context.Background(), "group/repo", 7, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Stats.FilesIgnored != 2 || result.Stats.FilesAttempted != 1 {
		t.Errorf("Unexpected stats: %+v", result.Stats)
	}
}

func TestMRReviewMaxFilesTruncates(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxFiles = 1
	a := smallChange()
	b := smallChange()
	b.Path = "second.go"
	client := &fakeClient{mr: fakeMR(), changes: []*review.FileChange{a, b}}
	m := mrReviewerForTest(t, client, cfg, `[]`)

	result, err := m.Review(context.Background(), "group/repo", 7, false)
	if err != nil {
		t.Fatalf("Expected truncation without an error, got %v", err)
	}
	if !result.Stats.Truncated {
		t.Error("Expected truncated flag set")
	}
	if result.Stats.FilesAttempted != 1 {
		t.Errorf("Expected only 1 file attempted, got %d", result.Stats.FilesAttempted)
	}
}

func TestMRReviewMaxLinesTruncates(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxLines = 1
	a := smallChange()
	b := smallChange()
	b.Path = "second.go"
	client := &fakeClient{mr: fakeMR(), changes: []*review.FileChange{a, b}}
	m := mrReviewerForTest(t, client, cfg, `[]`)

	result, err := m.Review(context.Background(), "group/repo", 7, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Stats.Truncated {
		t.Error("Expected truncated flag set")
	}
	if result.Stats.FilesAttempted != 1 {
		t.Errorf("Expected the first file to survive the line cap, got %d attempted", result.Stats.FilesAttempted)
	}
}

func TestMRReviewPostFailureCounted(t *testing.T) {
	cfg := config.Default()
	client := &fakeClient{mr: fakeMR(), changes: []*review.FileChange{smallChange()}, inlineErr: errors.New("403 forbidden")}
	m := mrReviewerForTest(t, client, cfg, `[{"line": 4, "message": "note"}]`)

	result, err := m.Review(context.Background(), "group/repo", 7, true)
	if err != nil {
		t.Fatalf("Expected posting failure not to abort, got %v", err)
	}
	if result.Stats.CommentsFailed != 1 {
		t.Errorf("Expected 1 failed comment, got %d", result.Stats.CommentsFailed)
	}
}

func TestMRReviewSummaryOnlyMode(t *testing.T) {
	cfg := config.Default()
	cfg.Comments.Mode = "summary"
	client := &fakeClient{mr: fakeMR(), changes: []*review.FileChange{smallChange()}}
	m := mrReviewerForTest(t, client, cfg, `{"comments": [{"line": 4, "message": "dropped"}], "summary": "Only this survives."}`)

	_, err := m.Review(context.Background(), "group/repo", 7, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(client.inlinePosted) != 0 {
		t.Errorf("Expected no inline discussions in summary mode, got %d", len(client.inlinePosted))
	}
	if len(client.summaryBodies) != 1 || !strings.Contains(client.summaryBodies[0], "Only this survives.") {
		t.Errorf("Expected summary note, got %+v", client.summaryBodies)
	}
}
