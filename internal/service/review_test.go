package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/asmal95/luminary/internal/config"
	"github.com/asmal95/luminary/internal/llm"
	"github.com/asmal95/luminary/internal/prompt"
	"github.com/asmal95/luminary/internal/retry"
	"github.com/asmal95/luminary/internal/validate"
	"github.com/asmal95/luminary/pkg/review"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallChange() *review.FileChange {
	return &review.FileChange{
		Path:        "main.go",
		Status:      "modified",
		FullContent: "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n",
		Hunks: []*review.Hunk{{
			OldStart: 4, OldCount: 0, NewStart: 4, NewCount: 1,
			Lines: []review.DiffLine{{Kind: review.KindAdded, Content: "\tprintln(\"hi\")", NewLine: 4}},
		}},
	}
}

func bigContent(lines int) string {
	var b strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func TestReviewFile(t *testing.T) {
	cfg := config.Default()
	mock := llm.NewMock("m")
	mock.Response = `{"comments": [{"line": 4, "message": "Use fmt.Println instead"}], "summary": "One small improvement."}`

	r := NewFileReviewer(mock, nil, cfg, testLogger())
	res := r.ReviewFile(context.Background(), smallChange())

	if res.ErrReason != "" {
		t.Fatalf("Unexpected failure: %s", res.ErrReason)
	}
	if len(res.Comments) != 1 {
		t.Fatalf("Expected 1 comment, got %d", len(res.Comments))
	}
	c := res.Comments[0]
	if c.LineNumber != 4 || c.LineType != review.LineNew {
		t.Errorf("Unexpected anchor: %+v", c)
	}
	if res.Summary != "One small improvement." {
		t.Errorf("Unexpected summary: %q", res.Summary)
	}
	if res.Stats.CommentsGenerated != 1 || !res.Stats.ValidationSkipped {
		t.Errorf("Unexpected stats: %+v", res.Stats)
	}
	if len(mock.Prompts) != 1 {
		t.Fatalf("Expected single provider call, got %d", len(mock.Prompts))
	}
	if !strings.Contains(mock.Prompts[0], "4: \tprintln(\"hi\")") {
		t.Errorf("Expected numbered content in prompt:\n%s", mock.Prompts[0])
	}
}

func TestReviewFileChunksLargeContent(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxChunkLines = 100
	cfg.Limits.ChunkOverlapLines = 20

	mock := llm.NewMock("m")
	mock.Response = `[]`

	fc := &review.FileChange{Path: "big.go", Status: "modified", FullContent: bigContent(250)}
	r := NewFileReviewer(mock, nil, cfg, testLogger())
	res := r.ReviewFile(context.Background(), fc)

	if res.ErrReason != "" {
		t.Fatalf("Unexpected failure: %s", res.ErrReason)
	}
	if len(mock.Prompts) != 3 {
		t.Fatalf("Expected 3 chunked calls, got %d", len(mock.Prompts))
	}
	if !strings.Contains(mock.Prompts[1], "81: line 81") {
		t.Errorf("Expected second chunk numbered from 81:\n%s", mock.Prompts[1])
	}
	if !strings.Contains(mock.Prompts[2], "250: line 250") {
		t.Errorf("Expected last chunk to reach line 250")
	}
}

func TestReviewFileDeduplicatesAcrossChunks(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxChunkLines = 100
	cfg.Limits.ChunkOverlapLines = 20

	// Every chunk reports the same comment on line 90, which only the first
	// window owns (distance to midpoint 50.5 beats 130.5).
	mock := llm.NewMock("m")
	mock.Response = `[{"line": 90, "message": "repeated finding about this line"}]`

	fc := &review.FileChange{Path: "big.go", Status: "modified", FullContent: bigContent(250)}
	r := NewFileReviewer(mock, nil, cfg, testLogger())
	res := r.ReviewFile(context.Background(), fc)

	if len(res.Comments) != 1 {
		t.Fatalf("Expected overlap echoes collapsed to 1 comment, got %d", len(res.Comments))
	}
	if res.Stats.CommentsGenerated != 3 || res.Stats.CommentsDeduped != 2 {
		t.Errorf("Unexpected stats: %+v", res.Stats)
	}
}

func TestReviewFileAllCallsFail(t *testing.T) {
	cfg := config.Default()
	cfg.Retry.MaxAttempts = 1
	mock := llm.NewMock("m")
	mock.Err = &llm.ProviderError{Provider: "mock", Status: 401, Message: "no key"}

	r := NewFileReviewer(mock, nil, cfg, testLogger())
	res := r.ReviewFile(context.Background(), smallChange())
	if res.ErrReason == "" {
		t.Error("Expected failure reason when every call fails")
	}
	if len(res.Comments) != 0 {
		t.Errorf("Expected no comments, got %d", len(res.Comments))
	}
}

func TestReviewFileBinary(t *testing.T) {
	cfg := config.Default()
	r := NewFileReviewer(llm.NewMock("m"), nil, cfg, testLogger())
	res := r.ReviewFile(context.Background(), &review.FileChange{Path: "logo.png", IsBinary: true})
	if res.ErrReason == "" {
		t.Error("Expected binary file to be rejected")
	}
}

func TestReviewFileWithValidation(t *testing.T) {
	cfg := config.Default()
	reviewerMock := llm.NewMock("m")
	reviewerMock.Response = `[{"line": 4, "message": "first"}, {"line": 2, "message": "second finding"}]`

	judgeMock := llm.NewMock("judge")
	judgeMock.Response = `{"valid": false, "reason": "not useful", "scores": {"relevance": 0.9, "usefulness": 0.9, "non_redundancy": 0.9}}`
	judge := validate.NewJudge(judgeMock, llm.Settings{}, 0.7, prompt.NewBuilder("", ""), retry.Config{MaxAttempts: 1}, testLogger())

	r := NewFileReviewer(reviewerMock, judge, cfg, testLogger())
	res := r.ReviewFile(context.Background(), smallChange())

	if len(res.Comments) != 0 {
		t.Errorf("Expected all comments rejected, got %d", len(res.Comments))
	}
	if res.Stats.CommentsRejected != 2 || res.Stats.CommentsValidated != 0 {
		t.Errorf("Unexpected stats: %+v", res.Stats)
	}
	if res.Stats.ValidationSkipped {
		t.Error("Expected validation to run")
	}
}

func TestReviewFileInlineMode(t *testing.T) {
	cfg := config.Default()
	cfg.Comments.Mode = "inline"
	mock := llm.NewMock("m")
	mock.Response = `{"comments": [{"line": 4, "message": "note"}], "summary": "dropped in inline mode"}`

	r := NewFileReviewer(mock, nil, cfg, testLogger())
	res := r.ReviewFile(context.Background(), smallChange())
	if res.Summary != "" {
		t.Errorf("Expected summary dropped in inline mode, got %q", res.Summary)
	}
	if len(res.Comments) != 1 {
		t.Errorf("Expected inline comment kept, got %d", len(res.Comments))
	}
}
