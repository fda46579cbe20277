// Package service orchestrates the review pipeline: chunking, LLM calls,
// response parsing, aggregation, validation, and posting. Files and chunks
// are processed strictly in order; the aggregator's overlap-ownership rule
// depends on ordinal chunk position.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/asmal95/luminary/internal/aggregate"
	"github.com/asmal95/luminary/internal/chunk"
	"github.com/asmal95/luminary/internal/config"
	"github.com/asmal95/luminary/internal/llm"
	"github.com/asmal95/luminary/internal/prompt"
	"github.com/asmal95/luminary/internal/respparse"
	"github.com/asmal95/luminary/internal/retry"
	"github.com/asmal95/luminary/internal/validate"
	"github.com/asmal95/luminary/pkg/review"
)

// FileReviewer reviews one file change at a time.
type FileReviewer struct {
	provider llm.Provider
	judge    *validate.Judge // nil disables validation
	prompts  *prompt.Builder
	cfg      *config.Config
	retryCfg retry.Config
	log      *slog.Logger
}

// NewFileReviewer wires a reviewer from an immutable config.
func NewFileReviewer(provider llm.Provider, judge *validate.Judge, cfg *config.Config, log *slog.Logger) *FileReviewer {
	return &FileReviewer{
		provider: provider,
		judge:    judge,
		prompts:  prompt.NewBuilder(cfg.Prompts.Review, cfg.Prompts.Validation),
		cfg:      cfg,
		retryCfg: RetryConfig(cfg),
		log:      log,
	}
}

// RetryConfig converts the configured retry section into the wrapper's form.
func RetryConfig(cfg *config.Config) retry.Config {
	return retry.Config{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialDelay:      time.Duration(cfg.Retry.InitialDelay * float64(time.Second)),
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		Jitter:            cfg.Retry.Jitter,
		MaxDelay:          30 * time.Second,
	}
}

func (r *FileReviewer) settings() llm.Settings {
	return llm.Settings{
		Model:       r.cfg.LLM.Model,
		Temperature: r.cfg.LLM.Temperature,
		MaxTokens:   r.cfg.LLM.MaxTokens,
		TopP:        r.cfg.LLM.TopP,
	}
}

// ReviewFile runs the whole per-file pipeline and returns a read-only
// result. Provider exhaustion on every chunk marks the file failed; partial
// chunk failures degrade to a partial review.
func (r *FileReviewer) ReviewFile(ctx context.Context, fc *review.FileChange) review.Result {
	result := review.Result{File: fc}
	log := r.log.With("file", fc.Path)

	if fc.IsBinary {
		result.ErrReason = "binary file"
		return result
	}

	chunks, err := r.windows(fc)
	if err != nil {
		result.ErrReason = err.Error()
		return result
	}

	var chunkResults []aggregate.ChunkResult
	failures := 0
	for _, ck := range chunks {
		opts := prompt.ReviewOptions{CommentMode: r.cfg.Comments.Mode}
		if len(chunks) > 1 {
			opts.Content = ck.Content
			opts.LineOffset = ck.StartLine - 1
			log.Debug("reviewing chunk", "index", ck.Index, "start", ck.StartLine, "end", ck.EndLine)
		}
		p := r.prompts.Review(fc, opts)

		resp, err := retry.Do(ctx, r.retryCfg, func() (string, error) {
			return r.provider.Generate(ctx, p, r.settings())
		})
		if err != nil {
			failures++
			log.Warn("provider call failed for chunk", "index", ck.Index, "err", err)
			continue
		}

		parsed := respparse.Parse(resp, fc)
		result.Stats.ParseMisses += parsed.Misses
		chunkResults = append(chunkResults, aggregate.ChunkResult{
			Chunk:    ck,
			Comments: parsed.Comments,
			Summary:  parsed.Summary,
		})
	}

	if len(chunkResults) == 0 && failures > 0 {
		result.ErrReason = "all review calls failed"
		return result
	}

	for _, cr := range chunkResults {
		result.Stats.CommentsGenerated += len(cr.Comments)
	}

	outcome := aggregate.File(chunkResults, r.cfg.Limits.DedupeSimilarity)
	result.Stats.CommentsDeduped = outcome.Deduped

	comments, summary := aggregate.Mode(outcome.Comments, outcome.Summary, r.cfg.Comments.Mode)

	if r.judge != nil {
		vo := r.judge.Validate(ctx, comments, fc)
		result.Stats.CommentsValidated = len(vo.Accepted)
		result.Stats.CommentsRejected = len(vo.Rejected)
		result.Stats.ValidationAnomalies = vo.Anomalies
		comments = vo.Accepted
	} else {
		result.Stats.ValidationSkipped = true
	}

	result.Comments = comments
	result.Summary = summary
	log.Info("review completed", "comments", len(result.Comments), "deduped", result.Stats.CommentsDeduped)
	return result
}

// windows computes the chunk windows for the file: one whole-file window
// unless the content exceeds the configured chunk size.
func (r *FileReviewer) windows(fc *review.FileChange) ([]chunk.Chunk, error) {
	if fc.FullContent == "" || fc.LineCount() <= r.cfg.Limits.MaxChunkLines {
		return []chunk.Chunk{{Index: 0, StartLine: 1, EndLine: fc.LineCount(), Content: fc.FullContent, File: fc}}, nil
	}
	return chunk.Split(fc, r.cfg.Limits.MaxChunkLines, r.cfg.Limits.ChunkOverlapLines)
}
