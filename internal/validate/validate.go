// Package validate filters comments through a secondary LLM judgment call.
// The judge scores each comment; anything below the threshold is rejected
// with the model's justification. Judgment failures fail open: an
// indeterminate comment is accepted and counted as an anomaly, since a lost
// reviewer finding costs more than a weak one.
package validate

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/asmal95/luminary/internal/llm"
	"github.com/asmal95/luminary/internal/prompt"
	"github.com/asmal95/luminary/internal/retry"
	"github.com/asmal95/luminary/pkg/review"
)

// Rejection pairs a rejected comment with the judge's reason.
type Rejection struct {
	Comment review.Comment
	Reason  string
}

// Outcome is the result of validating one file's comments.
type Outcome struct {
	Accepted  []review.Comment
	Rejected  []Rejection
	Anomalies int
}

// Judge issues judgment calls.
type Judge struct {
	provider  llm.Provider
	settings  llm.Settings
	threshold float64
	prompts   *prompt.Builder
	retryCfg  retry.Config
	log       *slog.Logger
}

// NewJudge builds a judge. The provider may differ from the reviewing
// provider; threshold is the minimum score on every criterion.
func NewJudge(provider llm.Provider, settings llm.Settings, threshold float64, prompts *prompt.Builder, retryCfg retry.Config, log *slog.Logger) *Judge {
	return &Judge{
		provider:  provider,
		settings:  settings,
		threshold: threshold,
		prompts:   prompts,
		retryCfg:  retryCfg,
		log:       log,
	}
}

type judgment struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
	Scores struct {
		Relevance     *float64 `json:"relevance"`
		Usefulness    *float64 `json:"usefulness"`
		NonRedundancy *float64 `json:"non_redundancy"`
	} `json:"scores"`
}

// Validate judges every comment against the file. Order is preserved.
func (j *Judge) Validate(ctx context.Context, comments []review.Comment, fc *review.FileChange) Outcome {
	out := Outcome{}
	for _, c := range comments {
		accepted, reason, anomaly := j.judge(ctx, c, fc)
		if anomaly {
			out.Anomalies++
			j.log.Warn("validation anomaly, accepting comment",
				"file", fc.Path, "line", c.LineNumber, "reason", reason)
		}
		if accepted {
			out.Accepted = append(out.Accepted, c)
		} else {
			out.Rejected = append(out.Rejected, Rejection{Comment: c, Reason: reason})
			j.log.Debug("comment rejected", "file", fc.Path, "line", c.LineNumber, "reason", reason)
		}
	}
	return out
}

func (j *Judge) judge(ctx context.Context, c review.Comment, fc *review.FileChange) (accepted bool, reason string, anomaly bool) {
	p := j.prompts.Validation(c, fc)

	resp, err := retry.Do(ctx, j.retryCfg, func() (string, error) {
		return j.provider.Generate(ctx, p, j.settings)
	})
	if err != nil {
		return true, "judgment call failed: " + err.Error(), true
	}

	jd, ok := parseJudgment(resp)
	if !ok {
		return true, "unparseable judgment response", true
	}

	scores := []*float64{jd.Scores.Relevance, jd.Scores.Usefulness, jd.Scores.NonRedundancy}
	for _, s := range scores {
		if s == nil || *s < 0 || *s > 1 {
			return true, "judgment score missing or out of range", true
		}
	}

	if !jd.Valid {
		return false, jd.Reason, false
	}
	for _, s := range scores {
		if *s < j.threshold {
			return false, jd.Reason, false
		}
	}
	return true, jd.Reason, false
}

// parseJudgment extracts the judgment object from possibly noisy model
// output by decoding the outermost brace span.
func parseJudgment(resp string) (judgment, bool) {
	var jd judgment

	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end <= start {
		return jd, false
	}
	if err := json.Unmarshal([]byte(resp[start:end+1]), &jd); err != nil {
		return jd, false
	}
	return jd, true
}
