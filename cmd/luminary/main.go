package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/asmal95/luminary/internal/config"
	"github.com/asmal95/luminary/internal/diffparse"
	"github.com/asmal95/luminary/internal/filter"
	"github.com/asmal95/luminary/internal/gitlab"
	"github.com/asmal95/luminary/internal/llm"
	"github.com/asmal95/luminary/internal/prompt"
	"github.com/asmal95/luminary/internal/service"
	"github.com/asmal95/luminary/internal/validate"
	"github.com/asmal95/luminary/internal/walk"
	"github.com/asmal95/luminary/pkg/review"
)

func main() {
	var cfgPath string
	var verbose bool
	var project string
	var mrIID int
	var dryRun bool
	var target string

	app := &cli.App{
		Name:  "luminary",
		Usage: "AI code review for GitLab merge requests and local changes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Value:       "",
				Usage:       "Path to a .luminary.yml config file",
				Destination: &cfgPath,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Value:       false,
				Usage:       "Enable debug logging",
				Destination: &verbose,
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "mr",
				Aliases: []string{"m"},
				Usage:   "Review a GitLab merge request",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "project",
						Aliases:     []string{"p"},
						Usage:       "Project path or numeric ID, e.g. group/repo",
						Required:    true,
						Destination: &project,
					},
					&cli.IntFlag{
						Name:        "iid",
						Aliases:     []string{"i"},
						Usage:       "Merge request IID",
						Required:    true,
						Destination: &mrIID,
					},
					&cli.BoolFlag{
						Name:        "dry-run",
						Value:       false,
						Usage:       "Print the review instead of posting it",
						Destination: &dryRun,
					},
				},
				Action: func(cCtx *cli.Context) error {
					return reviewMR(cCtx, cfgPath, verbose, project, mrIID, dryRun)
				},
			},
			{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Review a local file, directory, or diff",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "target",
						Aliases:     []string{"t"},
						Value:       "./",
						Usage:       "Path to a source file, directory, or .diff/.patch file",
						Destination: &target,
					},
				},
				Action: func(cCtx *cli.Context) error {
					return reviewLocal(cCtx, cfgPath, verbose, target)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func setup(cfgPath string, verbose bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, log, nil
}

func buildReviewer(cfg *config.Config, log *slog.Logger) (*service.FileReviewer, error) {
	provider, err := llm.New(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.BaseURL)
	if err != nil {
		return nil, err
	}

	var judge *validate.Judge
	if cfg.Validator.Enabled {
		vp, err := llm.New(cfg.ValidatorProvider(), cfg.ValidatorModel(), cfg.LLM.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("validator provider: %w", err)
		}
		settings := llm.Settings{
			Model:       cfg.ValidatorModel(),
			Temperature: 0,
			MaxTokens:   500,
			TopP:        1,
		}
		prompts := prompt.NewBuilder(cfg.Prompts.Review, cfg.Prompts.Validation)
		judge = validate.NewJudge(vp, settings, cfg.Validator.Threshold, prompts, service.RetryConfig(cfg), log)
	}

	return service.NewFileReviewer(provider, judge, cfg, log), nil
}

func reviewMR(cCtx *cli.Context, cfgPath string, verbose bool, project string, iid int, dryRun bool) error {
	cfg, log, err := setup(cfgPath, verbose)
	if err != nil {
		return err
	}
	reviewer, err := buildReviewer(cfg, log)
	if err != nil {
		return err
	}
	client, err := gitlab.NewClient(cfg.GitLab.URL, cfg.GitLab.Token, service.RetryConfig(cfg), log)
	if err != nil {
		return err
	}

	mrReviewer := service.NewMRReviewer(client, reviewer, cfg, log)
	result, err := mrReviewer.Review(cCtx.Context, project, iid, !dryRun)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Println(renderReport(result))
	}
	printStats(result)
	return nil
}

func reviewLocal(cCtx *cli.Context, cfgPath string, verbose bool, target string) error {
	cfg, log, err := setup(cfgPath, verbose)
	if err != nil {
		return err
	}
	reviewer, err := buildReviewer(cfg, log)
	if err != nil {
		return err
	}

	changes, ignoredCount, err := localChanges(cfg, target)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return fmt.Errorf("nothing to review under %s", target)
	}

	var results []review.Result
	stats := review.Stats{FilesTotal: len(changes) + ignoredCount, FilesIgnored: ignoredCount}
	for _, fc := range changes {
		stats.FilesAttempted++
		res := reviewer.ReviewFile(cCtx.Context, fc)
		if res.ErrReason != "" {
			log.Warn("file review failed", "file", fc.Path, "reason", res.ErrReason)
		} else {
			stats.FilesCompleted++
		}
		results = append(results, res)
	}

	merged := review.Merge(results)
	merged.Stats.Add(stats)
	fmt.Println(renderReport(merged))
	printStats(merged)
	return nil
}

// localChanges resolves the target into file changes. Directories are walked,
// unified diffs are parsed, and anything else is read as a single file.
func localChanges(cfg *config.Config, target string) ([]*review.FileChange, int, error) {
	stat, err := os.Stat(target)
	if err != nil {
		return nil, 0, fmt.Errorf("stat target: %w", err)
	}
	ff := filter.New(cfg.Ignore.Patterns, cfg.Ignore.BinaryFiles)

	if stat.IsDir() {
		paths, err := walk.Files(target)
		if err != nil {
			return nil, 0, fmt.Errorf("walking %s: %w", target, err)
		}
		var changes []*review.FileChange
		for _, p := range paths {
			data, err := os.ReadFile(filepath.Join(target, p))
			if err != nil {
				return nil, 0, fmt.Errorf("read %s: %w", p, err)
			}
			changes = append(changes, &review.FileChange{
				Path:        p,
				Status:      "added",
				FullContent: string(data),
				IsBinary:    strings.ContainsRune(string(data), 0),
			})
		}
		kept, ignored := ff.Split(changes)
		return kept, len(ignored), nil
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", target, err)
	}

	ext := filepath.Ext(target)
	if ext == ".diff" || ext == ".patch" || looksLikeDiff(string(data)) {
		changes, err := diffparse.ParseMulti(string(data))
		if err != nil {
			return nil, 0, err
		}
		kept, ignored := ff.Split(changes)
		return kept, len(ignored), nil
	}

	fc := &review.FileChange{
		Path:        filepath.Base(target),
		Status:      "added",
		FullContent: string(data),
	}
	return []*review.FileChange{fc}, 0, nil
}

// looksLikeDiff sniffs unified-diff input handed in without a .diff or
// .patch extension.
func looksLikeDiff(s string) bool {
	s = strings.TrimLeft(s, "\n")
	return strings.HasPrefix(s, "diff --git ") || strings.HasPrefix(s, "--- ")
}

func renderReport(result review.Result) string {
	var b strings.Builder
	b.WriteString("# Luminary Review\n")

	inline := result.InlineComments()
	if len(inline) > 0 {
		b.WriteString("\n## Comments\n")
		for _, c := range inline {
			b.WriteString("\n")
			b.WriteString(c.Markdown())
			b.WriteString("\n")
		}
	}

	var general []review.Comment
	for _, c := range result.Comments {
		if c.IsSummary {
			general = append(general, c)
		}
	}
	if len(general) > 0 {
		b.WriteString("\n## General Notes\n")
		for _, c := range general {
			b.WriteString("\n- **" + c.FilePath + "**: " + c.Text + "\n")
		}
	}

	if result.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(result.Summary)
		b.WriteString("\n")
	}

	if len(result.Comments) == 0 && result.Summary == "" {
		b.WriteString("\nNo findings.\n")
	}
	return b.String()
}

func printStats(result review.Result) {
	s := result.Stats
	fmt.Fprintf(os.Stderr, "files: %d reviewed / %d ignored / %d total", s.FilesCompleted, s.FilesIgnored, s.FilesTotal)
	if s.Truncated {
		fmt.Fprint(os.Stderr, " (truncated)")
	}
	fmt.Fprintf(os.Stderr, "\ncomments: %d generated, %d deduplicated, %d rejected, %d posted, %d failed\n",
		s.CommentsGenerated, s.CommentsDeduped, s.CommentsRejected, s.CommentsPosted, s.CommentsFailed)
	if s.ParseMisses > 0 {
		fmt.Fprintf(os.Stderr, "parse misses: %d\n", s.ParseMisses)
	}
	if s.ValidationAnomalies > 0 {
		fmt.Fprintf(os.Stderr, "validation anomalies: %d\n", s.ValidationAnomalies)
	}
}
