// Package config loads and validates the .luminary.yml configuration. The
// loaded value is immutable by convention: it is built once at startup and
// passed by reference into every component that needs it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigError reports an invalid configuration value. It is fatal at
// startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

type LLM struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p"`
}

type Validator struct {
	Enabled bool `yaml:"enabled"`
	// Provider and Model default to the main LLM settings when empty.
	Provider  string  `yaml:"provider"`
	Model     string  `yaml:"model"`
	Threshold float64 `yaml:"threshold"`
}

type GitLab struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type Ignore struct {
	Patterns    []string `yaml:"patterns"`
	BinaryFiles bool     `yaml:"binary_files"`
}

type Limits struct {
	MaxFiles int `yaml:"max_files"` // 0 = unlimited
	MaxLines int `yaml:"max_lines"` // total changed lines across the MR; 0 = unlimited

	// MaxChunkLines triggers chunking when a file's content exceeds it;
	// consecutive chunks share ChunkOverlapLines lines.
	MaxChunkLines     int `yaml:"max_chunk_lines"`
	ChunkOverlapLines int `yaml:"chunk_overlap_lines"`

	// DedupeSimilarity is the token-overlap threshold for collapsing
	// duplicate comments.
	DedupeSimilarity float64 `yaml:"dedupe_similarity"`
}

type Comments struct {
	Mode string `yaml:"mode"` // inline, summary, both
}

type Prompts struct {
	Review     string `yaml:"review"`
	Validation string `yaml:"validation"`
}

type Retry struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelay      float64 `yaml:"initial_delay"` // seconds
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	Jitter            float64 `yaml:"jitter"`
}

type Config struct {
	LLM       LLM       `yaml:"llm"`
	Validator Validator `yaml:"validator"`
	GitLab    GitLab    `yaml:"gitlab"`
	Ignore    Ignore    `yaml:"ignore"`
	Limits    Limits    `yaml:"limits"`
	Comments  Comments  `yaml:"comments"`
	Prompts   Prompts   `yaml:"prompts"`
	Retry     Retry     `yaml:"retry"`
}

// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		LLM: LLM{
			Provider:    "mock",
			Model:       "anthropic/claude-3.5-sonnet",
			Temperature: 0.7,
			MaxTokens:   2000,
			TopP:        0.9,
		},
		Validator: Validator{
			Enabled:   false,
			Threshold: 0.7,
		},
		Ignore: Ignore{
			Patterns: []string{
				"*.lock",
				"*.min.js",
				"*.min.css",
				"*.map",
				"node_modules/**",
				".git/**",
			},
			BinaryFiles: true,
		},
		Limits: Limits{
			MaxChunkLines:     500,
			ChunkOverlapLines: 100,
			DedupeSimilarity:  0.8,
		},
		Comments: Comments{Mode: "both"},
		Retry: Retry{
			MaxAttempts:       3,
			InitialDelay:      1.0,
			BackoffMultiplier: 2.0,
			Jitter:            0.1,
		},
	}
}

// Load reads path over the defaults. An empty path loads .luminary.yml from
// the working directory when present, defaults otherwise. GitLab URL and
// token fall back to the GITLAB_URL and GITLAB_TOKEN environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = ".luminary.yml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err != nil && explicit:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.GitLab.URL == "" {
		cfg.GitLab.URL = os.Getenv("GITLAB_URL")
	}
	if cfg.GitLab.URL == "" {
		cfg.GitLab.URL = "https://gitlab.com"
	}
	if cfg.GitLab.Token == "" {
		cfg.GitLab.Token = os.Getenv("GITLAB_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return &ConfigError{Field: "llm.temperature", Reason: "must be between 0.0 and 2.0"}
	}
	if c.LLM.TopP <= 0 || c.LLM.TopP > 1 {
		return &ConfigError{Field: "llm.top_p", Reason: "must be between 0.0 and 1.0"}
	}
	if c.LLM.MaxTokens <= 0 {
		return &ConfigError{Field: "llm.max_tokens", Reason: "must be positive"}
	}
	if c.Validator.Threshold < 0 || c.Validator.Threshold > 1 {
		return &ConfigError{Field: "validator.threshold", Reason: "must be between 0.0 and 1.0"}
	}
	if c.Limits.MaxChunkLines <= 0 {
		return &ConfigError{Field: "limits.max_chunk_lines", Reason: "must be positive"}
	}
	if c.Limits.ChunkOverlapLines < 0 || c.Limits.ChunkOverlapLines >= c.Limits.MaxChunkLines {
		return &ConfigError{Field: "limits.chunk_overlap_lines", Reason: "must be smaller than max_chunk_lines"}
	}
	if c.Limits.DedupeSimilarity < 0 || c.Limits.DedupeSimilarity > 1 {
		return &ConfigError{Field: "limits.dedupe_similarity", Reason: "must be between 0.0 and 1.0"}
	}
	if c.Limits.MaxFiles < 0 || c.Limits.MaxLines < 0 {
		return &ConfigError{Field: "limits", Reason: "max_files and max_lines must not be negative"}
	}
	switch c.Comments.Mode {
	case "inline", "summary", "both":
	default:
		return &ConfigError{Field: "comments.mode", Reason: "must be inline, summary, or both"}
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return &ConfigError{Field: "retry.max_attempts", Reason: "must be between 1 and 10"}
	}
	if c.Retry.InitialDelay < 0 {
		return &ConfigError{Field: "retry.initial_delay", Reason: "must not be negative"}
	}
	if c.Retry.BackoffMultiplier < 1 || c.Retry.BackoffMultiplier > 10 {
		return &ConfigError{Field: "retry.backoff_multiplier", Reason: "must be between 1.0 and 10.0"}
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return &ConfigError{Field: "retry.jitter", Reason: "must be between 0.0 and 1.0"}
	}
	return nil
}

// ValidatorProvider resolves the judgment-call provider name, defaulting to
// the main reviewer provider.
func (c *Config) ValidatorProvider() string {
	if c.Validator.Provider != "" {
		return c.Validator.Provider
	}
	return c.LLM.Provider
}

// ValidatorModel resolves the judgment-call model, defaulting to the main
// reviewer model.
func (c *Config) ValidatorModel() string {
	if c.Validator.Model != "" {
		return c.Validator.Model
	}
	return c.LLM.Model
}
