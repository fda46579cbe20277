// Package llm defines the provider interface and implementations for LLM
// interaction.
package llm

import (
	"context"
	"fmt"
	"sort"
)

// Settings configures a single generation request.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Provider generates text from a prompt using an LLM backend.
type Provider interface {
	Generate(ctx context.Context, prompt string, settings Settings) (string, error)
	Name() string
}

// ProviderError is a transport-level failure from an LLM backend. Status 0
// means the request never produced an HTTP response.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: API returned %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Transient reports whether the failure is worth retrying: rate limiting,
// server-side errors, and network-level failures.
func (e *ProviderError) Transient() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

type factory func(model, baseURL string) (Provider, error)

var registry = map[string]factory{
	"mock": func(model, _ string) (Provider, error) {
		return NewMock(model), nil
	},
	"openai": func(model, baseURL string) (Provider, error) {
		return newOpenAICompatible("openai", defaultURL(baseURL, openaiAPIURL), "OPENAI_API_KEY", model, true)
	},
	"openrouter": func(model, baseURL string) (Provider, error) {
		return newOpenAICompatible("openrouter", defaultURL(baseURL, openrouterAPIURL), "OPENROUTER_API_KEY", model, true)
	},
	"deepseek": func(model, baseURL string) (Provider, error) {
		return newOpenAICompatible("deepseek", defaultURL(baseURL, deepseekAPIURL), "DEEPSEEK_API_KEY", model, true)
	},
	"vllm": func(model, baseURL string) (Provider, error) {
		return newOpenAICompatible("vllm", defaultURL(baseURL, vllmAPIURL), "VLLM_API_KEY", model, false)
	},
}

// New builds a provider by registry name. baseURL overrides the provider's
// default endpoint when non-empty.
func New(name, model, baseURL string) (Provider, error) {
	f, ok := registry[name]
	if !ok {
		names := make([]string, 0, len(registry))
		for n := range registry {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown LLM provider %q (available: %v)", name, names)
	}
	return f(model, baseURL)
}

func defaultURL(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
