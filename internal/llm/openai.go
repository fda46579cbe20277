package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	openaiAPIURL     = "https://api.openai.com/v1/chat/completions"
	openrouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"
	deepseekAPIURL   = "https://api.deepseek.com/v1/chat/completions"
	vllmAPIURL       = "http://localhost:8000/v1/chat/completions"

	requestTimeout = 120 * time.Second
)

// openAICompatible serves every backend speaking the OpenAI chat-completions
// wire format; the providers differ only in endpoint, key, and defaults.
type openAICompatible struct {
	name         string
	apiURL       string
	apiKey       string
	defaultModel string
	client       *http.Client
}

func newOpenAICompatible(name, apiURL, keyEnv, defaultModel string, keyRequired bool) (Provider, error) {
	key := os.Getenv(keyEnv)
	if key == "" && keyRequired {
		return nil, fmt.Errorf("%s environment variable not set", keyEnv)
	}
	return &openAICompatible{
		name:         name,
		apiURL:       apiURL,
		apiKey:       key,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: requestTimeout},
	}, nil
}

func (p *openAICompatible) Name() string { return p.name }

func (p *openAICompatible) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	model := s.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	topP := s.TopP
	if topP <= 0 || topP > 1 {
		topP = 0.9
	}

	reqBody := chatRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: s.Temperature,
		TopP:        topP,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.name, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: p.name, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: p.name, Status: resp.StatusCode, Message: string(respBody)}
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%s: parse response: %w", p.name, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", p.name)
	}
	return result.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
