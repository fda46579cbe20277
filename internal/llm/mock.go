package llm

import "context"

const mockReviewResponse = `{"comments": [{"file": "example", "line": 1, "message": "Mock review: consider adding a doc comment.", "suggestion": null}], "summary": "Mock review summary."}`

// MockProvider returns canned responses without network access. Usable both
// as the default provider for dry runs and as a test double.
type MockProvider struct {
	model string

	// Response and Err, when set, override the canned output.
	Response string
	Err      error

	// Prompts records every prompt seen, for assertions.
	Prompts []string
}

// NewMock creates a mock provider.
func NewMock(model string) *MockProvider {
	return &MockProvider{model: model}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(_ context.Context, prompt string, _ Settings) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return mockReviewResponse, nil
}
