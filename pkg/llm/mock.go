package llm

import "context"

// MockProvider is a configurable mock for testing generation flows. Set
// the function field to control behavior in tests.
type MockProvider struct {
	// GenerateFunc is called when Generate is invoked. If nil, returns
	// empty string and nil error.
	GenerateFunc func(ctx context.Context, prompt, systemMessage, model string) (string, error)

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Call tracking for verification.
	GenerateCalls int
	LastPrompt    string
	LastSystem    string
	LastModel     string
}

// NewMockProvider creates a new mock with defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{ProviderName: "mock"}
}

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, prompt, systemMessage, model string) (string, error) {
	m.GenerateCalls++
	m.LastPrompt = prompt
	m.LastSystem = systemMessage
	m.LastModel = model
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, systemMessage, model)
	}
	return "", nil
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Ensure MockProvider implements Provider at compile time.
var _ Provider = (*MockProvider)(nil)
