package mock

import "context"

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns Response.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Response is the canned completion returned when GenerateFunc is nil.
	Response string

	// Prompts records every prompt passed to Generate.
	Prompts []string

	callCount int
}

// NewMockGenerator creates a mock generator returning a fixed response.
// Returns the concrete type to allow test assertions.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Response: "mock answer"}
}

// Generate records the prompt and returns the configured completion.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	m.Prompts = append(m.Prompts, prompt)

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return m.Response, nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears recorded prompts, call count, and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.Prompts = nil
	m.GenerateFunc = nil
}
