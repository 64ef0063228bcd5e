// Package llm provides the AI provider capability: vendor clients, the
// model-id router, error classification, and JSON extraction from raw
// completions.
package llm

import "context"

// Provider generates a raw completion for a prompt. Implementations wrap a
// single vendor SDK; the Router composes them and adds the timeout/retry
// envelope. Use this interface for dependency injection to enable mocking
// in tests.
type Provider interface {
	// Generate returns the raw completion text.
	Generate(ctx context.Context, prompt, systemMessage, model string) (string, error)

	// Name identifies the backing vendor for logging.
	Name() string
}
