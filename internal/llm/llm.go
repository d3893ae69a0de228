// Package llm abstracts the external text-completion capability behind a
// single Completer interface so the categorization pipeline can run against
// Gemini, an OpenAI-style API, or a test double without changing shape.
package llm

import (
	"context"
	"time"
)

// CompletionRequest is one bounded, deterministic completion call.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int32
	Temperature float32
	Timeout     time.Duration
}

// Completer performs a single text completion. Implementations must honor
// the request timeout; callers classify transport failures, so plain
// wrapped errors are enough here.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
