// Package modeladapter presents the foundation-model provider as an opaque
// complete()/embed() endpoint, with a fixed error taxonomy, retry with
// backoff, a bounded connection pool, per-call deadlines, and token
// accounting — independent of which SDK backs it.
package modeladapter

import "context"

// CompletionRequest carries everything a backend needs to produce a
// justification, summary, or answer. SystemPrompt and Context are kept
// separate so backends can place retrieved chunks wherever their prompt
// format expects them.
type CompletionRequest struct {
	SystemPrompt string
	Context      []string
	UserPrompt   string
	MaxTokens    int64
}

// CompletionResult is the backend-agnostic response to a Complete call.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Backend is implemented by each concrete SDK wrapper (Anthropic, OpenAI).
// Backends return only *Error values from this package so Adapter's retry
// loop and callers never need provider-specific error inspection.
type Backend interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Adapter is the handle every handler and the retrieval index hold. It wraps
// a Backend with pooling, retry, deadlines, and accounting.
type Adapter interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Usage() Usage
}

// Usage is a running total of token accounting across all calls made
// through an Adapter, read with Adapter.Usage.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	CompleteCalls    int64
	EmbedCalls       int64
}
