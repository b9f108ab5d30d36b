// Package llm defines the provider-agnostic interface for text completion.
package llm

import "context"

// Provider is the abstraction over any text-completion backend
// (Anthropic, OpenAI, Gemini, Ollama, etc.).
type Provider interface {
	// Complete sends a system/user prompt pair and returns the raw completion.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the provider identifier (e.g. "anthropic").
	Name() string
}

// Request is a single-turn completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int // 0 = provider default.
}

// Response is the completion result.
type Response struct {
	Text       string
	StopReason string // "end_turn", "max_tokens", or provider-specific.
	Usage      Usage
}

// Usage tracks token consumption for cost accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
