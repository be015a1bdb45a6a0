package llm

import (
	"context"
	"encoding/json"
)

// Provider grades through one LLM vendor. Implementations translate a
// Request into the vendor's native call and map the reply back, including
// its errors, into this package's types.
type Provider interface {
	// Generate runs one completion. When req.Schema is set the returned
	// Content has already passed Validate against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID names the configured model.
	ModelID() string
}

// Request is one grading prompt.
type Request struct {
	System   string
	Messages []Message

	// Schema switches the provider to its structured-output mode. Without
	// it Content is the reply text encoded as a JSON string.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the vendor default in place.
	Temperature float64
}

// Message is one turn of the prompt.
type Message struct {
	Role    Role
	Content string
}

// Role is who sent a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema the reply must satisfy. Name doubles as the
// Anthropic tool name and the OpenAI schema name, and keys the compiled
// schema cache, e.g. "answer-evaluation".
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any

	// Strict asks OpenAI-compatible providers for strict adherence, which
	// they only accept when every property is required and
	// additionalProperties is false.
	Strict bool
}

// Response is a provider's reply.
type Response struct {
	Content json.RawMessage
	Usage   Usage

	// Model is the model that actually served the call, which may be a
	// dated snapshot of ModelID.
	Model string

	// StopReason is "end", "max_tokens" or "error".
	StopReason string
}

// Usage counts tokens for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
