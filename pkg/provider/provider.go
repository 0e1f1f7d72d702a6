package provider

import "context"

// ChatRequest contains the parameters for one chat completion.
type ChatRequest struct {
	Model    string       `json:"model"`
	Messages []Message    `json:"messages"`
	Tools    []ToolSchema `json:"tools,omitempty"`
	Stream   bool         `json:"stream,omitempty"`
}

// ChatResponse is one complete, non-streamed completion.
type ChatResponse struct {
	Content   string      `json:"content"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// ChatChunk is one element of a streamed completion. Content fragments
// arrive on intermediate chunks; tool calls and token counts arrive on the
// terminal chunk only. A chunk with Err set ends the stream.
type ChatChunk struct {
	Content          string     `json:"content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	Done             bool       `json:"done"`
	PromptTokens     int        `json:"prompt_tokens,omitempty"`
	CompletionTokens int        `json:"completion_tokens,omitempty"`
	Err              error      `json:"-"`
}

// Provider is the uniform contract for a model backend transport.
// ChatStream returns a lazy, finite, non-restartable chunk sequence; the
// channel is closed after the terminal or error chunk.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error)
	ListModels(ctx context.Context) ([]string, error)

	// Name returns the transport name, e.g. "openai".
	Name() string
}
