package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider for the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a new OpenAI transport.
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{
		client: openai.NewClient(clientOpts...),
	}
}

// Name returns the transport name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Chat makes a one-shot chat completion call.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]

	toolCalls := []ToolCall{}
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &ChatResponse{
		Content:   choice.Message.Content,
		ToolCalls: toolCalls,
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.PromptTokens),
			OutputTokens: int(response.Usage.CompletionTokens),
			TotalTokens:  int(response.Usage.TotalTokens),
		},
	}, nil
}

// streamedCall aggregates partial tool call deltas until the stream ends.
type streamedCall struct {
	id   string
	name string
	args string
}

// ChatStream makes a streaming chat completion call. Content fragments are
// forwarded as they arrive; tool calls and token counts are reported on the
// terminal chunk.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	out := make(chan ChatChunk, 16)

	go func() {
		defer close(out)

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		agg := map[int64]*streamedCall{}
		order := []int64{}
		var promptTokens, completionTokens int

		for stream.Next() {
			ck := stream.Current()

			if ck.Usage.TotalTokens > 0 {
				promptTokens = int(ck.Usage.PromptTokens)
				completionTokens = int(ck.Usage.CompletionTokens)
			}

			for _, choice := range ck.Choices {
				if choice.Delta.Content != "" {
					out <- ChatChunk{Content: choice.Delta.Content}
				}
				for _, tc := range choice.Delta.ToolCalls {
					sc, ok := agg[tc.Index]
					if !ok {
						sc = &streamedCall{}
						agg[tc.Index] = sc
						order = append(order, tc.Index)
					}
					if tc.ID != "" {
						sc.id = tc.ID
					}
					if tc.Function.Name != "" {
						sc.name = tc.Function.Name
					}
					sc.args += tc.Function.Arguments
				}
			}
		}

		if err := stream.Err(); err != nil {
			out <- ChatChunk{Err: fmt.Errorf("openai stream: %w", err)}
			return
		}

		toolCalls := []ToolCall{}
		for _, idx := range order {
			sc := agg[idx]
			toolCalls = append(toolCalls, ToolCall{
				ID:        sc.id,
				Name:      sc.name,
				Arguments: sc.args,
			})
		}

		out <- ChatChunk{
			Done:             true,
			ToolCalls:        toolCalls,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		}
	}()

	return out, nil
}

// ListModels returns the model names available on the account.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	names := []string{}
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

// buildParams converts a ChatRequest into OpenAI request parameters.
func (p *OpenAIProvider) buildParams(req ChatRequest) (openai.ChatCompletionNewParams, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				toolCalls := []openai.ChatCompletionMessageToolCall{}
				for _, tc := range msg.ToolCalls {
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					})
				}
				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	if len(req.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, schema := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        schema.Name,
					Description: openai.String(schema.Description),
					Parameters:  openai.FunctionParameters(schema.Parameters),
				},
			})
		}
		params.Tools = tools
	}

	return params, nil
}
