package agent

import (
	"github.com/arief/naia/pkg/provider"
)

// EventType discriminates stream events.
type EventType string

const (
	// EventContent carries a text fragment, or only a model hint when
	// Content is empty.
	EventContent EventType = "content"

	// EventToolStart announces that a tool call is about to execute.
	EventToolStart EventType = "tool_start"

	// EventToolEnd carries a finished tool call and its result text.
	EventToolEnd EventType = "tool_end"

	// EventDone terminates a successful exchange.
	EventDone EventType = "done"

	// EventError terminates a failed exchange.
	EventError EventType = "error"
)

// StreamEvent is one element of the event stream an exchange emits.
// Exactly one terminal event (done or error) ends every stream, and
// nothing follows it.
type StreamEvent struct {
	Type       EventType            `json:"type"`
	Content    string               `json:"content,omitempty"`
	Model      string               `json:"model,omitempty"`
	ToolCall   *provider.ToolCall   `json:"tool_call,omitempty"`
	ToolResult string               `json:"tool_result,omitempty"`
	Usage      *provider.TokenUsage `json:"usage,omitempty"`
	Err        error                `json:"-"`
}

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func contentEvent(text, model string) StreamEvent {
	return StreamEvent{Type: EventContent, Content: text, Model: model}
}

func toolStartEvent(call provider.ToolCall) StreamEvent {
	return StreamEvent{Type: EventToolStart, ToolCall: &call}
}

func toolEndEvent(call provider.ToolCall, result string) StreamEvent {
	return StreamEvent{Type: EventToolEnd, ToolCall: &call, ToolResult: result}
}

func doneEvent(usage provider.TokenUsage) StreamEvent {
	return StreamEvent{Type: EventDone, Usage: &usage}
}

func errorEvent(err error) StreamEvent {
	return StreamEvent{Type: EventError, Err: err, Content: err.Error()}
}
