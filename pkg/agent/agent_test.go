package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arief/naia/pkg/provider"
	"github.com/arief/naia/pkg/router"
	"github.com/arief/naia/pkg/session"
	"github.com/arief/naia/pkg/usage"
)

type scriptedTurn struct {
	chunks    []provider.ChatChunk
	streamErr error
}

type scriptedProvider struct {
	turns    []scriptedTurn
	requests []provider.ChatRequest
}

func (p *scriptedProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	return nil, fmt.Errorf("not used")
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatChunk, error) {
	p.requests = append(p.requests, req)
	if len(p.turns) == 0 {
		return nil, fmt.Errorf("no scripted turns left")
	}
	turn := p.turns[0]
	p.turns = p.turns[1:]
	if turn.streamErr != nil {
		return nil, turn.streamErr
	}

	ch := make(chan provider.ChatChunk, len(turn.chunks))
	for _, chunk := range turn.chunks {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"mock-model"}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type recordingGateway struct {
	schemas  []provider.ToolSchema
	results  map[string]string
	executed []provider.ToolCall
	execErr  error
}

func (g *recordingGateway) Execute(ctx context.Context, call provider.ToolCall, sessionID, model string) (string, error) {
	if g.execErr != nil {
		return "", g.execErr
	}
	g.executed = append(g.executed, call)
	if result, ok := g.results[call.Name]; ok {
		return result, nil
	}
	return "ok", nil
}

func (g *recordingGateway) Schemas() []provider.ToolSchema { return g.schemas }

type testHarness struct {
	agent    *Agent
	provider *scriptedProvider
	gateway  *recordingGateway
	sessions *session.Manager
	usage    *usage.Tracker
}

func setupAgent(t *testing.T, turns []scriptedTurn, gw *recordingGateway, maxTurns int) *testHarness {
	t.Helper()

	prov := &scriptedProvider{turns: turns}
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register("mock", prov))

	sessions := session.NewManager("mock-reasoner")
	tracker := usage.NewTracker()

	ag, err := New(Config{
		Registry:     registry,
		Router:       router.New("mock-reasoner", "mock-tooler"),
		Gateway:      gw,
		Sessions:     sessions,
		Usage:        tracker,
		SystemPrompt: "You are a helpful assistant.",
		MaxTurns:     maxTurns,
	})
	require.NoError(t, err)

	return &testHarness{agent: ag, provider: prov, gateway: gw, sessions: sessions, usage: tracker}
}

func collect(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()

	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining event stream")
		}
	}
}

func eventsOfType(events []StreamEvent, typ EventType) []StreamEvent {
	var out []StreamEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestChatStreamPlainAnswer(t *testing.T) {
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{
			{Content: "Hello"},
			{Content: ", "},
			{Content: "world"},
			{Done: true, PromptTokens: 12, CompletionTokens: 3},
		}},
	}, &recordingGateway{}, 0)

	events, err := h.agent.ChatStream(context.Background(), "s1", "u1", "hi there")
	require.NoError(t, err)
	all := collect(t, events)

	content := eventsOfType(all, EventContent)
	// Model hint plus three fragments.
	require.Len(t, content, 4)
	assert.Equal(t, "mock-reasoner", content[0].Model)
	assert.Empty(t, content[0].Content)
	assert.Equal(t, "Hello", content[1].Content)

	done := eventsOfType(all, EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, 15, done[0].Usage.TotalTokens)

	// Terminal event is last and unique.
	assert.True(t, all[len(all)-1].Terminal())
	assert.Empty(t, eventsOfType(all, EventError))
	assert.Empty(t, eventsOfType(all, EventToolStart))
	assert.Empty(t, eventsOfType(all, EventToolEnd))

	history, err := h.sessions.History("s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "Hello, world", history[1].Content)

	assert.Equal(t, 15, h.usage.ForModel("s1", "mock-reasoner").TotalTokens)
}

func TestChatStreamNativeToolCall(t *testing.T) {
	call := provider.ToolCall{ID: "call_1", Name: "echo", Arguments: `{"text":"hi"}`}
	gw := &recordingGateway{
		schemas: []provider.ToolSchema{{Name: "echo", Parameters: map[string]interface{}{"type": "object"}}},
		results: map[string]string{"echo": "hi"},
	}
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{
			{Done: true, ToolCalls: []provider.ToolCall{call}, PromptTokens: 10, CompletionTokens: 5},
		}},
		{chunks: []provider.ChatChunk{
			{Content: "It said hi."},
			{Done: true, PromptTokens: 20, CompletionTokens: 4},
		}},
	}, gw, 0)

	events, err := h.agent.ChatStream(context.Background(), "s1", "u1", "run the echo tool")
	require.NoError(t, err)
	all := collect(t, events)

	starts := eventsOfType(all, EventToolStart)
	ends := eventsOfType(all, EventToolEnd)
	require.Len(t, starts, 1)
	require.Len(t, ends, 1)
	assert.Equal(t, "echo", starts[0].ToolCall.Name)
	assert.Equal(t, "hi", ends[0].ToolResult)

	require.Len(t, eventsOfType(all, EventDone), 1)
	assert.True(t, all[len(all)-1].Terminal())

	require.Len(t, gw.executed, 1)
	assert.Equal(t, "call_1", gw.executed[0].ID)

	history, err := h.sessions.History("s1")
	require.NoError(t, err)
	// user, assistant with call, tool result, final assistant.
	require.Len(t, history, 4)
	assert.Equal(t, "tool", history[2].Role)
	assert.Equal(t, "call_1", history[2].ToolCallID)
	assert.Equal(t, "It said hi.", history[3].Content)

	// Usage aggregates across both turns.
	done := eventsOfType(all, EventDone)[0]
	assert.Equal(t, 39, done.Usage.TotalTokens)
}

func TestChatStreamParsedToolCallFallback(t *testing.T) {
	gw := &recordingGateway{
		schemas: []provider.ToolSchema{{Name: "lookup", Parameters: map[string]interface{}{"type": "object"}}},
		results: map[string]string{"lookup": "42"},
	}
	body := `{"tool_calls": [{"name": "lookup", "arguments": {"q": "answer"}}]}`
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{
			{Content: "Let me check.\n" + body},
			{Done: true},
		}},
		{chunks: []provider.ChatChunk{
			{Content: "The answer is 42."},
			{Done: true},
		}},
	}, gw, 0)

	events, err := h.agent.ChatStream(context.Background(), "s1", "u1", "look up the answer")
	require.NoError(t, err)
	all := collect(t, events)

	require.Len(t, eventsOfType(all, EventToolStart), 1)
	require.Len(t, gw.executed, 1)
	assert.Equal(t, "lookup", gw.executed[0].Name)

	history, err := h.sessions.History("s1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	// The convention JSON is stripped from the stored assistant text.
	assert.Equal(t, "Let me check.", history[1].Content)
	require.Len(t, history[1].ToolCalls, 1)
}

func TestChatStreamNativeCallsSuppressParser(t *testing.T) {
	call := provider.ToolCall{ID: "call_n", Name: "echo", Arguments: `{}`}
	gw := &recordingGateway{
		schemas: []provider.ToolSchema{{Name: "echo", Parameters: map[string]interface{}{"type": "object"}}},
	}
	// Content also contains an envelope, but native metadata wins.
	body := `{"tool_calls": [{"name": "echo", "arguments": {}}]}`
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{
			{Content: body},
			{Done: true, ToolCalls: []provider.ToolCall{call}},
		}},
		{chunks: []provider.ChatChunk{
			{Content: "done"},
			{Done: true},
		}},
	}, gw, 0)

	events, err := h.agent.ChatStream(context.Background(), "s1", "u1", "run echo")
	require.NoError(t, err)
	all := collect(t, events)

	starts := eventsOfType(all, EventToolStart)
	require.Len(t, starts, 1)
	assert.Equal(t, "call_n", starts[0].ToolCall.ID)

	history, err := h.sessions.History("s1")
	require.NoError(t, err)
	// Content kept verbatim because the parser never ran.
	assert.Equal(t, body, history[1].Content)
}

func TestChatStreamTurnBudgetExhausted(t *testing.T) {
	call := provider.ToolCall{ID: "call_1", Name: "echo", Arguments: `{}`}
	gw := &recordingGateway{
		schemas: []provider.ToolSchema{{Name: "echo", Parameters: map[string]interface{}{"type": "object"}}},
	}
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{
			{Done: true, ToolCalls: []provider.ToolCall{call}},
		}},
	}, gw, 1)

	events, err := h.agent.ChatStream(context.Background(), "s1", "u1", "run echo")
	require.NoError(t, err)
	all := collect(t, events)

	// The single tool round still ran before the budget tripped.
	require.Len(t, gw.executed, 1)

	errs := eventsOfType(all, EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Err.Error(), "turn budget")
	assert.Empty(t, eventsOfType(all, EventDone))
	assert.True(t, all[len(all)-1].Terminal())
}

func TestChatStreamTransportFailure(t *testing.T) {
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{
			{Content: "partial "},
			{Err: errors.New("connection reset")},
		}},
	}, &recordingGateway{}, 0)

	events, err := h.agent.ChatStream(context.Background(), "s1", "u1", "hi")
	require.NoError(t, err)
	all := collect(t, events)

	errs := eventsOfType(all, EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Err.Error(), "connection reset")
	assert.Empty(t, eventsOfType(all, EventDone))

	// Partial text never reaches the history.
	history, err := h.sessions.History("s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "user", history[0].Role)
}

func TestChatStreamRequestFailure(t *testing.T) {
	h := setupAgent(t, []scriptedTurn{
		{streamErr: errors.New("dial tcp: refused")},
	}, &recordingGateway{}, 0)

	events, err := h.agent.ChatStream(context.Background(), "s1", "u1", "hi")
	require.NoError(t, err)
	all := collect(t, events)

	errs := eventsOfType(all, EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Err.Error(), "refused")
}

func TestChatStreamRejectsEmptyContent(t *testing.T) {
	h := setupAgent(t, nil, &recordingGateway{}, 0)

	_, err := h.agent.ChatStream(context.Background(), "s1", "u1", "   ")
	assert.Error(t, err)
}

func TestChatBuffersStream(t *testing.T) {
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{
			{Content: "Hello"},
			{Content: " again"},
			{Done: true, PromptTokens: 7, CompletionTokens: 2},
		}},
	}, &recordingGateway{}, 0)

	resp, err := h.agent.Chat(context.Background(), "s1", "u1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello again", resp.Content)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
}

func TestChatSurfacesErrors(t *testing.T) {
	h := setupAgent(t, []scriptedTurn{
		{streamErr: errors.New("backend down")},
	}, &recordingGateway{}, 0)

	_, err := h.agent.Chat(context.Background(), "s1", "u1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestSystemPromptPrepended(t *testing.T) {
	h := setupAgent(t, []scriptedTurn{
		{chunks: []provider.ChatChunk{{Content: "ok"}, {Done: true}}},
	}, &recordingGateway{}, 0)

	_, err := h.agent.Chat(context.Background(), "s1", "u1", "hi")
	require.NoError(t, err)

	require.Len(t, h.provider.requests, 1)
	messages := h.provider.requests[0].Messages
	require.NotEmpty(t, messages)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", messages[0].Content)
}

func TestToolsOmittedWhenUnsupported(t *testing.T) {
	gw := &recordingGateway{
		schemas: []provider.ToolSchema{{Name: "echo", Parameters: map[string]interface{}{"type": "object"}}},
	}
	prov := &scriptedProvider{turns: []scriptedTurn{
		{chunks: []provider.ChatChunk{{Content: "ok"}, {Done: true}}},
	}}
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register("mock", prov))

	ag, err := New(Config{
		Registry:      registry,
		Router:        router.New("mock-reasoner", "mock-tooler"),
		Gateway:       gw,
		Sessions:      session.NewManager("mock-reasoner"),
		Usage:         usage.NewTracker(),
		SupportsTools: func(model string) bool { return false },
	})
	require.NoError(t, err)

	_, err = ag.Chat(context.Background(), "s1", "u1", "hello")
	require.NoError(t, err)

	require.Len(t, prov.requests, 1)
	assert.Empty(t, prov.requests[0].Tools)
}
