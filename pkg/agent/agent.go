// Package agent implements the conversation orchestrator: the loop that
// routes each turn to a model, streams the completion, dispatches tool
// calls through the gateway, and feeds results back until the model
// answers in plain text or the turn budget runs out.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arief/naia/internal/observability"
	"github.com/arief/naia/pkg/parser"
	"github.com/arief/naia/pkg/provider"
	"github.com/arief/naia/pkg/router"
	"github.com/arief/naia/pkg/session"
	"github.com/arief/naia/pkg/tools"
	"github.com/arief/naia/pkg/usage"
)

// DefaultMaxTurns bounds the route-request-dispatch loop of one
// exchange. Each tool round consumes one turn.
const DefaultMaxTurns = 8

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry *provider.Registry
	Router   *router.Router
	Gateway  tools.Gateway
	Sessions *session.Manager
	Usage    *usage.Tracker

	// SystemPrompt is prepended to every request when set.
	SystemPrompt string

	// MaxTurns caps model round-trips per exchange. Zero means
	// DefaultMaxTurns.
	MaxTurns int

	// SupportsTools reports whether a model may receive tool
	// definitions. Nil means every model may.
	SupportsTools func(model string) bool
}

// Agent runs conversational exchanges against the configured backends.
type Agent struct {
	registry      *provider.Registry
	router        *router.Router
	gateway       tools.Gateway
	sessions      *session.Manager
	usage         *usage.Tracker
	systemPrompt  string
	maxTurns      int
	supportsTools func(string) bool
}

// New creates an orchestrator from cfg.
func New(cfg Config) (*Agent, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Usage == nil {
		return nil, fmt.Errorf("usage tracker is required")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	supportsTools := cfg.SupportsTools
	if supportsTools == nil {
		supportsTools = func(string) bool { return true }
	}

	return &Agent{
		registry:      cfg.Registry,
		router:        cfg.Router,
		gateway:       cfg.Gateway,
		sessions:      cfg.Sessions,
		usage:         cfg.Usage,
		systemPrompt:  cfg.SystemPrompt,
		maxTurns:      maxTurns,
		supportsTools: supportsTools,
	}, nil
}

// ChatStream runs one exchange and returns its event stream. The
// channel closes after exactly one terminal event. The returned error
// covers input problems only; everything after acceptance arrives as
// events.
func (a *Agent) ChatStream(ctx context.Context, sessionID, userID, content string) (<-chan StreamEvent, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content must not be empty")
	}
	if _, err := a.sessions.GetOrCreate(sessionID, userID); err != nil {
		return nil, err
	}
	if err := a.sessions.Append(sessionID, provider.Message{Role: "user", Content: content}); err != nil {
		return nil, err
	}

	observability.SetActiveSessions(a.sessions.Count())

	ch := make(chan StreamEvent, 16)
	go a.run(ctx, sessionID, ch)
	return ch, nil
}

// Response is the buffered form of one exchange.
type Response struct {
	Content string              `json:"content"`
	Usage   provider.TokenUsage `json:"usage"`
}

// Chat runs one exchange and blocks until it finishes, concatenating
// the streamed text. It is the same loop as ChatStream, drained.
func (a *Agent) Chat(ctx context.Context, sessionID, userID, content string) (*Response, error) {
	events, err := a.ChatStream(ctx, sessionID, userID, content)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	resp := &Response{}
	for ev := range events {
		switch ev.Type {
		case EventContent:
			buf.WriteString(ev.Content)
		case EventDone:
			if ev.Usage != nil {
				resp.Usage = *ev.Usage
			}
		case EventError:
			return nil, ev.Err
		}
	}
	resp.Content = buf.String()
	return resp, nil
}

// run executes the turn loop. It owns ch and always closes it after
// the terminal event.
func (a *Agent) run(ctx context.Context, sessionID string, ch chan<- StreamEvent) {
	defer close(ch)

	var exchangeUsage provider.TokenUsage

	for turn := 0; turn < a.maxTurns; turn++ {
		history, err := a.sessions.History(sessionID)
		if err != nil {
			a.emit(ctx, ch, errorEvent(err))
			return
		}

		schemas := a.gateway.Schemas()
		decision := a.router.Route(history, schemas)
		observability.RecordRoute(decision.Model, decision.Reason)
		log.Debug().
			Str("session_id", sessionID).
			Str("model", decision.Model).
			Str("reason", decision.Reason).
			Int("turn", turn).
			Msg("Routed turn")

		// Model hint so consumers can show which backend is answering.
		if !a.emit(ctx, ch, contentEvent("", decision.Model)) {
			return
		}

		backend, err := a.registry.Resolve(decision.Model)
		if err != nil {
			a.emit(ctx, ch, errorEvent(err))
			return
		}

		req := provider.ChatRequest{
			Model:    decision.Model,
			Messages: a.withSystem(history),
			Stream:   true,
		}
		if decision.UseTools && a.supportsTools(decision.Model) && len(schemas) > 0 {
			req.Tools = schemas
		}

		started := time.Now()
		calls, text, turnUsage, err := a.streamTurn(ctx, backend, req, ch)
		if err != nil {
			observability.RecordTurn(decision.Model, time.Since(started), false)
			// Partial text is discarded; the history keeps only
			// finalized assistant messages.
			a.emit(ctx, ch, errorEvent(err))
			return
		}

		// Parsed conventions apply only when the transport reported no
		// native tool calls; native metadata always wins.
		if len(calls) == 0 {
			parsed := parser.Parse(text, toolNames(schemas))
			text = parsed.Content
			calls = parsed.ToolCalls
		}

		a.usage.Record(sessionID, decision.Model, turnUsage)
		observability.RecordTokens(decision.Model, turnUsage.InputTokens, turnUsage.OutputTokens)
		exchangeUsage.Add(turnUsage)

		if err := a.sessions.Append(sessionID, provider.Message{
			Role:      "assistant",
			Content:   text,
			ToolCalls: calls,
		}); err != nil {
			a.emit(ctx, ch, errorEvent(err))
			return
		}
		observability.RecordTurn(decision.Model, time.Since(started), true)

		if len(calls) == 0 {
			a.emit(ctx, ch, doneEvent(exchangeUsage))
			return
		}

		if !a.dispatchTools(ctx, sessionID, decision.Model, calls, ch) {
			return
		}
	}

	a.emit(ctx, ch, errorEvent(fmt.Errorf("turn budget of %d exhausted before the model produced a final answer", a.maxTurns)))
}

// streamTurn consumes one completion stream, forwarding text fragments
// as they arrive. It returns the terminal chunk's tool calls, the full
// assistant text, and the turn's token usage.
func (a *Agent) streamTurn(ctx context.Context, backend provider.Provider, req provider.ChatRequest, ch chan<- StreamEvent) ([]provider.ToolCall, string, provider.TokenUsage, error) {
	stream, err := backend.ChatStream(ctx, req)
	if err != nil {
		return nil, "", provider.TokenUsage{}, fmt.Errorf("chat request failed: %w", err)
	}

	var buf strings.Builder
	var calls []provider.ToolCall
	var turnUsage provider.TokenUsage

	for chunk := range stream {
		if chunk.Err != nil {
			return nil, "", provider.TokenUsage{}, fmt.Errorf("stream failed: %w", chunk.Err)
		}
		if chunk.Content != "" {
			buf.WriteString(chunk.Content)
			if !a.emit(ctx, ch, contentEvent(chunk.Content, "")) {
				return nil, "", provider.TokenUsage{}, ctx.Err()
			}
		}
		if chunk.Done {
			calls = chunk.ToolCalls
			turnUsage = provider.TokenUsage{
				InputTokens:  chunk.PromptTokens,
				OutputTokens: chunk.CompletionTokens,
				TotalTokens:  chunk.PromptTokens + chunk.CompletionTokens,
			}
		}
	}

	if ctx.Err() != nil {
		return nil, "", provider.TokenUsage{}, ctx.Err()
	}
	return calls, buf.String(), turnUsage, nil
}

// dispatchTools executes calls strictly in order, appending one tool
// message per call. It returns false when the exchange must stop.
func (a *Agent) dispatchTools(ctx context.Context, sessionID, model string, calls []provider.ToolCall, ch chan<- StreamEvent) bool {
	for _, call := range calls {
		if !a.emit(ctx, ch, toolStartEvent(call)) {
			return false
		}

		started := time.Now()
		result, err := a.gateway.Execute(ctx, call, sessionID, model)
		if err != nil {
			observability.RecordToolExecution(call.Name, time.Since(started), false)
			a.emit(ctx, ch, errorEvent(fmt.Errorf("tool dispatch aborted: %w", err)))
			return false
		}
		observability.RecordToolExecution(call.Name, time.Since(started), true)

		log.Debug().
			Str("session_id", sessionID).
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Msg("Tool executed")

		if !a.emit(ctx, ch, toolEndEvent(call, result)) {
			return false
		}

		if err := a.sessions.Append(sessionID, provider.Message{
			Role:       "tool",
			Content:    result,
			ToolCallID: call.ID,
			Name:       call.Name,
		}); err != nil {
			a.emit(ctx, ch, errorEvent(err))
			return false
		}
	}
	return true
}

// emit delivers ev unless the caller has gone away.
func (a *Agent) emit(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	observability.RecordStreamEvent(string(ev.Type))
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Agent) withSystem(history []provider.Message) []provider.Message {
	if a.systemPrompt == "" {
		return history
	}
	if len(history) > 0 && history[0].Role == "system" {
		return history
	}
	messages := make([]provider.Message, 0, len(history)+1)
	messages = append(messages, provider.Message{Role: "system", Content: a.systemPrompt})
	return append(messages, history...)
}

func toolNames(schemas []provider.ToolSchema) []string {
	names := make([]string, 0, len(schemas))
	for _, schema := range schemas {
		names = append(names, schema.Name)
	}
	return names
}
