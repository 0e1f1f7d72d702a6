// Package router selects which backend model handles a turn. Routing is a
// cheap heuristic re-evaluated on every turn, not a classifier: false
// positives are harmless because the tool-calling model can still answer
// directly, and capability changes take effect immediately.
package router

import (
	"strings"

	"github.com/arief/naia/pkg/provider"
)

// Decision is a pure routing value, recomputed every turn and never
// persisted.
type Decision struct {
	Model    string `json:"model"`
	Reason   string `json:"reason"`
	UseTools bool   `json:"use_tools"`
}

// Router chooses between the two logical model roles.
type Router struct {
	reasoningModel string
	toolModel      string
}

// New creates a router with the configured physical model names for the
// reasoning and tool-calling roles.
func New(reasoningModel, toolModel string) *Router {
	return &Router{
		reasoningModel: reasoningModel,
		toolModel:      toolModel,
	}
}

// taskKeywords is the task-shape vocabulary for rule 3. Broad on purpose:
// a missed match only costs one indirection through the reasoning model.
var taskKeywords = []string{
	"file", "read", "write", "edit", "create", "delete", "save", "open",
	"directory", "folder", "list",
	"run", "execute", "command", "shell", "script", "install",
	"search", "fetch", "download", "browse", "web", "url", "http", "scrape",
	"look up", "analyze", "check", "find", "count",
}

// Route decides the model, tool-offer policy, and reason for the next
// request. Rules are evaluated in order; first match wins.
func (r *Router) Route(messages []provider.Message, availableTools []provider.ToolSchema) Decision {
	if len(messages) > 0 && messages[len(messages)-1].Role == "tool" {
		return Decision{
			Model:    r.reasoningModel,
			Reason:   "tool results pending synthesis",
			UseTools: true,
		}
	}

	if hasUnresolvedToolCalls(messages) {
		return Decision{
			Model:    r.toolModel,
			Reason:   "unresolved tool calls",
			UseTools: true,
		}
	}

	if matchesTaskShape(lastUserContent(messages), availableTools) {
		return Decision{
			Model:    r.toolModel,
			Reason:   "task-shaped request",
			UseTools: true,
		}
	}

	return Decision{
		Model:    r.reasoningModel,
		Reason:   "default",
		UseTools: len(availableTools) > 0,
	}
}

// hasUnresolvedToolCalls reports whether the most recent assistant message
// carries tool calls that no later tool message has answered.
func hasUnresolvedToolCalls(messages []provider.Message) bool {
	resolved := map[string]bool{}

	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == "tool" {
			resolved[msg.ToolCallID] = true
			continue
		}
		if msg.Role != "assistant" {
			continue
		}
		for _, call := range msg.ToolCalls {
			if !resolved[call.ID] {
				return true
			}
		}
		return false
	}

	return false
}

func lastUserContent(messages []provider.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// matchesTaskShape reports whether content looks like a task needing tools:
// either a vocabulary hit or a literal tool name.
func matchesTaskShape(content string, availableTools []provider.ToolSchema) bool {
	if content == "" {
		return false
	}
	lowered := strings.ToLower(content)

	for _, keyword := range taskKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}

	for _, schema := range availableTools {
		if schema.Name != "" && strings.Contains(lowered, strings.ToLower(schema.Name)) {
			return true
		}
	}

	return false
}
