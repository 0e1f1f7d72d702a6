package parser

import (
	"encoding/json"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/arief/naia/pkg/provider"
)

// normalizeCall collapses the accepted call shapes into the canonical
// ToolCall. Accepted shapes:
//
//	{id, type, function: {name, arguments}}   (OpenAI style)
//	{name, arguments}                         (inline style)
//	{tool, input}                             (alternate style)
//
// Arguments are re-serialized as JSON text; an id is generated when absent.
func normalizeCall(entry map[string]interface{}) (provider.ToolCall, bool) {
	name := ""
	var args interface{}
	id, _ := entry["id"].(string)

	switch {
	case entry["function"] != nil:
		fn, ok := entry["function"].(map[string]interface{})
		if !ok {
			return provider.ToolCall{}, false
		}
		name, _ = fn["name"].(string)
		args = fn["arguments"]
	case entry["name"] != nil:
		name, _ = entry["name"].(string)
		var ok bool
		args, ok = entry["arguments"]
		if !ok {
			args, ok = entry["parameters"]
		}
		if !ok {
			return provider.ToolCall{}, false
		}
	case entry["tool"] != nil:
		name, _ = entry["tool"].(string)
		var ok bool
		args, ok = entry["input"]
		if !ok {
			return provider.ToolCall{}, false
		}
	default:
		return provider.ToolCall{}, false
	}

	if name == "" {
		return provider.ToolCall{}, false
	}

	serialized, ok := serializeArguments(args)
	if !ok {
		return provider.ToolCall{}, false
	}

	if id == "" {
		id = newCallID()
	}

	return provider.ToolCall{
		ID:        id,
		Name:      name,
		Arguments: serialized,
	}, true
}

// serializeArguments renders the argument payload as JSON text. String
// payloads must themselves be valid JSON; anything else is marshaled.
func serializeArguments(args interface{}) (string, bool) {
	switch v := args.(type) {
	case nil:
		return "{}", true
	case string:
		if v == "" {
			return "{}", true
		}
		if !json.Valid([]byte(v)) {
			return "", false
		}
		return v, true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// newCallID generates a process-unique tool call id.
func newCallID() string {
	id, _ := gonanoid.New()
	return "call_" + id
}
