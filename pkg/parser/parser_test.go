package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arief/naia/pkg/provider"
)

func TestParsePlainText(t *testing.T) {
	result := Parse("The answer is 42.", nil)

	assert.Equal(t, "The answer is 42.", result.Content)
	assert.Empty(t, result.ToolCalls)
	assert.Empty(t, result.Reasoning)
}

func TestParseToolCallsEnvelope(t *testing.T) {
	text := `Let me check.
{"tool_calls": [
  {"id": "call_1", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\": \"main.go\"}"}},
  {"type": "function", "function": {"name": "exec_command", "arguments": {"command": "ls"}}}
]}`

	result := Parse(text, nil)

	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, "call_1", result.ToolCalls[0].ID)
	assert.Equal(t, "read_file", result.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path": "main.go"}`, result.ToolCalls[0].Arguments)

	assert.NotEmpty(t, result.ToolCalls[1].ID)
	assert.Equal(t, "exec_command", result.ToolCalls[1].Name)
	assert.JSONEq(t, `{"command": "ls"}`, result.ToolCalls[1].Arguments)

	assert.Equal(t, "Let me check.", result.Content)
	assert.NotContains(t, result.Content, "tool_calls")
}

func TestParseReasoningBlock(t *testing.T) {
	text := "<think>\nThe user wants the file listed.\n</think>\nSure, listing now."

	result := Parse(text, nil)

	assert.Equal(t, "The user wants the file listed.", result.Reasoning)
	assert.Equal(t, "Sure, listing now.", result.Content)
	assert.NotContains(t, result.Content, "think")
}

func TestParseReasoningWithToolCalls(t *testing.T) {
	text := `<think>need to read it</think>{"name": "read_file", "arguments": {"path": "x"}}`

	result := Parse(text, nil)

	assert.Equal(t, "need to read it", result.Reasoning)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "read_file", result.ToolCalls[0].Name)
	assert.Empty(t, result.Content)
}

func TestParseInlineObjects(t *testing.T) {
	text := `First {"name": "web_search", "arguments": {"query": "golang"}} then {"name": "read_file", "arguments": {"path": "a.txt"}}.`

	result := Parse(text, nil)

	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, "web_search", result.ToolCalls[0].Name)
	assert.Equal(t, "read_file", result.ToolCalls[1].Name)
	assert.Equal(t, "First  then .", result.Content)
}

func TestParseToolInputShape(t *testing.T) {
	text := `{"tool": "write_file", "input": {"path": "out.txt", "content": "hi"}}`

	result := Parse(text, nil)

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "write_file", result.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path": "out.txt", "content": "hi"}`, result.ToolCalls[0].Arguments)
}

func TestParseFencedBlock(t *testing.T) {
	text := "I'll call the tool:\n```json\n{\"name\": \"exec_command\", \"arguments\": {\"command\": \"pwd\"}}\n```\nDone."

	result := Parse(text, nil)

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "exec_command", result.ToolCalls[0].Name)
	assert.NotContains(t, result.Content, "```")
	assert.Contains(t, result.Content, "I'll call the tool:")
	assert.Contains(t, result.Content, "Done.")
}

func TestParseFencedBlockWithoutCallShape(t *testing.T) {
	text := "Here is the config:\n```json\n{\"port\": 8080}\n```"

	result := Parse(text, nil)

	assert.Empty(t, result.ToolCalls)
	assert.Contains(t, result.Content, `"port": 8080`)
}

func TestParseTagWrapped(t *testing.T) {
	text := `<tool_call>{"name": "web_search", "arguments": {"query": "weather"}}</tool_call>`

	result := Parse(text, nil)

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "web_search", result.ToolCalls[0].Name)
	assert.Empty(t, result.Content)
}

func TestParseBareCallKnownTool(t *testing.T) {
	text := `I'll run web_search({"query": "golang generics"}) now.`

	result := Parse(text, []string{"web_search"})

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "web_search", result.ToolCalls[0].Name)
	assert.NotEmpty(t, result.ToolCalls[0].ID)
	// Bare calls are often narrative; the span stays in the content.
	assert.Contains(t, result.Content, "web_search(")
}

func TestParseBareCallUnknownTool(t *testing.T) {
	result := Parse(`tool_name({"x":1})`, []string{"web_search"})

	assert.Empty(t, result.ToolCalls)
	assert.Equal(t, `tool_name({"x":1})`, result.Content)
}

func TestParseMalformedNeverInvents(t *testing.T) {
	inputs := []string{
		`{"tool_calls": [{"function": }]}`,
		`{"name": "x", "arguments": `,
		"```json\n{not json}\n```",
		`<tool_call>{"name": }</tool_call>`,
		`{{{{`,
		`"`,
		"",
	}

	for _, text := range inputs {
		result := Parse(text, nil)
		assert.Empty(t, result.ToolCalls, "input %q", text)
		// Spans are only ever removed, never invented: the content must
		// reconstruct a subset of the original.
		assert.Contains(t, text, strings.TrimSpace(result.Content), "input %q", text)
	}
}

func TestParseDoesNotDoubleCount(t *testing.T) {
	// An envelope also contains inline-shaped entries; they must be
	// claimed once by the envelope detector.
	text := `{"tool_calls": [{"name": "read_file", "arguments": {"path": "a"}}]}`

	result := Parse(text, nil)

	require.Len(t, result.ToolCalls, 1)
}

func TestNormalizeCallGeneratedIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		call, ok := normalizeCall(map[string]interface{}{
			"name":      "t",
			"arguments": map[string]interface{}{},
		})
		require.True(t, ok)
		require.NotEmpty(t, call.ID)
		assert.False(t, seen[call.ID])
		seen[call.ID] = true
	}
}

func TestNormalizeCallRejectsNonCallShapes(t *testing.T) {
	for _, entry := range []map[string]interface{}{
		{},
		{"foo": "bar"},
		{"name": "x"},
		{"tool": "x"},
		{"function": "not a map"},
		{"name": "x", "arguments": "not json"},
	} {
		_, ok := normalizeCall(entry)
		assert.False(t, ok, "entry %v", entry)
	}
}

func TestSerializeArgumentsAlwaysText(t *testing.T) {
	call, ok := normalizeCall(map[string]interface{}{
		"name":      "t",
		"arguments": map[string]interface{}{"n": 1},
	})
	require.True(t, ok)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(call.Arguments), &decoded))
	assert.Equal(t, float64(1), decoded["n"])
}

func TestValidateToolCall(t *testing.T) {
	schema := provider.ToolSchema{
		Name: "read_file",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":  map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "integer"},
			},
			"required": []interface{}{"path"},
		},
	}

	t.Run("valid", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{"path": "a.txt", "limit": 10}`}
		assert.Empty(t, ValidateToolCall(call, schema))
	})

	t.Run("unknown parameters tolerated", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{"path": "a.txt", "extra": true}`}
		assert.Empty(t, ValidateToolCall(call, schema))
	})

	t.Run("name mismatch", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "write_file", Arguments: `{"path": "a"}`}
		mismatches := ValidateToolCall(call, schema)
		require.NotEmpty(t, mismatches)
		assert.Contains(t, mismatches[0], "name mismatch")
	})

	t.Run("missing required", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{"limit": 1}`}
		assert.NotEmpty(t, ValidateToolCall(call, schema))
	})

	t.Run("type mismatch", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{"path": 42}`}
		assert.NotEmpty(t, ValidateToolCall(call, schema))
	})

	t.Run("fractional integer", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{"path": "a", "limit": 1.5}`}
		assert.NotEmpty(t, ValidateToolCall(call, schema))
	})

	t.Run("integer written as float literal", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{"path": "a", "limit": 2.0}`}
		assert.NotEmpty(t, ValidateToolCall(call, schema))
	})

	t.Run("unparseable arguments", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{nope`}
		assert.NotEmpty(t, ValidateToolCall(call, schema))
	})

	t.Run("idempotent", func(t *testing.T) {
		call := provider.ToolCall{ID: "1", Name: "read_file", Arguments: `{"limit": "x"}`}
		first := ValidateToolCall(call, schema)
		second := ValidateToolCall(call, schema)
		assert.Equal(t, first, second)
	})
}

func TestTryFixJSON(t *testing.T) {
	t.Run("unquoted key and trailing comma", func(t *testing.T) {
		fixed, ok := TryFixJSON(`{name: 1,}`)
		require.True(t, ok)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(fixed), &decoded))
		assert.Equal(t, float64(1), decoded["name"])
	})

	t.Run("single quotes", func(t *testing.T) {
		fixed, ok := TryFixJSON(`{'query': 'golang'}`)
		require.True(t, ok)
		assert.JSONEq(t, `{"query": "golang"}`, fixed)
	})

	t.Run("smart quotes", func(t *testing.T) {
		fixed, ok := TryFixJSON("{“path”: “a.txt”}")
		require.True(t, ok)
		assert.JSONEq(t, `{"path": "a.txt"}`, fixed)
	})

	t.Run("bare word value", func(t *testing.T) {
		fixed, ok := TryFixJSON(`{"mode": fast}`)
		require.True(t, ok)
		assert.JSONEq(t, `{"mode": "fast"}`, fixed)
	})

	t.Run("literals untouched", func(t *testing.T) {
		fixed, ok := TryFixJSON(`{"on": true, "off": null}`)
		require.True(t, ok)
		assert.JSONEq(t, `{"on": true, "off": null}`, fixed)
	})

	t.Run("already valid", func(t *testing.T) {
		fixed, ok := TryFixJSON(`{"a": 1}`)
		require.True(t, ok)
		assert.Equal(t, `{"a": 1}`, fixed)
	})

	t.Run("unrepairable", func(t *testing.T) {
		_, ok := TryFixJSON(`{"a": `)
		assert.False(t, ok)

		_, ok = TryFixJSON("")
		assert.False(t, ok)
	})
}
