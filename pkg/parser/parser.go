// Package parser extracts structured tool invocations from raw assistant
// text. Models emit tool calls in several incompatible conventions; each
// convention is handled by an independent detector and the results are
// merged. Parsing never fails: text that matches no convention stays in the
// content verbatim.
package parser

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/arief/naia/pkg/provider"
)

// Result is the outcome of interpreting one assistant response.
type Result struct {
	Content   string
	ToolCalls []provider.ToolCall
	Reasoning string
}

// span marks a half-open byte range of the input claimed by a detector.
type span struct {
	start int
	end   int
}

// detector scans text for one tool-call convention. The returned spans are
// removed from the content; a detector that matches without consuming text
// returns nil spans.
type detector func(text string, known map[string]bool) ([]provider.ToolCall, []span)

var detectors = []detector{
	detectToolCallsObject,
	detectFencedBlocks,
	detectTagWrapped,
	detectInlineObjects,
	detectBareCalls,
}

// Parse splits raw assistant text into clean content, tool calls, and an
// optional reasoning block. availableTools gates the bare tool_name({...})
// convention, which is only trusted for known names.
func Parse(text string, availableTools []string) Result {
	known := make(map[string]bool, len(availableTools))
	for _, name := range availableTools {
		known[name] = true
	}

	text, reasoning := extractReasoning(text)

	var calls []provider.ToolCall
	var claimed []span

	for _, detect := range detectors {
		found, spans := detect(text, known)
		for i, call := range found {
			// A span already claimed by an earlier detector keeps its
			// first interpretation.
			if i < len(spans) && overlapsAny(spans[i], claimed) {
				continue
			}
			calls = append(calls, call)
			if i < len(spans) {
				claimed = append(claimed, spans[i])
			}
		}
	}

	return Result{
		Content:   removeSpans(text, claimed),
		ToolCalls: calls,
		Reasoning: reasoning,
	}
}

var reasoningRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// extractReasoning strips the first reasoning block and returns the
// remaining text plus the trimmed inner reasoning.
func extractReasoning(text string) (string, string) {
	match := reasoningRe.FindStringSubmatchIndex(text)
	if match == nil {
		return text, ""
	}
	reasoning := strings.TrimSpace(text[match[2]:match[3]])
	return text[:match[0]] + text[match[1]:], reasoning
}

// detectToolCallsObject finds a JSON object carrying a "tool_calls" array of
// OpenAI-style entries.
func detectToolCallsObject(text string, _ map[string]bool) ([]provider.ToolCall, []span) {
	var calls []provider.ToolCall
	var spans []span

	for _, candidate := range scanObjects(text) {
		var envelope struct {
			ToolCalls []json.RawMessage `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(text[candidate.start:candidate.end]), &envelope); err != nil {
			continue
		}
		if len(envelope.ToolCalls) == 0 {
			continue
		}

		entryCalls := []provider.ToolCall{}
		valid := true
		for _, raw := range envelope.ToolCalls {
			var entry map[string]interface{}
			if err := json.Unmarshal(raw, &entry); err != nil {
				valid = false
				break
			}
			call, ok := normalizeCall(entry)
			if !ok {
				valid = false
				break
			}
			entryCalls = append(entryCalls, call)
		}
		if !valid {
			continue
		}

		for _, call := range entryCalls {
			calls = append(calls, call)
			spans = append(spans, candidate)
		}
	}

	return calls, spans
}

// detectInlineObjects finds bare JSON objects that normalize to a call
// shape, e.g. {"name": "read_file", "arguments": {"path": "x"}}.
func detectInlineObjects(text string, _ map[string]bool) ([]provider.ToolCall, []span) {
	var calls []provider.ToolCall
	var spans []span

	for _, candidate := range scanObjects(text) {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(text[candidate.start:candidate.end]), &entry); err != nil {
			continue
		}
		call, ok := normalizeCall(entry)
		if !ok {
			continue
		}
		calls = append(calls, call)
		spans = append(spans, candidate)
	}

	return calls, spans
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z_]*\\s*\n(.*?)\n?```")

// detectFencedBlocks finds fenced code blocks whose body is JSON with a
// name/function/tool key. The entire fence is consumed.
func detectFencedBlocks(text string, _ map[string]bool) ([]provider.ToolCall, []span) {
	var calls []provider.ToolCall
	var spans []span

	for _, match := range fenceRe.FindAllStringSubmatchIndex(text, -1) {
		body := strings.TrimSpace(text[match[2]:match[3]])
		found := callsFromJSON(body)
		fence := span{start: match[0], end: match[1]}
		for _, call := range found {
			calls = append(calls, call)
			spans = append(spans, fence)
		}
	}

	return calls, spans
}

var tagRe = regexp.MustCompile(`(?s)<(tool_call|function_call|tool_use)>(.*?)</(?:tool_call|function_call|tool_use)>`)

// detectTagWrapped finds XML-style wrapper tags around a JSON payload.
func detectTagWrapped(text string, _ map[string]bool) ([]provider.ToolCall, []span) {
	var calls []provider.ToolCall
	var spans []span

	for _, match := range tagRe.FindAllStringSubmatchIndex(text, -1) {
		body := strings.TrimSpace(text[match[4]:match[5]])
		found := callsFromJSON(body)
		wrapper := span{start: match[0], end: match[1]}
		for _, call := range found {
			calls = append(calls, call)
			spans = append(spans, wrapper)
		}
	}

	return calls, spans
}

var bareCallRe = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\s*\(\s*(\{)`)

// detectBareCalls finds tool_name({...}) syntax for known tool names. These
// matches are often narrative ("run search({...}) to find it"), so the
// matched span is never stripped from content.
func detectBareCalls(text string, known map[string]bool) ([]provider.ToolCall, []span) {
	var calls []provider.ToolCall

	for _, match := range bareCallRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[match[2]:match[3]]
		if !known[name] {
			continue
		}
		objStart := match[4]
		objEnd, ok := matchBraces(text, objStart)
		if !ok {
			continue
		}
		args := text[objStart:objEnd]
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(args), &parsed); err != nil {
			continue
		}
		calls = append(calls, provider.ToolCall{
			ID:        newCallID(),
			Name:      name,
			Arguments: args,
		})
	}

	return calls, nil
}

// callsFromJSON interprets a standalone JSON payload (object or array) as
// one or more tool calls, returning nothing when the payload has no
// recognizable call shape.
func callsFromJSON(body string) []provider.ToolCall {
	var calls []provider.ToolCall

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(body), &obj); err == nil {
		if rawCalls, ok := obj["tool_calls"].([]interface{}); ok {
			for _, raw := range rawCalls {
				if entry, ok := raw.(map[string]interface{}); ok {
					if call, ok := normalizeCall(entry); ok {
						calls = append(calls, call)
					}
				}
			}
			return calls
		}
		if call, ok := normalizeCall(obj); ok {
			return []provider.ToolCall{call}
		}
		return nil
	}

	var arr []map[string]interface{}
	if err := json.Unmarshal([]byte(body), &arr); err == nil {
		for _, entry := range arr {
			if call, ok := normalizeCall(entry); ok {
				calls = append(calls, call)
			}
		}
	}

	return calls
}

// scanObjects returns the spans of all top-level balanced JSON-looking
// objects in text, skipping string contents.
func scanObjects(text string) []span {
	var spans []span

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := matchBraces(text, i)
		if !ok {
			continue
		}
		spans = append(spans, span{start: i, end: end})
		i = end - 1
	}

	return spans
}

// matchBraces returns the index one past the brace that closes the object
// opening at start. String literals and escapes are honored.
func matchBraces(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}

	return 0, false
}

func overlapsAny(s span, claimed []span) bool {
	for _, c := range claimed {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

// removeSpans deletes the claimed ranges from text and tidies leftover
// whitespace. Spans may overlap or repeat; they are merged first.
func removeSpans(text string, claimed []span) string {
	if len(claimed) == 0 {
		return strings.TrimSpace(text)
	}

	sorted := make([]span, len(claimed))
	copy(sorted, claimed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	merged := []span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var b strings.Builder
	prev := 0
	for _, s := range merged {
		b.WriteString(text[prev:s.start])
		prev = s.end
	}
	b.WriteString(text[prev:])

	return strings.TrimSpace(collapseBlankLines(b.String()))
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

func collapseBlankLines(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}
