package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/arief/naia/pkg/provider"
)

// ValidateToolCall checks a call against its tool schema and returns a list
// of mismatch descriptions; an empty list means the call is valid. Unknown
// parameters are tolerated. The check is pure: the same inputs always yield
// the same mismatches.
func ValidateToolCall(call provider.ToolCall, schema provider.ToolSchema) []string {
	mismatches := []string{}

	if call.Name != schema.Name {
		mismatches = append(mismatches, fmt.Sprintf("tool name mismatch: got %q, want %q", call.Name, schema.Name))
	}

	raw := call.Arguments
	if raw == "" {
		raw = "{}"
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()
	var args map[string]interface{}
	if err := decoder.Decode(&args); err != nil {
		mismatches = append(mismatches, fmt.Sprintf("arguments are not a JSON object: %v", err))
		return mismatches
	}

	if schema.Parameters == nil {
		return mismatches
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema.Parameters))
	if err != nil {
		mismatches = append(mismatches, fmt.Sprintf("invalid parameter schema: %v", err))
		return mismatches
	}

	result, err := compiled.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		mismatches = append(mismatches, fmt.Sprintf("schema validation failed: %v", err))
		return mismatches
	}

	for _, resultErr := range result.Errors() {
		mismatches = append(mismatches, resultErr.String())
	}

	mismatches = append(mismatches, strictIntegerMismatches(args, schema.Parameters)...)

	return mismatches
}

// strictIntegerMismatches flags integer-typed parameters written with a
// fractional or exponent literal (e.g. 2.0, 1e3). JSON Schema accepts these
// as integers but tool handlers expect plain integer literals. Non-integral
// values are already reported by the schema check.
func strictIntegerMismatches(args map[string]interface{}, params map[string]interface{}) []string {
	properties, ok := params["properties"].(map[string]interface{})
	if !ok {
		return nil
	}

	mismatches := []string{}
	for name, rawSpec := range properties {
		spec, ok := rawSpec.(map[string]interface{})
		if !ok || spec["type"] != "integer" {
			continue
		}
		num, ok := args[name].(json.Number)
		if !ok {
			continue
		}
		literal := num.String()
		if !strings.ContainsAny(literal, ".eE") {
			continue
		}
		f, err := num.Float64()
		if err != nil || f != math.Trunc(f) {
			continue
		}
		mismatches = append(mismatches, fmt.Sprintf("%s: expected integer literal, got %s", name, literal))
	}

	sort.Strings(mismatches)
	return mismatches
}
