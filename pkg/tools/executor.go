package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/arief/naia/pkg/parser"
	"github.com/arief/naia/pkg/provider"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 30 * time.Second

// Parameter defines one parameter of a tool.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Definition declares a tool's metadata and handler.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Executor is a registry-backed Gateway. Tools register once at startup;
// every invocation validates arguments against the tool's compiled schema
// before the handler runs.
type Executor struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	order   []string
	policy  *Policy
	timeout time.Duration
	mu      sync.RWMutex
}

// NewExecutor creates an empty executor.
func NewExecutor() *Executor {
	return &Executor{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		timeout: DefaultTimeout,
	}
}

// SetPolicy installs an allow/deny policy. A nil policy allows everything.
func (e *Executor) SetPolicy(policy *Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = policy
}

// SetTimeout overrides the per-invocation timeout.
func (e *Executor) SetTimeout(timeout time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if timeout > 0 {
		e.timeout = timeout
	}
}

// Register adds a tool to the registry and compiles its parameter schema.
func (e *Executor) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	schemaMap := parameterSchema(def)
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	e.tools[def.Name] = &def
	e.schemas[def.Name] = compiled
	e.order = append(e.order, def.Name)

	log.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Lookup returns the definition for a registered tool, or nil.
func (e *Executor) Lookup(name string) *Definition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tools[name]
}

// Schemas returns the offered tool catalog in registration order, filtered
// by the installed policy.
func (e *Executor) Schemas() []provider.ToolSchema {
	e.mu.RLock()
	defer e.mu.RUnlock()

	schemas := []provider.ToolSchema{}
	for _, name := range e.order {
		if !e.policy.IsAllowed(name) {
			continue
		}
		def := e.tools[name]
		schemas = append(schemas, provider.ToolSchema{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  parameterSchema(*def),
		})
	}
	return schemas
}

// Execute runs one tool call and always returns result text for tool-level
// outcomes, including failures. The returned error is reserved for
// gateway-internal faults.
func (e *Executor) Execute(ctx context.Context, call provider.ToolCall, sessionID, model string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.RLock()
	def := e.tools[call.Name]
	schema := e.schemas[call.Name]
	policy := e.policy
	timeout := e.timeout
	e.mu.RUnlock()

	logger := log.With().
		Str("tool", call.Name).
		Str("session_id", sessionID).
		Str("model", model).
		Logger()

	if def == nil {
		logger.Warn().Msg("Unknown tool requested")
		return fmt.Sprintf("Error: unknown tool %q", call.Name), nil
	}
	if !policy.IsAllowed(call.Name) {
		logger.Warn().Msg("Tool denied by policy")
		return fmt.Sprintf("Error: tool %q is not allowed", call.Name), nil
	}

	params, errText := decodeArguments(call.Arguments)
	if errText != "" {
		logger.Warn().Str("arguments", call.Arguments).Msg("Unparseable tool arguments")
		return errText, nil
	}

	if result, err := schema.Validate(gojsonschema.NewGoLoader(params)); err == nil && !result.Valid() {
		descriptions := []string{}
		for _, resultErr := range result.Errors() {
			descriptions = append(descriptions, resultErr.String())
		}
		return "Error: invalid arguments: " + strings.Join(descriptions, "; "), nil
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	output, err := def.Handler(execCtx, params)
	elapsed := time.Since(start)

	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("Tool execution failed")
		return fmt.Sprintf("Error: %v", err), nil
	}

	logger.Debug().Dur("elapsed", elapsed).Msg("Tool executed")
	return stringifyOutput(output), nil
}

// decodeArguments parses the serialized argument payload, attempting a
// best-effort repair before giving up.
func decodeArguments(raw string) (map[string]interface{}, string) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, ""
	}

	var params map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &params); err == nil {
		return params, ""
	}

	if fixed, ok := parser.TryFixJSON(raw); ok {
		if err := json.Unmarshal([]byte(fixed), &params); err == nil {
			return params, ""
		}
	}

	return nil, fmt.Sprintf("Error: tool arguments are not valid JSON: %s", raw)
}

// stringifyOutput renders a handler result as text for the model.
func stringifyOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// parameterSchema builds the JSON Schema object for a tool definition.
func parameterSchema(def Definition) map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}

	for _, param := range def.Parameters {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
