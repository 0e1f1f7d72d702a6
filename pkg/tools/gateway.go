// Package tools provides the tool invocation boundary: a uniform contract
// for executing one tool call, plus a registry-backed executor. Tool-level
// failures never surface as errors; they come back as descriptive text so
// the model can read them and recover.
package tools

import (
	"context"

	"github.com/arief/naia/pkg/provider"
)

// Gateway executes one tool call on behalf of a session. Execute returns an
// error only for gateway-internal faults (e.g. context cancellation); a
// failing tool produces ordinary result text instead.
type Gateway interface {
	Execute(ctx context.Context, call provider.ToolCall, sessionID, model string) (string, error)

	// Schemas returns the ordered catalog of offered tools.
	Schemas() []provider.ToolSchema
}
