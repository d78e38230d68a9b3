// Package tool defines the tool registry and the runtime contract between
// the streaming agent loop and the capabilities the model may invoke.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool represents a capability that can be called by the LLM.
type Tool interface {
	Name() string
	Description() string
	Parameters() ParameterSchema
	Execute(ctx context.Context, rt *Runtime, params map[string]any) (*Result, error)
}

// EnvGated tools are hidden from the active set unless every required
// environment variable is present and non-empty.
type EnvGated interface {
	RequiredEnv() []string
}

// Updatable tools declare a separate schema for user edits made before a
// pending call is confirmed. Tools without one reuse their input schema.
type Updatable interface {
	UpdateParameters() ParameterSchema
}

// Confirmable tools defer their side effect until the user confirms the
// pending call. Confirm receives the (possibly edited) arguments and runs
// outside the streaming loop.
type Confirmable interface {
	Confirm(ctx context.Context, rt *Runtime, params map[string]any) (*Result, error)
}

// Result represents the outcome of a tool execution. Failures are data, not
// errors: a tool that cannot complete returns Success=false with an Error
// string and the turn continues.
type Result struct {
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
	DisplayData map[string]any `json:"display_data,omitempty"` // Abridged data for conversation display
}

// Errorf builds a failed result.
func Errorf(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ToFunction converts a tool to the OpenAI function-calling format.
func ToFunction(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}

// ToJSON renders a result for inclusion in a tool message.
func ToJSON(r *Result) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
