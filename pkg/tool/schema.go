package tool

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParameterSchema describes tool parameters as a JSON Schema object.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a single parameter.
type PropertySchema struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	Default     any             `json:"default,omitempty"`
}

// ObjectSchema is the empty-object schema used by tools with no parameters.
func ObjectSchema() ParameterSchema {
	return ParameterSchema{Type: "object", Properties: map[string]PropertySchema{}}
}

// compiled schemas are cached by their serialized form; tools have a handful
// of stable schemas so the cache never grows meaningfully.
var schemaCache sync.Map // string -> *jsonschema.Schema

func compileSchema(raw string) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(raw); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource("schema.json", strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	schemaCache.Store(raw, schema)
	return schema, nil
}

// ValidateArgs validates tool arguments against the tool's parameter schema.
// A validation failure is returned as a plain error so the caller can attempt
// argument repair before giving up.
func ValidateArgs(schema ParameterSchema, args map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	compiled, err := compileSchema(string(raw))
	if err != nil {
		return err
	}

	// jsonschema validates values produced by encoding/json; round-trip the
	// args so numeric types normalize to float64.
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshaling arguments: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return fmt.Errorf("normalizing arguments: %w", err)
	}

	if err := compiled.Validate(normalized); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// ParseArgs decodes a JSON arguments string into a map. An empty string is
// treated as an empty object, matching provider behavior for no-arg calls.
func ParseArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	return args, nil
}
