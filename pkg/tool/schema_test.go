package tool

import (
	"strings"
	"testing"
)

func searchSchema() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"query": {Type: "string", Description: "token symbol or name"},
			"limit": {Type: "integer", Minimum: float64Ptr(1), Maximum: float64Ptr(50)},
		},
		Required: []string{"query"},
	}
}

func float64Ptr(v float64) *float64 { return &v }

func TestValidateArgsAccepts(t *testing.T) {
	args := map[string]any{"query": "BONK", "limit": 5}
	if err := ValidateArgs(searchSchema(), args); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateArgsRejectsMissingRequired(t *testing.T) {
	if err := ValidateArgs(searchSchema(), map[string]any{"limit": 5}); err == nil {
		t.Fatal("expected error for missing required field")
	}
}

func TestValidateArgsRejectsWrongType(t *testing.T) {
	args := map[string]any{"query": 42}
	if err := ValidateArgs(searchSchema(), args); err == nil {
		t.Fatal("expected error for wrong type")
	}
}

func TestValidateArgsRejectsOutOfRange(t *testing.T) {
	args := map[string]any{"query": "BONK", "limit": 500}
	if err := ValidateArgs(searchSchema(), args); err == nil {
		t.Fatal("expected error for out-of-range value")
	}
}

func TestValidateArgsEmptyObjectSchema(t *testing.T) {
	if err := ValidateArgs(ObjectSchema(), map[string]any{}); err != nil {
		t.Fatalf("empty args against empty schema should pass: %v", err)
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`{"query": "SOL"}`)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if args["query"] != "SOL" {
		t.Errorf("got %v, want SOL", args["query"])
	}
}

func TestParseArgsEmptyString(t *testing.T) {
	args, err := ParseArgs("")
	if err != nil {
		t.Fatalf("empty arguments should parse as empty object: %v", err)
	}
	if len(args) != 0 {
		t.Errorf("got %d keys, want 0", len(args))
	}
}

func TestParseArgsMalformed(t *testing.T) {
	_, err := ParseArgs(`{"query": `)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !strings.Contains(err.Error(), "parsing arguments") {
		t.Errorf("unexpected error message: %v", err)
	}
}
