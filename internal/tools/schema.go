package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

var schemaReflector = jsonschema.Reflector{
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// objectSchema is the normalized shape declared to the hosted assistant.
type objectSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

// SchemaFor reflects an argument struct into an object JSON Schema.
func SchemaFor(args any) (json.RawMessage, error) {
	raw, err := json.Marshal(schemaReflector.Reflect(args))
	if err != nil {
		return nil, fmt.Errorf("marshal tool schema: %w", err)
	}

	var schema objectSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode tool schema: %w", err)
	}
	if schema.Type != "object" {
		return nil, fmt.Errorf("tool schema type must be object, got %q", schema.Type)
	}
	if schema.Properties == nil {
		schema.Properties = map[string]any{}
	}
	return json.Marshal(schema)
}

// DecodeObject checks that raw is a JSON object; empty input is treated as {}.
func DecodeObject(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}
	obj := map[string]any{}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return obj, nil
}

func decodeParams(raw json.RawMessage, target any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
