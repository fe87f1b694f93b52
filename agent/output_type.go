package agent

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/hupe1980/agentloop/internal/util"
)

// OutputType describes the structured final-output contract of an agent.
// When present, a model response only terminates the run if its payload
// validates against the schema; non-validating text keeps the loop going.
type OutputType struct {
	name   string
	schema map[string]any
}

// NewOutputType constructs an OutputType from an explicit JSON schema object.
func NewOutputType(name string, schema map[string]any) *OutputType {
	return &OutputType{name: name, schema: schema}
}

// OutputTypeFor derives an OutputType from a Go struct using JSON schema
// reflection. Field names follow json tags; description tags become schema
// descriptions.
//
// Example:
//
//	type Weather struct {
//	  City        string  `json:"city"`
//	  TempCelsius float64 `json:"temp_celsius"`
//	}
//
//	ot := agent.OutputTypeFor[Weather]()
func OutputTypeFor[T any]() *OutputType {
	var v T
	t := reflect.TypeOf(v)
	name := "output"
	if t != nil {
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Name() != "" {
			name = t.Name()
		}
	}

	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}

	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return NewOutputType(name, map[string]any{"type": "object", "properties": map[string]any{}})
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return NewOutputType(name, map[string]any{"type": "object", "properties": map[string]any{}})
	}
	delete(schema, "$schema")

	return NewOutputType(name, schema)
}

// Name returns the logical name of the output type.
func (o *OutputType) Name() string { return o.name }

// Schema returns the JSON schema object describing the contract.
func (o *OutputType) Schema() map[string]any { return o.schema }

// Validate parses text as a JSON object and checks it against the schema.
// It returns the parsed payload on success. Any parse or validation failure
// means "not a final output", never a fatal error.
func (o *OutputType) Validate(text string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("output is not a JSON object: %w", err)
	}

	if err := util.ValidateParameters(payload, o.schema); err != nil {
		return nil, err
	}

	return payload, nil
}
