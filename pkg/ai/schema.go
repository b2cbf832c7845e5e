package ai

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema couples a compiled JSON schema with the name reported in validation
// failures. Compile once at package init and share across calls.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema definition for reply validation.
func CompileSchema(name, definition string) (*Schema, error) {
	compiled, err := jsonschema.CompileString(name+".json", definition)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for static definitions; it panics on
// error so broken schemas fail at startup rather than mid-run.
func MustCompileSchema(name, definition string) *Schema {
	schema, err := CompileSchema(name, definition)
	if err != nil {
		panic(err)
	}
	return schema
}

// Name returns the identifier used in validation failure messages.
func (s *Schema) Name() string {
	return s.name
}

// Validate checks raw JSON against the compiled schema.
func (s *Schema) Validate(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema %s: decode: %w", s.name, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	return nil
}
