package schema

import (
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ellypaws/macrotune/pkg/macro"
)

// Validator checks documents against a compiled schema. It is safe for
// concurrent use.
type Validator struct {
	schema *jsonschema.Schema
	raw    []byte
}

// Load compiles the schema stored at path.
func Load(path string) (*Validator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return CompileBytes(b)
}

// Compile compiles an in-memory schema, such as one returned by InferDir.
func Compile(schema map[string]any) (*Validator, error) {
	b, err := Marshal(schema)
	if err != nil {
		return nil, err
	}
	return CompileBytes(b)
}

func CompileBytes(b []byte) (*Validator, error) {
	compiled, err := jsonschema.CompileString(DefaultFile, string(b))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: compiled, raw: b}, nil
}

// Raw returns the schema source the validator was compiled from.
func (v *Validator) Raw() []byte {
	return v.raw
}

// Validate reports whether doc conforms. On failure the second value
// describes the violation. doc must be a decoded JSON value.
func (v *Validator) Validate(doc any) (bool, string) {
	if err := v.schema.Validate(doc); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// ValidateBytes parses b before validating it.
func (v *Validator) ValidateBytes(b []byte) (bool, string) {
	doc, err := macro.Decode(b)
	if err != nil {
		return false, "Invalid JSON format: " + err.Error()
	}
	return v.Validate(doc)
}
