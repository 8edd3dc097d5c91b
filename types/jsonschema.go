package types

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// ToJSONSchema exposes a typespec as a google/jsonschema-go object schema,
// one property per declared field, so callers can validate or print
// external-facing schemas without hand-rolling a JSON Schema encoder.
// Nothing else in this module calls it.
func ToJSONSchema(t TypeSpec) (*jsonschema.Schema, error) {
	props := make(map[string]*jsonschema.Schema, t.Len())
	required := make([]string, 0, t.Len())
	for _, f := range t.Fields() {
		props[f.Name] = kindToJSONSchema(f.Kind)
		required = append(required, f.Name)
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}, nil
}

func kindToJSONSchema(k Kind) *jsonschema.Schema {
	switch {
	case k == Bool:
		return &jsonschema.Schema{Type: "boolean"}
	case k.IsInteger():
		return &jsonschema.Schema{Type: "integer"}
	case k.IsFloat():
		return &jsonschema.Schema{Type: "number"}
	case k == String || k == Path:
		return &jsonschema.Schema{Type: "string"}
	case k == Binary:
		return &jsonschema.Schema{Type: "string", Format: "byte"}
	case k == Timestamp:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}
	default:
		return &jsonschema.Schema{Type: "string"}
	}
}
