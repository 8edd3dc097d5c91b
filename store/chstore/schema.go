package chstore

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

type schemaDoc struct {
	Columns []schemaColumn `yaml:"columns"`
}

type schemaColumn struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// encodeSchema serializes a table schema for storage in a metadata row,
// reusing the yaml-based encoding duckstore uses for the same purpose.
func encodeSchema(schema table.Schema) (string, error) {
	doc := schemaDoc{Columns: make([]schemaColumn, len(schema.Columns))}
	for i, f := range schema.Columns {
		doc.Columns[i] = schemaColumn{Name: f.Name, Kind: f.Kind.String()}
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("chstore: encode schema: %w", err)
	}
	return string(b), nil
}

func decodeSchema(s string) (table.Schema, error) {
	var doc schemaDoc
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return table.Schema{}, fmt.Errorf("chstore: decode schema: %w", err)
	}
	fields := make([]types.Field, len(doc.Columns))
	for i, c := range doc.Columns {
		k, ok := types.ParseKind(c.Kind)
		if !ok {
			return table.Schema{}, orcaerr.UnsupportedType("chstore.decodeSchema",
				fmt.Sprintf("unknown kind %q in stored schema", c.Kind), nil)
		}
		fields[i] = types.Field{Name: c.Name, Kind: k}
	}
	return table.Schema{Columns: fields}, nil
}
