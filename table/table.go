// Package table implements the concrete columnar representation that
// streams materialize to and that stores persist: an ordered set of named,
// typed columns with a fixed row count.
package table

import (
	"fmt"

	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/types"
)

// Schema is the columnar counterpart of types.TypeSpec: an ordered list of
// named, typed columns.
type Schema struct {
	Columns []types.Field
}

// SchemaFromTypeSpec converts a typespec to a columnar schema. Every
// logical Kind in package types has a columnar representation, so this
// conversion cannot fail.
func SchemaFromTypeSpec(ts types.TypeSpec) Schema {
	return Schema{Columns: ts.Fields()}
}

// TypeSpecFromSchema converts a columnar schema back into a typespec,
// rejecting any column whose Kind is not one of the logical types package
// types declares.
func TypeSpecFromSchema(s Schema) (types.TypeSpec, error) {
	for _, col := range s.Columns {
		if _, ok := types.ParseKind(col.Kind.String()); !ok {
			return types.TypeSpec{}, orcaerr.UnsupportedType("table.TypeSpecFromSchema",
				fmt.Sprintf("column %q has unsupported kind %v", col.Name, col.Kind), nil)
		}
	}
	return types.NewTypeSpec(s.Columns...)
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Kind returns the declared kind of a column, if present.
func (s Schema) Kind(name string) (types.Kind, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Kind, true
		}
	}
	return 0, false
}

// Table is an immutable, in-memory columnar table: a fixed schema plus one
// value slice per column, all the same length.
type Table struct {
	schema  Schema
	columns map[string][]any
	numRows int
}

// New builds a Table from a schema and one values slice per declared
// column. Every column must have exactly numRows values.
func New(schema Schema, columns map[string][]any, numRows int) (*Table, error) {
	for _, col := range schema.Columns {
		values, ok := columns[col.Name]
		if !ok {
			return nil, orcaerr.MissingField("table.New",
				fmt.Sprintf("column %q not provided", col.Name), nil)
		}
		if len(values) != numRows {
			return nil, orcaerr.SchemaMismatch("table.New",
				fmt.Sprintf("column %q has %d values, want %d", col.Name, len(values), numRows), nil)
		}
	}
	cloned := make(map[string][]any, len(columns))
	for _, col := range schema.Columns {
		src := columns[col.Name]
		dst := make([]any, len(src))
		copy(dst, src)
		cloned[col.Name] = dst
	}
	return &Table{schema: schema, columns: cloned, numRows: numRows}, nil
}

// Empty returns a zero-row table with the given schema, used as the
// pre-run value of a pipeline node's result accessor.
func Empty(schema Schema) *Table {
	cols := make(map[string][]any, len(schema.Columns))
	for _, c := range schema.Columns {
		cols[c.Name] = []any{}
	}
	return &Table{schema: schema, columns: cols, numRows: 0}
}

func (t *Table) Schema() Schema {
	return t.schema
}

func (t *Table) NumRows() int {
	return t.numRows
}

// Column returns the values of a column in row order.
func (t *Table) Column(name string) ([]any, bool) {
	values, ok := t.columns[name]
	return values, ok
}

// Row returns the values of every declared column at row index i, keyed
// by column name.
func (t *Table) Row(i int) (map[string]any, error) {
	if i < 0 || i >= t.numRows {
		return nil, fmt.Errorf("table: row index %d out of range [0,%d)", i, t.numRows)
	}
	row := make(map[string]any, len(t.schema.Columns))
	for _, col := range t.schema.Columns {
		row[col.Name] = t.columns[col.Name][i]
	}
	return row, nil
}

// Project returns a new Table containing only the named columns, in the
// order given.
func (t *Table) Project(names []string) (*Table, error) {
	fields := make([]types.Field, 0, len(names))
	cols := make(map[string][]any, len(names))
	for _, name := range names {
		k, ok := t.schema.Kind(name)
		if !ok {
			return nil, orcaerr.MissingField("table.Project", fmt.Sprintf("column %q not found", name), nil)
		}
		fields = append(fields, types.Field{Name: name, Kind: k})
		cols[name] = t.columns[name]
	}
	schema := Schema{Columns: fields}
	return New(schema, cols, t.numRows)
}
