package record

import (
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// AsTable materializes the packet as a one-row columnar table. When
// includeSource is true, one additional "_source_<field>" column per
// declared field carries that field's SourceInfo.
func (p Packet) AsTable(includeSource bool) (*table.Table, error) {
	fields := p.spec.Fields()
	cols := make(map[string][]any, len(fields))
	for _, f := range fields {
		cols[f.Name] = []any{p.values[f.Name]}
	}
	if !includeSource {
		return table.New(table.Schema{Columns: fields}, cols, 1)
	}

	withSource := make([]types.Field, 0, len(fields)*2)
	withSource = append(withSource, fields...)
	for _, f := range fields {
		name := "_source_" + f.Name
		withSource = append(withSource, types.Field{Name: name, Kind: types.String})
		cols[name] = []any{p.source[f.Name].String()}
	}
	return table.New(table.Schema{Columns: withSource}, cols, 1)
}
