package stream

import (
	"fmt"

	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// BuildTable is the shared AsTable implementation every concrete Stream
// delegates to once it has its records in hand: it lays out tag columns,
// then packet columns, then any requested system columns, in iteration
// order.
func BuildTable(records []Record, tagSchema, packetSchema types.TypeSpec, opts TableOptions) (*table.Table, error) {
	return buildTable(records, tagSchema, packetSchema, opts)
}

func buildTable(records []Record, tagSchema, packetSchema types.TypeSpec, opts TableOptions) (*table.Table, error) {
	n := len(records)
	fields := make([]types.Field, 0, tagSchema.Len()+packetSchema.Len())
	fields = append(fields, tagSchema.Fields()...)
	fields = append(fields, packetSchema.Fields()...)

	cols := make(map[string][]any, len(fields)+packetSchema.Len()+2)
	for _, f := range fields {
		cols[f.Name] = make([]any, n)
	}

	if opts.IncludeSource {
		for _, f := range packetSchema.Fields() {
			name := "_source_" + f.Name
			fields = append(fields, types.Field{Name: name, Kind: types.String})
			cols[name] = make([]any, n)
		}
	}

	hashCol := opts.contentHashColumn()
	if opts.IncludeContentHash {
		fields = append(fields, types.Field{Name: hashCol, Kind: types.String})
		cols[hashCol] = make([]any, n)
	}
	if opts.IncludeDataContext {
		fields = append(fields, types.Field{Name: "_context_key", Kind: types.String})
		cols["_context_key"] = make([]any, n)
	}

	for i, rec := range records {
		for _, f := range tagSchema.Fields() {
			v, ok := rec.Tag.Get(f.Name)
			if !ok {
				return nil, fmt.Errorf("stream: record %d missing tag field %q", i, f.Name)
			}
			cols[f.Name][i] = v
		}
		for _, f := range packetSchema.Fields() {
			v, ok := rec.Packet.Get(f.Name)
			if !ok {
				return nil, fmt.Errorf("stream: record %d missing packet field %q", i, f.Name)
			}
			cols[f.Name][i] = v
		}
		if opts.IncludeSource {
			src := rec.Packet.SourceInfo()
			for _, f := range packetSchema.Fields() {
				cols["_source_"+f.Name][i] = src[f.Name].String()
			}
		}
		if opts.IncludeContentHash {
			h, err := rec.Packet.ContentHash()
			if err != nil {
				return nil, fmt.Errorf("stream: record %d content hash: %w", i, err)
			}
			cols[hashCol][i] = h.String()
		}
		if opts.IncludeDataContext {
			cols["_context_key"][i] = rec.Packet.DataContext().Key()
		}
	}

	return table.New(table.Schema{Columns: fields}, cols, n)
}
