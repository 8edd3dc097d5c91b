package stream

import (
	"context"
	"fmt"
	"iter"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// ImmutableTableStream is the concrete source-stream variant: a columnar
// table plus a declared list of tag columns. Rows are produced row-by-row
// on iteration; per-field source info defaults to record.InputSource()
// since no invocation produced this data.
type ImmutableTableStream struct {
	tbl          *table.Table
	tagColumns   []string
	tagSchema    types.TypeSpec
	packetSchema types.TypeSpec
	dataContext  record.DataContext
}

// NewImmutableTableStream validates and wraps tbl. It enforces:
//   - tagColumns ⊆ tbl's column names
//   - every tag column's values are hashable (routed through hash.Scalar)
//
// tbl's column kinds are already restricted to package types' logical
// types by construction.
func NewImmutableTableStream(tbl *table.Table, tagColumns []string, dc record.DataContext) (*ImmutableTableStream, error) {
	schema := tbl.Schema()
	tagFields := make([]types.Field, 0, len(tagColumns))
	tagSet := make(map[string]bool, len(tagColumns))
	for _, name := range tagColumns {
		k, ok := schema.Kind(name)
		if !ok {
			return nil, orcaerr.MissingField("stream.NewImmutableTableStream",
				fmt.Sprintf("declared tag column %q not present in table", name), nil)
		}
		tagFields = append(tagFields, types.Field{Name: name, Kind: k})
		tagSet[name] = true
	}
	packetFields := make([]types.Field, 0, len(schema.Columns)-len(tagColumns))
	for _, col := range schema.Columns {
		if !tagSet[col.Name] {
			packetFields = append(packetFields, col)
		}
	}

	tagSchema, err := types.NewTypeSpec(tagFields...)
	if err != nil {
		return nil, err
	}
	packetSchema, err := types.NewTypeSpec(packetFields...)
	if err != nil {
		return nil, err
	}

	for i := 0; i < tbl.NumRows(); i++ {
		row, err := tbl.Row(i)
		if err != nil {
			return nil, err
		}
		for _, f := range tagFields {
			if _, err := hash.Scalar(f.Kind, row[f.Name]); err != nil {
				return nil, orcaerr.SchemaMismatch("stream.NewImmutableTableStream",
					fmt.Sprintf("tag column %q value at row %d is not hashable: %v", f.Name, i, err), err)
			}
		}
	}

	return &ImmutableTableStream{
		tbl:          tbl,
		tagColumns:   append([]string(nil), tagColumns...),
		tagSchema:    tagSchema,
		packetSchema: packetSchema,
		dataContext:  dc,
	}, nil
}

func (s *ImmutableTableStream) TagSchema() types.TypeSpec    { return s.tagSchema }
func (s *ImmutableTableStream) PacketSchema() types.TypeSpec { return s.packetSchema }

func (s *ImmutableTableStream) Iter(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for i := 0; i < s.tbl.NumRows(); i++ {
			select {
			case <-ctx.Done():
				yield(Record{}, ctx.Err())
				return
			default:
			}
			rec, err := s.rowAt(i)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func (s *ImmutableTableStream) rowAt(i int) (Record, error) {
	row, err := s.tbl.Row(i)
	if err != nil {
		return Record{}, err
	}
	tag, err := record.NewTag(s.tagSchema, row)
	if err != nil {
		return Record{}, err
	}
	packet, err := record.NewPacket(s.packetSchema, row, nil, s.dataContext)
	if err != nil {
		return Record{}, err
	}
	return Record{Tag: tag, Packet: packet}, nil
}

func (s *ImmutableTableStream) Flow(ctx context.Context) ([]Record, error) {
	return Flow(ctx, s)
}

func (s *ImmutableTableStream) AsTable(ctx context.Context, opts TableOptions) (*table.Table, error) {
	records, err := s.Flow(ctx)
	if err != nil {
		return nil, err
	}
	return buildTable(records, s.tagSchema, s.packetSchema, opts)
}

// Table returns the underlying table backing this source stream, and the
// declared tag column names — the two inputs SourceFingerprint takes.
func (s *ImmutableTableStream) Table() (*table.Table, []string) {
	return s.tbl, s.tagColumns
}
