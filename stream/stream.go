// Package stream implements OrcaPod's stream algebra: a finite, restartable
// sequence of (tag, packet) pairs sharing one tag typespec and one packet
// typespec.
package stream

import (
	"context"
	"iter"

	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/streamutil"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// Record is one (tag, packet) pair.
type Record struct {
	Tag    record.Tag
	Packet record.Packet
}

// Stream is a finite, restartable sequence of tag/packet pairs. Iterating
// twice — via Iter or Flow — yields the same sequence.
type Stream interface {
	// Iter yields every record in construction/evaluation order. If
	// evaluation fails partway through, the last yielded pair carries the
	// error and iteration stops.
	Iter(ctx context.Context) iter.Seq2[Record, error]

	// Flow fully materializes the stream into a slice.
	Flow(ctx context.Context) ([]Record, error)

	TagSchema() types.TypeSpec
	PacketSchema() types.TypeSpec

	// AsTable materializes the stream to a columnar table, optionally
	// projecting system columns per opts.
	AsTable(ctx context.Context, opts TableOptions) (*table.Table, error)
}

// TableOptions controls which system columns AsTable projects.
type TableOptions struct {
	IncludeSource      bool
	IncludeContentHash bool
	// ContentHashColumn overrides the default "_content_hash" column name.
	ContentHashColumn string
	IncludeDataContext bool
}

func (o TableOptions) contentHashColumn() string {
	if o.ContentHashColumn != "" {
		return o.ContentHashColumn
	}
	return "_content_hash"
}

// Flow is the shared Flow implementation every concrete Stream delegates
// to: fully drain Iter into a slice, stopping at the first error.
func Flow(ctx context.Context, s Stream) ([]Record, error) {
	return streamutil.Collect(s.Iter(ctx))
}
