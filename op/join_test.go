package op

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/store/memstore"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

func immutableStream(t *testing.T, schema table.Schema, cols map[string][]any, numRows int, tagColumns []string) *stream.ImmutableTableStream {
	t.Helper()
	tbl, err := table.New(schema, cols, numRows)
	require.NoError(t, err)
	s, err := stream.NewImmutableTableStream(tbl, tagColumns, record.DataContext{LibVersion: "test", HasherVersion: "1"})
	require.NoError(t, err)
	return s
}

func TestJoinInnerMatchesByIDInConstructionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s1 := immutableStream(t,
		table.Schema{Columns: []types.Field{
			{Name: "id", Kind: types.Int64},
			{Name: "a", Kind: types.Int64},
			{Name: "b", Kind: types.String},
		}},
		map[string][]any{
			"id": {int64(0), int64(1), int64(4)},
			"a":  {int64(1), int64(2), int64(3)},
			"b":  {"x", "y", "z"},
		}, 3, []string{"id"})

	s2 := immutableStream(t,
		table.Schema{Columns: []types.Field{
			{Name: "id", Kind: types.Int64},
			{Name: "c", Kind: types.Bool},
			{Name: "d", Kind: types.Float64},
		}},
		map[string][]any{
			"id": {int64(0), int64(1), int64(2)},
			"c":  {true, false, true},
			"d":  {1.1, 2.2, 3.3},
		}, 3, []string{"id"})

	j, err := NewJoin(s1, s2)
	require.NoError(t, err)

	out := j.Apply(j.IdentityHash(), nil)
	records, err := out.Flow(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	id0, ok := records[0].Tag.Get("id")
	require.True(t, ok)
	require.Equal(t, int64(0), id0)
	id1, ok := records[1].Tag.Get("id")
	require.True(t, ok)
	require.Equal(t, int64(1), id1)

	a0, _ := records[0].Packet.Get("a")
	c0, _ := records[0].Packet.Get("c")
	require.Equal(t, int64(1), a0)
	require.Equal(t, true, c0)
}

func TestJoinRejectsTagKindMismatch(t *testing.T) {
	t.Parallel()

	s1 := immutableStream(t,
		table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}}},
		map[string][]any{"id": {int64(0)}}, 1, []string{"id"})
	s2 := immutableStream(t,
		table.Schema{Columns: []types.Field{{Name: "id", Kind: types.String}}},
		map[string][]any{"id": {"0"}}, 1, []string{"id"})

	_, err := NewJoin(s1, s2)
	require.Error(t, err)
}

func TestJoinRejectsOverlappingPacketFields(t *testing.T) {
	t.Parallel()

	s1 := immutableStream(t,
		table.Schema{Columns: []types.Field{
			{Name: "id", Kind: types.Int64},
			{Name: "x", Kind: types.Int64},
		}},
		map[string][]any{"id": {int64(0)}, "x": {int64(1)}}, 1, []string{"id"})
	s2 := immutableStream(t,
		table.Schema{Columns: []types.Field{
			{Name: "id", Kind: types.Int64},
			{Name: "x", Kind: types.Int64},
		}},
		map[string][]any{"id": {int64(0)}, "x": {int64(2)}}, 1, []string{"id"})

	_, err := NewJoin(s1, s2)
	require.Error(t, err)
}

func TestJoinMemoizesAcrossCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s1 := immutableStream(t,
		table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}, {Name: "a", Kind: types.Int64}}},
		map[string][]any{"id": {int64(0)}, "a": {int64(1)}}, 1, []string{"id"})
	s2 := immutableStream(t,
		table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}, {Name: "c", Kind: types.Int64}}},
		map[string][]any{"id": {int64(0)}, "c": {int64(2)}}, 1, []string{"id"})

	j, err := NewJoin(s1, s2)
	require.NoError(t, err)

	out := j.Apply(j.IdentityHash(), nil)
	first, err := out.Flow(ctx)
	require.NoError(t, err)
	second, err := out.Flow(ctx)
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
}

func TestJoinConsultsBackingStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s1 := immutableStream(t,
		table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}, {Name: "a", Kind: types.Int64}}},
		map[string][]any{"id": {int64(0)}, "a": {int64(1)}}, 1, []string{"id"})
	s2 := immutableStream(t,
		table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}, {Name: "c", Kind: types.Int64}}},
		map[string][]any{"id": {int64(0)}, "c": {int64(2)}}, 1, []string{"id"})

	j, err := NewJoin(s1, s2)
	require.NoError(t, err)

	backing, err := memstore.New(memstore.Config{})
	require.NoError(t, err)
	defer backing.Close()

	fp := j.IdentityHash()
	out := j.Apply(fp, backing)
	records, err := out.Flow(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	has, err := backing.Has(ctx, fp)
	require.NoError(t, err)
	require.True(t, has)

	// A second stream built against the same fingerprint hits the store
	// without recomputing from the upstreams.
	out2 := j.Apply(fp, backing)
	records2, err := out2.Flow(ctx)
	require.NoError(t, err)
	require.Len(t, records2, 1)
}
