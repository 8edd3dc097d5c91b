package stream_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

func sampleSchema(t *testing.T) table.Schema {
	t.Helper()
	return table.Schema{Columns: []types.Field{
		{Name: "sample", Kind: types.String},
		{Name: "count", Kind: types.Int64},
	}}
}

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(sampleSchema(t), map[string][]any{
		"sample": {"s1", "s2"},
		"count":  {int64(1), int64(2)},
	}, 2)
	require.NoError(t, err)
	return tbl
}

func testDataContext() record.DataContext {
	return record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
}

func TestNewImmutableTableStreamSplitsTagAndPacketSchemas(t *testing.T) {
	s, err := stream.NewImmutableTableStream(sampleTable(t), []string{"sample"}, testDataContext())
	require.NoError(t, err)

	require.Equal(t, []string{"sample"}, s.TagSchema().Keys())
	require.Equal(t, []string{"count"}, s.PacketSchema().Keys())
}

func TestNewImmutableTableStreamRejectsUndeclaredTagColumn(t *testing.T) {
	_, err := stream.NewImmutableTableStream(sampleTable(t), []string{"missing"}, testDataContext())
	require.Error(t, err)
}

func TestFlowIsRestartableAndDeterministic(t *testing.T) {
	s, err := stream.NewImmutableTableStream(sampleTable(t), []string{"sample"}, testDataContext())
	require.NoError(t, err)

	first, err := s.Flow(context.Background())
	require.NoError(t, err)
	second, err := s.Flow(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	for i := range first {
		v1, _ := first[i].Tag.Get("sample")
		v2, _ := second[i].Tag.Get("sample")
		require.Equal(t, v1, v2)
	}
}

func TestIterStopsAtContextCancellation(t *testing.T) {
	s, err := stream.NewImmutableTableStream(sampleTable(t), []string{"sample"}, testDataContext())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	var lastErr error
	for _, err := range s.Iter(ctx) {
		count++
		lastErr = err
	}
	require.Equal(t, 1, count)
	require.Error(t, lastErr)
}

func TestAsTableRoundTripsTagAndPacketColumns(t *testing.T) {
	s, err := stream.NewImmutableTableStream(sampleTable(t), []string{"sample"}, testDataContext())
	require.NoError(t, err)

	tbl, err := s.AsTable(context.Background(), stream.TableOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NumRows())
	row, err := tbl.Row(0)
	require.NoError(t, err)
	require.Equal(t, "s1", row["sample"])
	require.Equal(t, int64(1), row["count"])
}

func TestAsTableIncludesSourceColumnsWhenRequested(t *testing.T) {
	s, err := stream.NewImmutableTableStream(sampleTable(t), []string{"sample"}, testDataContext())
	require.NoError(t, err)

	tbl, err := s.AsTable(context.Background(), stream.TableOptions{IncludeSource: true})
	require.NoError(t, err)
	require.Contains(t, tbl.Schema().Names(), "_source_count")
	row, err := tbl.Row(0)
	require.NoError(t, err)
	require.Equal(t, "input", row["_source_count"])
}

func TestAsTableIncludesContentHashColumnWithCustomName(t *testing.T) {
	s, err := stream.NewImmutableTableStream(sampleTable(t), []string{"sample"}, testDataContext())
	require.NoError(t, err)

	tbl, err := s.AsTable(context.Background(), stream.TableOptions{
		IncludeContentHash: true,
		ContentHashColumn:  "my_hash",
	})
	require.NoError(t, err)
	require.Contains(t, tbl.Schema().Names(), "my_hash")
}

func TestAsTableIncludesDataContextColumn(t *testing.T) {
	s, err := stream.NewImmutableTableStream(sampleTable(t), []string{"sample"}, testDataContext())
	require.NoError(t, err)

	tbl, err := s.AsTable(context.Background(), stream.TableOptions{IncludeDataContext: true})
	require.NoError(t, err)
	row, err := tbl.Row(0)
	require.NoError(t, err)
	require.Equal(t, "orcapod:v1|hasher:h1", row["_context_key"])
}

func TestRecordsFromTableReconstructsTagsAndPackets(t *testing.T) {
	tagSpec, err := types.NewTypeSpec(types.Field{Name: "sample", Kind: types.String})
	require.NoError(t, err)
	packetSpec, err := types.NewTypeSpec(types.Field{Name: "count", Kind: types.Int64})
	require.NoError(t, err)

	records, err := stream.RecordsFromTable(sampleTable(t), tagSpec, packetSpec, testDataContext())
	require.NoError(t, err)
	require.Len(t, records, 2)
	v, ok := records[0].Tag.Get("sample")
	require.True(t, ok)
	require.Equal(t, "s1", v)
}

func TestSourceFingerprintIsStableForEqualTableAndTagColumns(t *testing.T) {
	f1, err := stream.SourceFingerprint(sampleTable(t), []string{"sample"})
	require.NoError(t, err)
	f2, err := stream.SourceFingerprint(sampleTable(t), []string{"sample"})
	require.NoError(t, err)
	require.Equal(t, f1, f2)
}

func TestSourceFingerprintChangesWithTagColumnDeclaration(t *testing.T) {
	f1, err := stream.SourceFingerprint(sampleTable(t), []string{"sample"})
	require.NoError(t, err)
	f2, err := stream.SourceFingerprint(sampleTable(t), []string{"count"})
	require.NoError(t, err)
	require.NotEqual(t, f1, f2)
}
