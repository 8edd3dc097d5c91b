package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/types"
)

func packetSpec(t *testing.T) types.TypeSpec {
	t.Helper()
	spec, err := types.NewTypeSpec(
		types.Field{Name: "count", Kind: types.Int64},
		types.Field{Name: "label", Kind: types.String},
	)
	require.NoError(t, err)
	return spec
}

func TestNewPacketDefaultsMissingSourceToInput(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	p, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, nil, dc)
	require.NoError(t, err)

	src := p.SourceInfo()
	require.True(t, src["count"].IsInput())
	require.True(t, src["label"].IsInput())
}

func TestNewPacketRejectsMissingValue(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	_, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1)}, nil, dc)
	require.Error(t, err)
}

func TestPacketContentHashIsDeterministic(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	build := func() record.Packet {
		p, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, nil, dc)
		require.NoError(t, err)
		return p
	}

	h1, err := build().ContentHash()
	require.NoError(t, err)
	h2, err := build().ContentHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestPacketContentHashIgnoresSourceInfo(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	withInputSource, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, nil, dc)
	require.NoError(t, err)

	invocation := hash.HashBytes([]byte("some-invocation"))
	withProducedSource, err := record.WithSource(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, invocation, []string{"count", "label"}, dc)
	require.NoError(t, err)

	h1, err := withInputSource.ContentHash()
	require.NoError(t, err)
	h2, err := withProducedSource.ContentHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestWithSourceStampsDeclaredOutputFields(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	invocation := hash.HashBytes([]byte("inv-1"))
	p, err := record.WithSource(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, invocation, []string{"count"}, dc)
	require.NoError(t, err)

	src := p.SourceInfo()
	require.Equal(t, invocation, src["count"].Invocation)
	require.Equal(t, "count", src["count"].Field)
	require.False(t, src["count"].IsInput())
}

func TestAsDictWithoutSourceOmitsSourceKeys(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	p, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, nil, dc)
	require.NoError(t, err)

	dict := p.AsDict(false)
	require.Equal(t, int64(1), dict["count"])
	_, hasSource := dict["_source_count"]
	require.False(t, hasSource)
}

func TestAsDictWithSourceIncludesSourceKeys(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	p, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, nil, dc)
	require.NoError(t, err)

	dict := p.AsDict(true)
	src, ok := dict["_source_count"].(record.SourceInfo)
	require.True(t, ok)
	require.True(t, src.IsInput())
}

func TestAsTableProducesOneRow(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	p, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, nil, dc)
	require.NoError(t, err)

	tbl, err := p.AsTable(false)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.NumRows())
	row, err := tbl.Row(0)
	require.NoError(t, err)
	require.Equal(t, int64(1), row["count"])
	require.Equal(t, "a", row["label"])
}

func TestAsTableWithSourceAddsSourceColumns(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	p, err := record.NewPacket(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, nil, dc)
	require.NoError(t, err)

	tbl, err := p.AsTable(true)
	require.NoError(t, err)
	names := tbl.Schema().Names()
	require.Contains(t, names, "_source_count")
	require.Contains(t, names, "_source_label")
}

func TestAsTableWithSourceEncodesProducedInvocationSource(t *testing.T) {
	dc := record.DataContext{LibVersion: "v1", HasherVersion: "h1"}
	invocation := hash.HashBytes([]byte("inv-2"))
	p, err := record.WithSource(packetSpec(t), map[string]any{"count": int64(1), "label": "a"}, invocation, []string{"count", "label"}, dc)
	require.NoError(t, err)

	tbl, err := p.AsTable(true)
	require.NoError(t, err)
	row, err := tbl.Row(0)
	require.NoError(t, err)

	want := invocation.String() + "/count"
	require.Equal(t, want, row["_source_count"])
	require.NotEqual(t, "count", row["_source_count"], "must encode the invocation hash, not just the bare field name")
}

func TestDataContextKeyFormat(t *testing.T) {
	dc := record.DataContext{LibVersion: "1.2.3", HasherVersion: "v2"}
	require.Equal(t, "orcapod:1.2.3|hasher:v2", dc.Key())
}

func TestSourceInfoStringFormats(t *testing.T) {
	require.Equal(t, "input", record.InputSource().String())

	invocation := hash.HashBytes([]byte("inv"))
	produced := record.SourceInfo{Invocation: invocation, Field: "count"}
	require.Equal(t, invocation.String()+"/count", produced.String())
}
