package chstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/brian-arnold/orcapod/store/chstore"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// newTestStore starts a disposable ClickHouse container, grounded on the
// lake's clickhousetesting.NewDefaultDB helper.
func newTestStore(t *testing.T) *chstore.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcch.Run(ctx, "clickhouse/clickhouse-server:latest",
		tcch.WithDatabase("test"),
		tcch.WithUsername("default"),
		tcch.WithPassword("password"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, nat.Port("9000/tcp"))
	require.NoError(t, err)

	s, err := chstore.Open(ctx, fmt.Sprintf("%s:%s", host, mappedPort.Port()), "default", "password",
		chstore.WithDatabase("test"), chstore.WithTLSDisabled(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func testTable(t *testing.T) *table.Table {
	t.Helper()
	schema := table.Schema{Columns: []types.Field{
		{Name: "id", Kind: types.Int64},
		{Name: "name", Kind: types.String},
		{Name: "payload", Kind: types.Binary},
	}}
	tbl, err := table.New(schema, map[string][]any{
		"id":      {int64(1), int64(2)},
		"name":    {"alpha", "beta"},
		"payload": {[]byte{0x01, 0x02}, []byte{0x03, 0x04, 0x05}},
	}, 2)
	require.NoError(t, err)
	return tbl
}

func TestPutTableThenGetTableRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tbl := testTable(t)

	fp, err := table.ContentHash(tbl)
	require.NoError(t, err)

	has, err := s.Has(ctx, fp)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, s.PutTable(ctx, fp, tbl))

	has, err = s.Has(ctx, fp)
	require.NoError(t, err)
	require.True(t, has)

	got, err := s.GetTable(ctx, fp)
	require.NoError(t, err)
	require.Equal(t, tbl.NumRows(), got.NumRows())

	row0, err := got.Row(0)
	require.NoError(t, err)
	require.Equal(t, int64(1), row0["id"])
	require.Equal(t, "alpha", row0["name"])
	require.Equal(t, []byte{0x01, 0x02}, row0["payload"])
}

func TestPutTableIsIdempotentForIdenticalContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tbl := testTable(t)
	fp, err := table.ContentHash(tbl)
	require.NoError(t, err)

	require.NoError(t, s.PutTable(ctx, fp, tbl))
	require.NoError(t, s.PutTable(ctx, fp, tbl))
}

func TestPutTableRejectsContentMismatchUnderSameFingerprint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tbl := testTable(t)
	fp, err := table.ContentHash(tbl)
	require.NoError(t, err)
	require.NoError(t, s.PutTable(ctx, fp, tbl))

	other, err := table.New(table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}}},
		map[string][]any{"id": {int64(99)}}, 1)
	require.NoError(t, err)

	err = s.PutTable(ctx, fp, other)
	require.Error(t, err)
}

func TestGetPutResultRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tbl := testTable(t)

	pipelineFP, err := table.ContentHash(tbl)
	require.NoError(t, err)

	_, found, err := s.GetResult(ctx, pipelineFP, "join_1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.PutResult(ctx, pipelineFP, "join_1", tbl))

	got, found, err := s.GetResult(ctx, pipelineFP, "join_1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tbl.NumRows(), got.NumRows())
}
