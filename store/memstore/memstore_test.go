package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/orcaerr"
	"github.com/brian-arnold/orcapod/store/memstore"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

func testTable(t *testing.T) *table.Table {
	t.Helper()
	schema := table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}}}
	tbl, err := table.New(schema, map[string][]any{"id": {int64(1), int64(2)}}, 2)
	require.NoError(t, err)
	return tbl
}

func newStore(t *testing.T) *memstore.Store {
	t.Helper()
	s, err := memstore.New(memstore.Config{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestHasReportsFalseForUnknownFingerprint(t *testing.T) {
	s := newStore(t)
	ok, err := s.Has(context.Background(), hash.HashBytes([]byte("nope")))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutThenGetTableRoundTrips(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	fp := hash.HashBytes([]byte("fp-1"))
	tbl := testTable(t)

	require.NoError(t, s.PutTable(ctx, fp, tbl))

	ok, err := s.Has(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetTable(ctx, fp)
	require.NoError(t, err)
	require.Equal(t, tbl.NumRows(), got.NumRows())
}

func TestPutTableIsIdempotentForIdenticalContent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	fp := hash.HashBytes([]byte("fp-2"))

	require.NoError(t, s.PutTable(ctx, fp, testTable(t)))
	require.NoError(t, s.PutTable(ctx, fp, testTable(t)))
}

func TestPutTableRejectsContentMismatchUnderSameFingerprint(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	fp := hash.HashBytes([]byte("fp-3"))

	require.NoError(t, s.PutTable(ctx, fp, testTable(t)))

	schema := table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}}}
	other, err := table.New(schema, map[string][]any{"id": {int64(99)}}, 1)
	require.NoError(t, err)

	err = s.PutTable(ctx, fp, other)
	require.Error(t, err)
	require.True(t, orcaerr.IsKind(err, orcaerr.KindFingerprintCollision))
}

func TestGetTableReturnsErrorOnMiss(t *testing.T) {
	s := newStore(t)
	_, err := s.GetTable(context.Background(), hash.HashBytes([]byte("missing")))
	require.Error(t, err)
}

func TestGetResultReportsFalseOnMiss(t *testing.T) {
	s := newStore(t)
	pipelineFP := hash.HashBytes([]byte("pipeline-1"))
	_, found, err := s.GetResult(context.Background(), pipelineFP, "node1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutThenGetResultRoundTrips(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	pipelineFP := hash.HashBytes([]byte("pipeline-2"))
	tbl := testTable(t)

	require.NoError(t, s.PutResult(ctx, pipelineFP, "node1", tbl))

	got, found, err := s.GetResult(ctx, pipelineFP, "node1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tbl.NumRows(), got.NumRows())
}

func TestPutResultOverwritesPreviousValueForSameKey(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	pipelineFP := hash.HashBytes([]byte("pipeline-3"))

	require.NoError(t, s.PutResult(ctx, pipelineFP, "node1", testTable(t)))

	schema := table.Schema{Columns: []types.Field{{Name: "id", Kind: types.Int64}}}
	updated, err := table.New(schema, map[string][]any{"id": {int64(7)}}, 1)
	require.NoError(t, err)
	require.NoError(t, s.PutResult(ctx, pipelineFP, "node1", updated))

	got, found, err := s.GetResult(ctx, pipelineFP, "node1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, got.NumRows())
}

func TestListFingerprintsIncludesEveryStoredFingerprint(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	fp1 := hash.HashBytes([]byte("list-1"))
	fp2 := hash.HashBytes([]byte("list-2"))
	require.NoError(t, s.PutTable(ctx, fp1, testTable(t)))
	require.NoError(t, s.PutTable(ctx, fp2, testTable(t)))

	fps, err := s.ListFingerprints(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []hash.Digest{fp1, fp2}, fps)
}
