package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/pod"
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/store/memstore"
	"github.com/brian-arnold/orcapod/stream"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

func addNumbers(a, b int64) int64 { return a + b }

func buildInputStream(t *testing.T) stream.Stream {
	t.Helper()
	schema := table.Schema{Columns: []types.Field{
		{Name: "id", Kind: types.Int64},
		{Name: "a", Kind: types.Int64},
		{Name: "b", Kind: types.Int64},
	}}
	tbl, err := table.New(schema, map[string][]any{
		"id": {int64(0), int64(1), int64(2)},
		"a":  {int64(1), int64(2), int64(3)},
		"b":  {int64(10), int64(20), int64(30)},
	}, 3)
	require.NoError(t, err)
	s, err := stream.NewImmutableTableStream(tbl, []string{"id"}, record.DataContext{LibVersion: "test", HasherVersion: "1"})
	require.NoError(t, err)
	return s
}

func TestExitRejectsMismatchedScope(t *testing.T) {
	p1 := Enter("p1", nil, nil)
	p2 := Enter("p2", nil, nil)

	err := p1.Exit()
	require.Error(t, err)

	require.NoError(t, p2.Exit())
	require.NoError(t, p1.Exit())
	require.Nil(t, CurrentPipeline())
}

func TestNodeDFIsEmptyBeforeRun(t *testing.T) {
	ctx := context.Background()
	p := Enter("t", nil, nil)
	defer p.Exit()

	src := buildInputStream(t)
	node, err := p.AddSource(ctx, "in", src)
	require.NoError(t, err)
	require.Equal(t, 0, node.DF().NumRows())
}

func TestRunPopulatesNodeResultsAndSecondPipelineHitsStore(t *testing.T) {
	ctx := context.Background()
	backing, err := memstore.New(memstore.Config{})
	require.NoError(t, err)
	defer backing.Close()

	addPod, err := pod.FunctionPod("add_numbers", addNumbers,
		[]pod.InputSpec{{Name: "a", Kind: types.Int64}, {Name: "b", Kind: types.Int64}},
		[]pod.OutputSpec{{Key: "sum", Kind: types.Int64}},
		"v1")
	require.NoError(t, err)

	dc := record.DataContext{LibVersion: "test", HasherVersion: "1"}

	runOnce := func() *Pipeline {
		p := Enter("sum-pipeline", backing, nil)
		src, err := p.AddSource(ctx, "in", buildInputStream(t))
		require.NoError(t, err)
		_, err = p.AddPod("add", addPod, src, dc)
		require.NoError(t, err)
		require.NoError(t, p.Run(ctx))
		require.NoError(t, p.Exit())
		return p
	}

	p1 := runOnce()
	p2 := runOnce()

	require.Equal(t, p1.Fingerprint(), p2.Fingerprint())

	n1 := p1.Nodes()[1]
	n2 := p2.Nodes()[1]
	sums1, ok := n1.DF().Column("sum")
	require.True(t, ok)
	sums2, ok := n2.DF().Column("sum")
	require.True(t, ok)
	require.Equal(t, sums1, sums2)
}
