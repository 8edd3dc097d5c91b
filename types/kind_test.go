package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brian-arnold/orcapod/types"
)

func TestParseKindRoundTripsEveryKnownKind(t *testing.T) {
	kinds := []types.Kind{
		types.Bool, types.Int8, types.Int16, types.Int32, types.Int64,
		types.Uint8, types.Uint16, types.Uint32, types.Uint64,
		types.Float32, types.Float64, types.String, types.Binary,
		types.Timestamp, types.Path,
	}
	for _, k := range kinds {
		got, ok := types.ParseKind(k.String())
		require.True(t, ok, "ParseKind(%q)", k.String())
		require.Equal(t, k, got)
	}
}

func TestParseKindRejectsUnknownName(t *testing.T) {
	_, ok := types.ParseKind("not-a-kind")
	require.False(t, ok)
}

func TestIsIntegerAndIsFloatAreMutuallyExclusive(t *testing.T) {
	require.True(t, types.Int32.IsInteger())
	require.False(t, types.Int32.IsFloat())
	require.True(t, types.Float64.IsFloat())
	require.False(t, types.Float64.IsInteger())
	require.False(t, types.String.IsInteger())
	require.False(t, types.String.IsFloat())
}
